/*
Package export renders ledger reports as XLSX workbooks and archives them
to S3-compatible object storage.

SHEETS:
  Outstanding: one row per client with a positive balance
  Overdue:     one row per OVERDUE debt
  Summary:     dashboard figures

SEE ALSO:
  - ledger/report.go: report shapes
  - archive.go: S3 upload
*/
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/debt-ledger/ledger"
)

const (
	SheetOutstanding = "Outstanding"
	SheetOverdue     = "Overdue"
	SheetSummary     = "Summary"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Reports bundles what a workbook shows.
type Reports struct {
	GeneratedAt time.Time
	Outstanding ledger.OutstandingReport
	Overdue     ledger.OverdueReport
	Dashboard   ledger.Dashboard
}

// Collect reads all reports from r.
func Collect(ctx context.Context, r *ledger.Reporter, now time.Time) (Reports, error) {
	out, err := r.Outstanding(ctx)
	if err != nil {
		return Reports{}, fmt.Errorf("outstanding report: %w", err)
	}
	ov, err := r.Overdue(ctx)
	if err != nil {
		return Reports{}, fmt.Errorf("overdue report: %w", err)
	}
	dash, err := r.Dashboard(ctx)
	if err != nil {
		return Reports{}, fmt.Errorf("dashboard: %w", err)
	}
	return Reports{GeneratedAt: now, Outstanding: out, Overdue: ov, Dashboard: dash}, nil
}

// WriteWorkbook renders reps as an XLSX workbook to w.
func WriteWorkbook(w io.Writer, reps Reports) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetOutstanding); err != nil {
		return err
	}
	rows := [][]any{{"Client", "Email", "Phone", "Total debt", "Total paid", "Balance", "Active debts", "Overdue debts"}}
	for _, c := range reps.Outstanding.Clients {
		rows = append(rows, []any{
			c.Name, c.Email, c.Phone,
			c.TotalDebt.Float64(), c.TotalPaid.Float64(), c.Balance.Float64(),
			c.ActiveDebts, c.OverdueDebts,
		})
	}
	rows = append(rows, []any{"Total", "", "", nil, nil, reps.Outstanding.TotalOutstanding.Float64()})
	if err := writeSheet(f, SheetOutstanding, rows, header, money, "D", "F"); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetOverdue); err != nil {
		return err
	}
	rows = [][]any{{"Debt", "Client", "Email", "Description", "Amount", "Paid", "Remaining", "Deadline", "Days overdue"}}
	for _, d := range reps.Overdue.Debts {
		rows = append(rows, []any{
			string(d.DebtID), d.ClientName, d.ClientEmail, d.Description,
			d.Amount.Float64(), d.Paid.Float64(), d.Remaining.Float64(),
			d.Deadline.String(), d.DaysOverdue,
		})
	}
	rows = append(rows, []any{"Total", "", "", "", nil, nil, reps.Overdue.TotalAmount.Float64()})
	if err := writeSheet(f, SheetOverdue, rows, header, money, "E", "G"); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	dash := reps.Dashboard
	rows = [][]any{
		{"Metric", "Value"},
		{"Generated at", reps.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Clients", dash.Clients.Total},
		{"Clients with debt", dash.Clients.WithDebt},
		{"Debts", dash.Debts.TotalCount},
		{"Pending", dash.Debts.Pending},
		{"Overdue", dash.Debts.Overdue},
		{"Paid", dash.Debts.Paid},
		{"Upcoming", dash.Debts.Upcoming},
		{"Payments", dash.Payments.TotalCount},
		{"Total debt", dash.Debts.TotalAmount.Float64()},
		{"Total paid", dash.Payments.TotalAmount.Float64()},
		{"Outstanding", dash.Financial.OutstandingBalance.Float64()},
		{"Collection rate %", dash.Financial.CollectionRate},
	}
	if err := writeSheet(f, SheetSummary, rows, header, 0, "", ""); err != nil {
		return err
	}

	return f.Write(w)
}

// writeSheet writes rows from A1, bolds the header and applies moneyStyle to
// columns fromCol..toCol when moneyStyle is non-zero.
func writeSheet(f *excelize.File, sheet string, rows [][]any, header, moneyStyle int, fromCol, toCol string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
		return err
	}
	if moneyStyle != 0 && len(rows) > 1 {
		top, err := excelize.JoinCellName(fromCol, 2)
		if err != nil {
			return err
		}
		bottom, err := excelize.JoinCellName(toCol, len(rows))
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, top, bottom, moneyStyle); err != nil {
			return err
		}
	}
	return nil
}
