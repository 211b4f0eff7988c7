/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, debts and
	payments that demonstrate a specific part of the debt lifecycle.

AVAILABLE SCENARIOS:

	on-track:         One client, partially paid debt due in three weeks
	due-soon:         Debts exactly two days from their deadline
	overdue:          Past-deadline debts, one partially paid
	mixed-portfolio:  Several clients with paid, pending and overdue debts

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create clients
 3. Create debts with dates relative to today
 4. Record payments through the ledger (statuses derive as usual)
 5. Refresh statuses so OVERDUE debts show up immediately

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "due-soon"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "on-track",
		Name:        "On Track",
		Description: "One client with a partially paid debt due in three weeks",
		Category:    "pending",
	},
	{
		ID:          "due-soon",
		Name:        "Due Soon",
		Description: "Debts due in two days, ready for reminder creation",
		Category:    "reminders",
	},
	{
		ID:          "overdue",
		Name:        "Overdue",
		Description: "Debts past their deadline, one partially paid",
		Category:    "overdue",
	},
	{
		ID:          "mixed-portfolio",
		Name:        "Mixed Portfolio",
		Description: "Several clients with paid, pending and overdue debts",
		Category:    "reports",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "on-track":
		load = h.loadOnTrackScenario
	case "due-soon":
		load = h.loadDueSoonScenario
	case "overdue":
		load = h.loadOverdueScenario
	case "mixed-portfolio":
		load = h.loadMixedPortfolioScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Reset not supported", nil)
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	if _, err := h.Ledger.RefreshStatuses(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh statuses", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedDebt describes one debt relative to today. Offsets are in days.
type seedDebt struct {
	amount      string
	description string
	dateOffset  int
	dueOffset   int
	payments    []string
}

type seedClient struct {
	name  string
	email string
	phone string
	debts []seedDebt
}

func (h *Handler) seed(ctx context.Context, clients []seedClient) error {
	today := h.today()
	for _, sc := range clients {
		c, err := h.Ledger.CreateClient(ctx, ledger.ClientInput{Name: sc.name, Email: sc.email, Phone: sc.phone})
		if err != nil {
			return fmt.Errorf("client %s: %w", sc.name, err)
		}
		for _, sd := range sc.debts {
			d, err := h.Ledger.CreateDebt(ctx, ledger.DebtInput{
				ClientID:    c.ID,
				Amount:      ledger.MustParseMoney(sd.amount),
				Description: sd.description,
				Date:        today.AddDays(sd.dateOffset),
				Deadline:    today.AddDays(sd.dueOffset),
			})
			if err != nil {
				return fmt.Errorf("debt %q: %w", sd.description, err)
			}
			for i, amt := range sd.payments {
				_, err := h.Ledger.RecordPayment(ctx, ledger.PaymentInput{
					ClientID:        c.ID,
					DebtID:          d.ID,
					Amount:          ledger.MustParseMoney(amt),
					ReferenceNumber: fmt.Sprintf("DEMO-%d", i+1),
				})
				if err != nil {
					return fmt.Errorf("payment on %q: %w", sd.description, err)
				}
			}
		}
	}
	return nil
}

func (h *Handler) loadOnTrackScenario(ctx context.Context) error {
	return h.seed(ctx, []seedClient{{
		name:  "Alice Johnson",
		email: "alice@example.com",
		phone: "+1 555 0100",
		debts: []seedDebt{
			{amount: "1200.00", description: "Website redesign", dateOffset: -10, dueOffset: 21, payments: []string{"400.00"}},
		},
	}})
}

func (h *Handler) loadDueSoonScenario(ctx context.Context) error {
	return h.seed(ctx, []seedClient{
		{
			name:  "Bob Martinez",
			email: "bob@example.com",
			debts: []seedDebt{
				{amount: "350.00", description: "Monthly retainer", dateOffset: -28, dueOffset: 2},
			},
		},
		{
			name:  "Carol Davis",
			email: "carol@example.com",
			debts: []seedDebt{
				{amount: "89.90", description: "Hosting renewal", dateOffset: -5, dueOffset: 2, payments: []string{"40.00"}},
				{amount: "500.00", description: "Consulting hours", dateOffset: -3, dueOffset: 14},
			},
		},
	})
}

func (h *Handler) loadOverdueScenario(ctx context.Context) error {
	return h.seed(ctx, []seedClient{
		{
			name:  "Dan Wilson",
			email: "dan@example.com",
			debts: []seedDebt{
				{amount: "750.00", description: "Logo and brand kit", dateOffset: -45, dueOffset: -15},
			},
		},
		{
			name:  "Eve Thompson",
			email: "eve@example.com",
			debts: []seedDebt{
				{amount: "2400.00", description: "Annual support contract", dateOffset: -60, dueOffset: -3, payments: []string{"1000.00", "200.00"}},
			},
		},
	})
}

func (h *Handler) loadMixedPortfolioScenario(ctx context.Context) error {
	return h.seed(ctx, []seedClient{
		{
			name:  "Frank Miller",
			email: "frank@example.com",
			debts: []seedDebt{
				{amount: "300.00", description: "Photo session", dateOffset: -40, dueOffset: -20, payments: []string{"300.00"}},
				{amount: "450.00", description: "Print materials", dateOffset: -7, dueOffset: 10},
			},
		},
		{
			name:  "Grace Lee",
			email: "grace@example.com",
			debts: []seedDebt{
				{amount: "999.99", description: "App prototype", dateOffset: -30, dueOffset: -2, payments: []string{"333.33"}},
				{amount: "120.00", description: "Domain transfer", dateOffset: -1, dueOffset: 2},
			},
		},
		{
			name:  "Henry Clark",
			email: "henry@example.com",
			debts: []seedDebt{
				{amount: "60.00", description: "Maintenance", dateOffset: -90, dueOffset: -60, payments: []string{"30.00", "30.00"}},
			},
		},
	})
}
