/*
money.go - Fixed-point currency amounts

PURPOSE:
  Every business rule in the ledger compares and sums money. Money is kept
  as an integer count of minor units (cents) so that checks like
  "remaining balance <= 0" never suffer from floating-point drift.

PRECISION:
  Exactly two fractional digits. Construction from a decimal with more
  precision (e.g. 10.005) is rejected instead of rounded.

SERIALIZATION:
  JSON numbers with two fractional digits: 100.00, 0.01, 1234.50.
  Decoding accepts numbers or strings ("100.00").

SEE ALSO:
  - status.go: RemainingBalance
  - payment.go: overpayment check
*/
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is an amount of currency in minor units.
type Money struct {
	cents int64
}

// MinorUnitDigits is the number of fractional digits Money can represent.
const MinorUnitDigits = 2

var (
	// ErrMoneyPrecision is returned when a value has more precision than a cent.
	ErrMoneyPrecision = errors.New("money: more than two fractional digits")

	// ErrMoneyRange is returned when a value does not fit in int64 cents.
	ErrMoneyRange = errors.New("money: value out of range")

	// ErrMoneyOverflow is returned by checked arithmetic that leaves int64.
	ErrMoneyOverflow = errors.New("money: arithmetic overflow")

	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Zero is the zero amount.
var Zero = Money{}

// MaxAmount is the largest amount a single debt may carry: 99,999,999.99.
var MaxAmount = Cents(9_999_999_999)

// Cents builds Money from a count of minor units.
func Cents(c int64) Money { return Money{cents: c} }

// MoneyFromDecimal converts a decimal, rejecting sub-cent precision.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(MinorUnitDigits)
	if !shifted.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s", ErrMoneyPrecision, d.String())
	}
	if shifted.GreaterThan(maxCents) || shifted.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: %s", ErrMoneyRange, d.String())
	}
	return Money{cents: shifted.IntPart()}, nil
}

// ParseMoney parses a decimal string such as "100.00" or "12.5".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MustParseMoney is ParseMoney for literals; it panics on error.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SumChecked adds all amounts, failing instead of wrapping around.
func SumChecked(amounts ...Money) (Money, error) {
	var total Money
	for _, a := range amounts {
		var err error
		if total, err = total.CheckedAdd(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// CheckedAdd is Add that reports int64 overflow.
func (m Money) CheckedAdd(o Money) (Money, error) {
	s := m.cents + o.cents
	if (o.cents > 0 && s < m.cents) || (o.cents < 0 && s > m.cents) {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrMoneyOverflow, m, o)
	}
	return Money{cents: s}, nil
}

// CheckedSub is Sub that reports int64 overflow.
func (m Money) CheckedSub(o Money) (Money, error) {
	s := m.cents - o.cents
	if (o.cents > 0 && s > m.cents) || (o.cents < 0 && s < m.cents) {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrMoneyOverflow, m, o)
	}
	return Money{cents: s}, nil
}

func (m Money) Cents() int64 { return m.cents }
func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }
func (m Money) Mul(n int64) Money { return Money{cents: m.cents * n} }
func (m Money) Neg() Money { return Money{cents: -m.cents} }
func (m Money) IsPositive() bool { return m.cents > 0 }
func (m Money) IsZero() bool { return m.cents == 0 }
func (m Money) IsNegative() bool { return m.cents < 0 }
func (m Money) Equal(o Money) bool { return m.cents == o.cents }
func (m Money) GreaterThan(o Money) bool { return m.cents > o.cents }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.cents >= o.cents }
func (m Money) LessThan(o Money) bool { return m.cents < o.cents }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -MinorUnitDigits)
}

// Float64 is for display and metrics only. Never use it in business rules.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitDigits)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
