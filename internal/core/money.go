// Package core holds the ledger's value types, entities and error kinds.
//
// This file contains the Money type: an integer count of minor units (cents)
// with decimal helpers for rates and ratios. No operation here goes through
// binary floating point.
package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of minor units in one major unit.
const MinorUnits = 100

var (
	hundred     = decimal.NewFromInt(100)
	minorFactor = decimal.NewFromInt(MinorUnits)
)

// Money is a fixed-point amount stored as cents.
type Money struct {
	Cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// Cents builds a Money from a count of minor units.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney parses an exact decimal amount with a dot or comma separator.
// Zero is accepted; more than two fractional digits are rejected, never rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return Zero, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts an exact decimal to Money.
func FromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Mul(minorFactor)
	if !scaled.IsInteger() {
		return Zero, fmt.Errorf("%w: %s has more than two decimals", ErrInvalidAmount, d)
	}
	if scaled.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return Zero, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d)
	}
	return Money{Cents: scaled.IntPart()}, nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.Cents < o.Cents:
		return -1
	case m.Cents > o.Cents:
		return 1
	default:
		return 0
	}
}

func (m Money) GreaterThan(o Money) bool { return m.Cents > o.Cents }
func (m Money) LessThan(o Money) bool    { return m.Cents < o.Cents }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// MulPercent multiplies by rate/100 and rounds half-up to the cent.
func (m Money) MulPercent(rate decimal.Decimal) Money {
	return roundCents(decimal.NewFromInt(m.Cents).Mul(rate).Div(hundred))
}

// MulRatio returns m × num / den rounded half-up (away from zero) to the cent.
// den must not be zero.
func (m Money) MulRatio(num, den Money) Money {
	n := decimal.NewFromInt(m.Cents).Mul(decimal.NewFromInt(num.Cents))
	d := decimal.NewFromInt(den.Cents)
	q, r := n.QuoRem(d, 0)
	if r.Abs().Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(d.Abs()) {
		if r.Sign()*d.Sign() < 0 {
			q = q.Sub(decimal.NewFromInt(1))
		} else {
			q = q.Add(decimal.NewFromInt(1))
		}
	}
	return Money{Cents: q.IntPart()}
}

func roundCents(d decimal.Decimal) Money {
	return Money{Cents: d.Round(0).IntPart()}
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount as a plain decimal, e.g. "-12.05".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string so clients never parse
// it into a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts "12.34" or 12.34.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = Zero
		return nil
	}
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}
