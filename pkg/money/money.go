// Package money stores prices as integer minor units (paisa, cents) and
// converts them to and from decimal strings at the JSON edge.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits every amount carries.
const Scale = 2

// Amount is a monetary value in minor units. 1250 means 12.50.
type Amount int64

// ErrPrecision is returned when a value has more decimal places than Scale.
var ErrPrecision = fmt.Errorf("money: at most %d decimal places allowed", Scale)

// ErrOverflow is returned when a value or a result does not fit in an Amount.
var ErrOverflow = errors.New("money: amount out of range")

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// FromMajor builds an Amount from whole currency units.
func FromMajor(units int64) Amount { return Amount(units * 100) }

// FromDecimal converts d, rejecting sub-minor precision.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, ErrPrecision
	}
	if minor.LessThan(minMinor) || minor.GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return Amount(minor.IntPart()), nil
}

// Parse reads a decimal string such as "4500" or "4500.50".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: %w", err)
	}
	return FromDecimal(d)
}

// MustParse is Parse that panics; for constants and seed data.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// Mul multiplies by an integer quantity. Use CheckedMul on values that
// come from a request.
func (a Amount) Mul(qty int) Amount { return a * Amount(qty) }

// CheckedMul is Mul that fails with ErrOverflow instead of wrapping.
func (a Amount) CheckedMul(qty int) (Amount, error) {
	if a == 0 || qty == 0 {
		return 0, nil
	}
	q := int64(qty)
	if (a == -1 && q == math.MinInt64) || (q == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	p := int64(a) * q
	if p/q != int64(a) {
		return 0, ErrOverflow
	}
	return Amount(p), nil
}

// CheckedAdd is a + b that fails with ErrOverflow instead of wrapping.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

func (a Amount) IsPositive() bool { return a > 0 }

// String renders the amount with exactly Scale decimals, e.g. "4500.00".
func (a Amount) String() string { return a.Decimal().StringFixed(Scale) }

// Format renders the amount with a currency code, e.g. "PKR 4,500.00".
func (a Amount) Format(currency string) string {
	d := a.Decimal().Abs()
	whole := d.Truncate(0).String()
	frac := d.Sub(d.Truncate(0)).Shift(Scale).StringFixed(0)
	if len(frac) < Scale {
		frac = "0" + frac
	}

	var b bytes.Buffer
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if a < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s.%s", sign, currency, b.String(), frac)
}

// Float64 is for display surfaces (GraphQL Float) only.
func (a Amount) Float64() float64 {
	f, _ := a.Decimal().Float64()
	return f
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
