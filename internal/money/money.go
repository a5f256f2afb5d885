// Package money converts between decimal major-unit amounts used on the wire
// and the int64 minor units the ledger stores.
package money

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxMinorDigits is the digit count of math.MaxInt64.
const maxMinorDigits = 19

var (
	ErrNotANumber    = errors.New("amount is not a number")
	ErrNotPositive   = errors.New("amount must be positive")
	ErrTooPrecise    = errors.New("amount has too many decimal places")
	ErrOutOfRange    = errors.New("amount is out of range")
	ErrMissingAmount = errors.New("amount is required")
)

// Amount is a JSON amount that accepts both numbers and numeric strings,
// e.g. 300, 12.5 or "12.50".
type Amount struct {
	value decimal.Decimal
	set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ErrNotANumber
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		return ErrNotANumber
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return ErrNotANumber
	}
	*a = Amount{value: d, set: true}
	return nil
}

// NewAmount wraps a decimal, mainly for tests and internal callers.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d, set: true}
}

func (a Amount) IsSet() bool { return a.set }

func (a Amount) Decimal() decimal.Decimal { return a.value }

// Converter translates between major and minor units for a currency with a
// fixed number of decimal places.
type Converter struct {
	places int32
}

func NewConverter(places int32) Converter {
	return Converter{places: places}
}

// ToMinor returns the amount in minor units. Fractions finer than the
// currency allows are rejected rather than rounded.
func (c Converter) ToMinor(a Amount) (int64, error) {
	if !a.set {
		return 0, ErrMissingAmount
	}
	if !a.value.IsPositive() {
		return 0, ErrNotPositive
	}
	return c.Scale(a.value)
}

// Scale converts a non-negative major-unit decimal to minor units. The
// magnitude is checked on the coefficient and exponent before any rescale,
// so inputs like 1e60000000 are refused without big-integer arithmetic.
func (c Converter) Scale(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNotPositive
	}
	if d.IsZero() {
		return 0, nil
	}

	digits := d.NumDigits()
	exp := int(d.Exponent()) + int(c.places)
	if digits+exp > maxMinorDigits {
		return 0, ErrOutOfRange
	}
	// every coefficient digit sits below one minor unit
	if -exp >= digits {
		return 0, ErrTooPrecise
	}

	scaled := d.Shift(c.places)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrOutOfRange
	}
	return scaled.IntPart(), nil
}

// ToMajor renders minor units as a JSON number with exactly the currency's
// decimal places.
func (c Converter) ToMajor(minor int64) json.Number {
	return json.Number(decimal.New(minor, -c.places).StringFixed(c.places))
}
