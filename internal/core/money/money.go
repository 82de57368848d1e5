// Package money provides the 2-decimal fixed-point amount type used across
// the gateway. Amounts are stored as int64 minor units (satang) so that
// payment matching is exact integer equality rather than float comparison.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CurrencyTHB is the default currency of the receiving bank accounts.
const CurrencyTHB = "THB"

// SatangPerBaht is the number of minor units in one whole currency unit.
const SatangPerBaht int64 = 100

// Amount is a monetary value in satang (1/100 of a baht).
type Amount int64

var (
	ErrInvalidAmount     = errors.New("money: invalid amount")
	ErrNonPositiveAmount = errors.New("money: amount must be greater than zero")
)

// FromSatang wraps a raw minor-unit value.
func FromSatang(satang int64) Amount {
	return Amount(satang)
}

// Parse converts a human-formatted amount ("1,234.56") into an Amount.
// Thousands separators are stripped; at most two decimal places are
// accepted; the result must be strictly positive. This is the strict form
// used for SMS extraction.
func Parse(s string) (Amount, error) {
	a, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if a <= 0 {
		return 0, ErrNonPositiveAmount
	}
	return a, nil
}

// parseDecimal accepts any non-negative 2-decimal value, including zero
// (connection-test payloads carry a synthetic zero amount).
func parseDecimal(s string) (Amount, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	whole := cleaned
	frac := ""
	if idx := strings.IndexByte(cleaned, '.'); idx >= 0 {
		whole = cleaned[:idx]
		frac = cleaned[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two decimal places in %q", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	baht, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	satang, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if baht < 0 {
		return 0, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}

	return Amount(baht*SatangPerBaht + satang), nil
}

// Satang returns the raw minor-unit value.
func (a Amount) Satang() int64 {
	return int64(a)
}

// Baht returns the whole-unit part.
func (a Amount) Baht() int64 {
	return int64(a) / SatangPerBaht
}

// SuffixSatang returns the fractional part in satang (0–99). For pending
// orders this is the disambiguation suffix.
func (a Amount) SuffixSatang() int64 {
	v := int64(a) % SatangPerBaht
	if v < 0 {
		v += SatangPerBaht
	}
	return v
}

// AddSatang returns the amount shifted by n satang.
func (a Amount) AddSatang(n int64) Amount {
	return Amount(int64(a) + n)
}

// DistanceSatang returns |a-b| in satang.
func (a Amount) DistanceSatang(b Amount) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return d
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/SatangPerBaht, v%SatangPerBaht)
}

// MarshalJSON encodes the amount as a 2-decimal JSON number, which is the
// wire format of the webhook payload.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	parsed, err := parseDecimal(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

var _ json.Marshaler = Amount(0)
var _ json.Unmarshaler = (*Amount)(nil)
