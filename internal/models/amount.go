package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency (or km) value. The remote wire shape is allowed to
// carry numerics as JSON numbers, numeric strings, null or garbage; anything
// that does not parse decodes to zero instead of failing the whole row.
type Amount struct {
	d decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{d: d} }

// ParseAmount coerces a textual numeric to an Amount. Empty or unparsable
// input yields zero.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{d: d}
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }

func (a Amount) String() string { return a.d.String() }

// Amounts marshal as numeric strings, the form every client of the wire
// shape is required to tolerate anyway.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		a.d = decimal.Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		a.d = decimal.Zero
		return nil
	}
	a.d = d
	return nil
}
