package core

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is an arbitrary-precision number for prices and amounts. It
// decodes from JSON numbers and from numeric strings.
type Decimal struct {
	apd.Decimal
}

// NewDecimal parses s into a Decimal.
func NewDecimal(s string) (Decimal, error) {
	var d Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal is NewDecimal that panics on invalid input, for constants and tests.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// UnmarshalJSON accepts 1.5, "1.5" and null.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, nullLiteral) {
		d.SetInt64(0)
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		d.SetInt64(0)
		return nil
	}
	if _, _, err := d.SetString(string(data)); err != nil {
		return fmt.Errorf("invalid decimal %q: %w", data, err)
	}
	return nil
}

// MarshalJSON encodes the value as a JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Text('f')), nil
}

// String returns the plain decimal representation.
func (d Decimal) String() string {
	return d.Text('f')
}

// Param renders the value for a query string.
func (d Decimal) Param() string {
	return d.Text('f')
}
