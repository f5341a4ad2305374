// Package money provides an arbitrary-precision, non-negative integer
// amount type. No monetary value in this codebase is ever represented as a
// float; wire encodings are decimal strings.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNegative is returned when an operation would produce a negative amount.
var ErrNegative = errors.New("money: amount must be non-negative")

// Amount is a non-negative integer quantity of the smallest unit of a
// currency (e.g. cents). It wraps decimal.Decimal but is constrained to
// integer (zero-exponent) values at every construction site.
type Amount struct {
	v decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{v: decimal.Zero}

// New builds an Amount from an integer count of smallest units.
func New(units int64) Amount {
	if units < 0 {
		units = 0
	}
	return Amount{v: decimal.NewFromInt(units)}
}

// Parse reads a decimal string and requires it to be a non-negative integer.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return Amount{}, fmt.Errorf("money: %q is not an integer amount", s)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegative
	}
	return Amount{v: d.Truncate(0)}, nil
}

// String renders the amount as a decimal string with no fractional part.
func (a Amount) String() string { return a.v.StringFixed(0) }

// Int64 returns the integer value. Callers that need values beyond int64
// range should use String() and parse with math/big directly.
func (a Amount) Int64() int64 { return a.v.IntPart() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.v.IsPositive() }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{v: a.v.Add(b.v)} }

// Sub returns a - b, or ErrNegative if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	r := a.v.Sub(b.v)
	if r.IsNegative() {
		return Amount{}, ErrNegative
	}
	return Amount{v: r}, nil
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(b.v) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.v.LessThan(b.v) }

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.v.GreaterThanOrEqual(b.v) }

// Equal reports value equality.
func (a Amount) Equal(b Amount) bool { return a.v.Equal(b.v) }

// MulInt multiplies by a non-negative integer factor.
func (a Amount) MulInt(n int64) Amount {
	return Amount{v: a.v.Mul(decimal.NewFromInt(n))}
}

// FloorBps multiplies by basis points (parts per 10000) and floors the
// result to an integer amount. Used for platform-fee computation.
func (a Amount) FloorBps(bps int64) Amount {
	product := a.v.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000))
	return Amount{v: product.Truncate(0)}
}

// Split divides the amount evenly among n recipients such that the returned
// amounts sum exactly to a. The remainder (a mod n smallest units) is
// distributed one unit each to the first `remainder` recipients, in the
// order given — recipient 0 gets the extra unit before recipient 1, etc.
func (a Amount) Split(n int) []Amount {
	if n <= 0 {
		return nil
	}
	nDec := decimal.NewFromInt(int64(n))
	base := a.v.Div(nDec).Truncate(0)
	remainder := a.v.Sub(base.Mul(nDec)).IntPart()

	parts := make([]Amount, n)
	for i := 0; i < n; i++ {
		v := base
		if int64(i) < remainder {
			v = v.Add(decimal.NewFromInt(1))
		}
		parts[i] = Amount{v: v}
	}
	return parts
}

// MarshalJSON renders the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements database/sql/driver.Valuer, storing the amount as text.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC/TEXT/INTEGER columns.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case int64:
		*a = New(v)
		return nil
	case nil:
		*a = Zero
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}
