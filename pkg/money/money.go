package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount represents a local-currency amount with two-decimal precision.
type Amount struct {
	value decimal.Decimal
}

// Rate represents an exchange rate (local-currency units per unit of asset).
type Rate struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{value: decimal.Zero}

// NewAmount creates an Amount from a string.
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount: %w", err)
	}
	return Amount{value: d.Round(2)}, nil
}

// NewAmountFromFloat creates an Amount from float64, rounding to two decimals.
func NewAmountFromFloat(f float64) Amount {
	return Amount{value: decimal.NewFromFloat(f).Round(2)}
}

// NewAmountFromInt creates an Amount from whole local-currency units.
func NewAmountFromInt(i int64) Amount {
	return Amount{value: decimal.NewFromInt(i)}
}

// NewRate creates a Rate from a string. The rate must be positive.
func NewRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate: %w", err)
	}
	if !d.IsPositive() {
		return Rate{}, fmt.Errorf("rate must be positive, got %s", d)
	}
	return Rate{value: d}, nil
}

// NewRateFromFloat creates a Rate from float64. The rate must be positive.
func NewRateFromFloat(f float64) (Rate, error) {
	d := decimal.NewFromFloat(f)
	if !d.IsPositive() {
		return Rate{}, fmt.Errorf("rate must be positive, got %s", d)
	}
	return Rate{value: d}, nil
}

// Add adds two amounts.
func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value)}
}

// Sub subtracts an amount.
func (a Amount) Sub(other Amount) Amount {
	return Amount{value: a.value.Sub(other.value)}
}

// Convert converts an asset quantity into local currency at rate r,
// rounded to two decimals.
func (r Rate) Convert(quantity decimal.Decimal) Amount {
	return Amount{value: quantity.Mul(r.value).Round(2)}
}

// DeviationBps returns the absolute relative deviation of current from r,
// in basis points.
func (r Rate) DeviationBps(current Rate) decimal.Decimal {
	if r.value.IsZero() {
		return decimal.Zero
	}
	return current.value.Sub(r.value).Abs().
		Div(r.value).
		Mul(decimal.NewFromInt(10000))
}

// Cmp compares two amounts: -1 if a < other, 0 if equal, 1 if a > other.
func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(other.value)
}

// LessThanOrEqual reports whether a <= other.
func (a Amount) LessThanOrEqual(other Amount) bool {
	return a.value.Cmp(other.value) <= 0
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsNegative reports whether the amount is negative.
func (a Amount) IsNegative() bool {
	return a.value.IsNegative()
}

// IsPositive reports whether the amount is strictly positive.
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// MulBps applies a basis-point factor to the amount, rounded to two decimals.
func (a Amount) MulBps(bps int64) Amount {
	factor := decimal.NewFromInt(bps).Div(decimal.NewFromInt(10000))
	return Amount{value: a.value.Mul(factor).Round(2)}
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// Decimal exposes the underlying decimal value.
func (r Rate) Decimal() decimal.Decimal {
	return r.value
}

// Equal reports whether two amounts are exactly equal.
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// Equal reports whether two rates are exactly equal.
func (r Rate) Equal(other Rate) bool {
	return r.value.Equal(other.value)
}

// String formats the amount with two decimal places.
func (a Amount) String() string {
	return a.value.StringFixed(2)
}

// String formats the rate without trailing zero padding.
func (r Rate) String() string {
	return r.value.String()
}

// MarshalJSON encodes the amount as a JSON string with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes an amount from a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	a.value = d.Round(2)
	return nil
}

// MarshalJSON encodes the rate as a JSON string.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON decodes a rate from a JSON string or number.
func (r *Rate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}
	// Zero is permitted here so an unset rate survives a decode round trip;
	// constructors still require positive rates.
	if d.IsNegative() {
		return fmt.Errorf("rate must not be negative, got %s", d)
	}
	r.value = d
	return nil
}
