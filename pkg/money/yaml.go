package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes an amount from a YAML scalar.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", node.Value, err)
	}
	a.value = d.Round(2)
	return nil
}

// MarshalYAML encodes the amount as a scalar string.
func (a Amount) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// UnmarshalYAML decodes a rate from a YAML scalar.
func (r *Rate) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", node.Value, err)
	}
	if !d.IsPositive() {
		return fmt.Errorf("rate must be positive, got %s", d)
	}
	r.value = d
	return nil
}

// MarshalYAML encodes the rate as a scalar string.
func (r Rate) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}
