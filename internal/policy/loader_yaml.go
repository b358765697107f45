package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Rows []Row `yaml:"rows"`
}

// LoadYAML parses a policy table from YAML bytes.
func LoadYAML(data []byte) ([]Row, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy table: %w", err)
	}
	for i := range f.Rows {
		level, err := ParseKYCLevel(f.Rows[i].KYCLabel)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		f.Rows[i].KYC = level
	}
	return f.Rows, nil
}

// LoadYAMLFile reads and parses a policy table file.
func LoadYAMLFile(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy table: %w", err)
	}
	return LoadYAML(data)
}
