package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClosurePolicy controls the default evidence sign-off requirement applied
// to newly created events. A department or restriction-type entry overrides
// the global default; an explicit flag on the create request overrides both.
type ClosurePolicy struct {
	DefaultSignOff   bool            `yaml:"defaultSignOff"`
	Departments      map[string]bool `yaml:"departments"`
	RestrictionTypes map[string]bool `yaml:"restrictionTypes"`
}

// DefaultClosurePolicy requires sign-off for everything.
func DefaultClosurePolicy() *ClosurePolicy {
	return &ClosurePolicy{DefaultSignOff: true}
}

// LoadClosurePolicy reads a closure policy from a YAML file.
func LoadClosurePolicy(path string) (*ClosurePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read closure policy %s: %w", path, err)
	}
	policy := DefaultClosurePolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse closure policy %s: %w", path, err)
	}
	return policy, nil
}

// RequiresSignOff resolves the sign-off default for a department and
// restriction type. Restriction type wins over department.
func (p *ClosurePolicy) RequiresSignOff(department, restrictionType string) bool {
	if v, ok := p.RestrictionTypes[restrictionType]; ok {
		return v
	}
	if v, ok := p.Departments[department]; ok {
		return v
	}
	return p.DefaultSignOff
}
