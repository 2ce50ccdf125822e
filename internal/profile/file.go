package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a profile from a YAML or JSON file. JSON is accepted since
// it is valid YAML.
func LoadFile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}

	p.Clean()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
