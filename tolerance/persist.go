package tolerance

import (
	"encoding/json"
	"fmt"
	"os"
)

// MarshalProfile serializes a profile to its persisted record. Every
// field round-trips exactly: name, level, each rule's limits, and both
// path sets.
func MarshalProfile(p *Profile) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// UnmarshalProfile restores a profile from a persisted record.
func UnmarshalProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("tolerance: decode profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("tolerance: profile record missing name")
	}
	return &p, nil
}

// SaveProfile writes the named profile's record to a file.
func (c *Config) SaveProfile(name, path string) error {
	p, ok := c.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	data, err := MarshalProfile(p)
	if err != nil {
		return fmt.Errorf("tolerance: encode profile %q: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tolerance: write profile %q: %w", name, err)
	}
	return nil
}

// LoadProfile reads a profile record from a file and registers it.
func (c *Config) LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tolerance: read profile %s: %w", path, err)
	}
	p, err := UnmarshalProfile(data)
	if err != nil {
		return nil, err
	}
	if err := c.AddProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}
