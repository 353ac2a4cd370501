package tolerance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/fidelity/semdiff"
)

// Config owns the named-profile registry. Built-ins are installed once and
// never mutated in place; deriving a custom profile copies. Concurrent
// reads are safe; concurrent writes to the same named profile must be
// serialized by the caller.
type Config struct {
	profiles map[string]*Profile
	builtins map[string]bool
}

// NewConfig returns a registry holding the four built-in profiles.
func NewConfig() *Config {
	c := &Config{
		profiles: builtinProfiles(),
		builtins: make(map[string]bool, 4),
	}
	for name := range c.profiles {
		c.builtins[name] = true
	}
	return c
}

// Profile returns a copy of the named profile. Mutating the copy does not
// affect the registry.
func (c *Config) Profile(name string) (*Profile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p.Clone(), nil
}

// Names lists registered profile names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for n := range c.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateCustomProfile derives a new profile from a base by deep copy.
func (c *Config) CreateCustomProfile(name, baseProfile string) (*Profile, error) {
	base, ok := c.profiles[baseProfile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, baseProfile)
	}
	if c.builtins[name] {
		return nil, fmt.Errorf("%w: %q", ErrBuiltinProfile, name)
	}
	p := base.Clone()
	p.Name = name
	c.profiles[name] = p
	return p.Clone(), nil
}

// AddProfile registers a profile under its own name, replacing any existing
// custom profile of that name.
func (c *Config) AddProfile(p *Profile) error {
	if c.builtins[p.Name] {
		return fmt.Errorf("%w: %q", ErrBuiltinProfile, p.Name)
	}
	c.profiles[p.Name] = p.Clone()
	return nil
}

// RemoveProfile deletes a custom profile. Built-ins cannot be removed.
func (c *Config) RemoveProfile(name string) error {
	if c.builtins[name] {
		return fmt.Errorf("%w: %q", ErrBuiltinProfile, name)
	}
	if _, ok := c.profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	delete(c.profiles, name)
	return nil
}

// AdjustTolerance updates the limits of the named profile's rule for one
// change type; nil leaves the corresponding limit unchanged. The rule is
// created when the profile has none for that type. Built-in profiles are
// adjusted via an internal copy so the pristine defaults in other Config
// instances are unaffected.
func (c *Config) AdjustTolerance(profileName string, changeType ChangeType, newPercentage *float64, newAbsolute *int) error {
	p, ok := c.profiles[profileName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, profileName)
	}
	if newPercentage != nil && (*newPercentage < 0 || *newPercentage > 100) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, *newPercentage)
	}

	adjusted := p.Clone()
	found := false
	for i := range adjusted.Rules {
		if adjusted.Rules[i].ChangeType != changeType {
			continue
		}
		found = true
		if newPercentage != nil {
			v := *newPercentage
			adjusted.Rules[i].MaxPercentage = &v
		}
		if newAbsolute != nil {
			v := *newAbsolute
			adjusted.Rules[i].MaxAbsolute = &v
		}
	}
	if !found {
		r := Rule{ChangeType: changeType, Description: fmt.Sprintf("Adjusted %s budget", changeType)}
		if newPercentage != nil {
			v := *newPercentage
			r.MaxPercentage = &v
		}
		if newAbsolute != nil {
			v := *newAbsolute
			r.MaxAbsolute = &v
		}
		adjusted.Rules = append(adjusted.Rules, r)
	}
	c.profiles[profileName] = adjusted
	return nil
}

// pathMatches implements the containment rule shared by critical and
// ignorable path sets: a pattern hits when the change location contains it.
func pathMatches(location string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if p != "" && strings.Contains(location, p) {
			return p, true
		}
	}
	return "", false
}

// Evaluate classifies every change against the named profile and renders
// the verdict. Ignorable-path hits are excluded from all counting;
// critical-severity changes on critical paths bypass numeric tolerance;
// the rest is counted per change type against the profile's rules.
func (c *Config) Evaluate(changes []Change, profileName string) (*Result, error) {
	p, ok := c.profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profileName)
	}

	res := &Result{
		TotalChanges:  len(changes),
		ChangesByType: make(map[ChangeType]int, len(ChangeTypes())),
	}
	for _, t := range ChangeTypes() {
		res.ChangesByType[t] = 0
	}

	var counted []Change
	for _, ch := range changes {
		if _, hit := pathMatches(ch.Location, p.IgnorablePaths); hit {
			res.IgnoredChanges = append(res.IgnoredChanges, ch)
			continue
		}
		if ch.Severity == semdiff.SeverityCritical {
			if _, hit := pathMatches(ch.Location, p.CriticalPaths); hit {
				res.CriticalViolations = append(res.CriticalViolations, ch)
				continue
			}
		}
		counted = append(counted, ch)
		res.ChangesByType[ch.Type]++
	}

	total := len(counted)
	for _, rule := range p.Rules {
		count := 0
		for _, ch := range counted {
			if ch.Type != rule.ChangeType {
				continue
			}
			if rule.LocationPattern != "" && !strings.Contains(ch.Location, rule.LocationPattern) {
				continue
			}
			count++
		}
		if !rule.WithinTolerance(count, total) {
			pct := 0.0
			if total > 0 {
				pct = 100 * float64(count) / float64(total)
			}
			res.RuleViolations = append(res.RuleViolations, RuleViolation{
				Rule:       rule,
				Count:      count,
				Total:      total,
				Percentage: pct,
			})
		}
	}

	res.Passed = len(res.CriticalViolations) == 0 && len(res.RuleViolations) == 0
	if res.Passed {
		res.Summary = fmt.Sprintf("passed %q: %d changes within tolerance (%d ignored)",
			profileName, total, len(res.IgnoredChanges))
	} else {
		res.Summary = fmt.Sprintf("failed %q: %d critical violations, %d rule violations out of %d changes",
			profileName, len(res.CriticalViolations), len(res.RuleViolations), res.TotalChanges)
	}
	return res, nil
}
