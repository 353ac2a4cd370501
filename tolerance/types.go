// Package tolerance evaluates classified change sets against named policy
// profiles and renders an accept/reject verdict.
//
// An evaluation "failure" (tolerance not met) is a normal outcome carried
// inside the Result, never an error. Errors are reserved for configuration
// problems: unknown profile names and out-of-range thresholds.
package tolerance

import (
	"errors"

	"github.com/hazyhaar/fidelity/semdiff"
)

// ErrUnknownProfile is returned when a profile name is not registered.
var ErrUnknownProfile = errors.New("tolerance: unknown profile")

// ErrInvalidThreshold is returned for percentage values outside [0,100].
var ErrInvalidThreshold = errors.New("tolerance: threshold outside [0,100]")

// ErrBuiltinProfile is returned on attempts to remove or overwrite a
// built-in profile.
var ErrBuiltinProfile = errors.New("tolerance: built-in profile is protected")

// ChangeType classifies one change record for rule matching.
type ChangeType string

const (
	ContentLoss      ChangeType = "CONTENT_LOSS"
	FormattingLoss   ChangeType = "FORMATTING_LOSS"
	ColorShift       ChangeType = "COLOR_SHIFT"
	SpacingChange    ChangeType = "SPACING_CHANGE"
	FontSubstitution ChangeType = "FONT_SUBSTITUTION"
	MetadataChange   ChangeType = "METADATA_CHANGE"
)

// ChangeTypes returns every change type.
func ChangeTypes() []ChangeType {
	return []ChangeType{
		ContentLoss, FormattingLoss, ColorShift,
		SpacingChange, FontSubstitution, MetadataChange,
	}
}

// Level names how permissive a profile is overall.
type Level string

const (
	LevelStrict     Level = "STRICT"
	LevelNormal     Level = "NORMAL"
	LevelLenient    Level = "LENIENT"
	LevelPermissive Level = "PERMISSIVE"
)

// Rule caps how much change of one type a profile accepts. A rule with
// both limits set requires both to hold. A nil limit means unlimited on
// that axis.
type Rule struct {
	ChangeType      ChangeType `json:"change_type"`
	MaxAbsolute     *int       `json:"max_absolute,omitempty"`
	MaxPercentage   *float64   `json:"max_percentage,omitempty"`
	LocationPattern string     `json:"location_pattern,omitempty"`
	Description     string     `json:"description"`
}

// WithinTolerance reports whether count changes out of total satisfy the
// rule's limits.
func (r *Rule) WithinTolerance(count, total int) bool {
	if r.MaxAbsolute != nil && count > *r.MaxAbsolute {
		return false
	}
	if r.MaxPercentage != nil {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(count) / float64(total)
		}
		if pct > *r.MaxPercentage {
			return false
		}
	}
	return true
}

// Profile is a named tolerance policy: ordered rules plus path overrides.
// CriticalPaths never regress regardless of numeric budget; IgnorablePaths
// are excluded from all counting.
type Profile struct {
	Name           string   `json:"name"`
	Level          Level    `json:"level"`
	Rules          []Rule   `json:"rules"`
	CriticalPaths  []string `json:"critical_paths"`
	IgnorablePaths []string `json:"ignorable_paths"`
}

// Clone deep-copies the profile so later mutation of the copy is never
// observable through the original.
func (p *Profile) Clone() *Profile {
	c := &Profile{Name: p.Name, Level: p.Level}
	c.Rules = make([]Rule, len(p.Rules))
	for i, r := range p.Rules {
		c.Rules[i] = r
		if r.MaxAbsolute != nil {
			v := *r.MaxAbsolute
			c.Rules[i].MaxAbsolute = &v
		}
		if r.MaxPercentage != nil {
			v := *r.MaxPercentage
			c.Rules[i].MaxPercentage = &v
		}
	}
	c.CriticalPaths = append([]string(nil), p.CriticalPaths...)
	c.IgnorablePaths = append([]string(nil), p.IgnorablePaths...)
	return c
}

// Change is one classified change record to evaluate. The severity
// vocabulary is shared with the diff engine; how the change was produced
// does not matter here.
type Change struct {
	Type     ChangeType       `json:"type"`
	Location string           `json:"location"`
	Severity semdiff.Severity `json:"severity"`
}

// RuleViolation is one exceeded rule with its measured values.
type RuleViolation struct {
	Rule       Rule    `json:"rule"`
	Count      int     `json:"count"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Result is the verdict of evaluating a change set against a profile.
type Result struct {
	Passed             bool               `json:"passed"`
	CriticalViolations []Change           `json:"critical_violations"`
	RuleViolations     []RuleViolation    `json:"rule_violations"`
	IgnoredChanges     []Change           `json:"ignored_changes"`
	ChangesByType      map[ChangeType]int `json:"changes_by_type"`
	TotalChanges       int                `json:"total_changes"`
	Summary            string             `json:"summary"`
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
