// Package semdiff computes namespace-aware structural diffs between two
// parsed versions of the same document and classifies every difference by
// category and severity.
package semdiff

// Category says on which side of the pair a difference lives.
type Category string

const (
	CategoryAdded    Category = "ADDED"
	CategoryDropped  Category = "DROPPED"
	CategoryModified Category = "MODIFIED"
)

// Categories returns every difference category.
func Categories() []Category {
	return []Category{CategoryAdded, CategoryDropped, CategoryModified}
}

// Severity ranks how much a difference matters.
type Severity string

const (
	SeverityCritical  Severity = "CRITICAL"
	SeverityMajor     Severity = "MAJOR"
	SeverityMinor     Severity = "MINOR"
	SeverityIgnorable Severity = "IGNORABLE"
)

// Severities returns every severity, highest first.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeverityIgnorable}
}

var severityRank = map[Severity]int{
	SeverityCritical:  3,
	SeverityMajor:     2,
	SeverityMinor:     1,
	SeverityIgnorable: 0,
}

// AtLeast reports whether s ranks at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Context flags what aspects of the document a difference touches.
type Context struct {
	AffectsContent   bool `json:"affects_content"`
	AffectsStyling   bool `json:"affects_styling"`
	AffectsStructure bool `json:"affects_structure"`
}

// SemanticDifference is one detected delta between the two versions.
// Created only by Analyze; immutable.
type SemanticDifference struct {
	Location    string   `json:"location"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	OldValue    string   `json:"old_value,omitempty"`
	NewValue    string   `json:"new_value,omitempty"`
	Context     Context  `json:"context"`
}

// DiffSummary aggregates a difference list. ByCategory and BySeverity
// always carry an entry for every defined tag, zero or not.
type DiffSummary struct {
	TotalDifferences int                  `json:"total_differences"`
	ByCategory       map[Category]int     `json:"by_category"`
	BySeverity       map[Severity]int     `json:"by_severity"`
	CriticalChanges  []SemanticDifference `json:"critical_changes"`
	PreservationRate float64              `json:"preservation_rate"`
}

// PreservationMetrics partitions differences by their context flags into
// per-aspect preservation ratios in [0,1]. ChangeRatio is unclamped and may
// exceed 1 when many attributes change per element.
type PreservationMetrics struct {
	OverallPreservation   float64 `json:"overall_preservation"`
	ContentPreservation   float64 `json:"content_preservation"`
	StylePreservation     float64 `json:"style_preservation"`
	StructurePreservation float64 `json:"structure_preservation"`
	ChangeRatio           float64 `json:"change_ratio"`
}
