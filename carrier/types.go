// Package carrier maps markup locations to design-token identities and
// measures how well those tokens survive a document round trip.
//
// The catalog is static: every Mapping describes one markup location known
// to hold a token-controlled value (a theme color slot, a style font, a
// shape fill). Patterns are authored against one prefix convention and
// compiled to namespace-URI form at load time, with a local-name-only
// fallback, because the same semantic carrier appears under different
// prefixes per host document type.
package carrier

import "github.com/hazyhaar/fidelity/oxml"

// Kind classifies what a carrier holds.
type Kind string

const (
	KindColorScheme    Kind = "COLOR_SCHEME"
	KindFontScheme     Kind = "FONT_SCHEME"
	KindParagraphStyle Kind = "PARAGRAPH_STYLE"
	KindCharacterStyle Kind = "CHARACTER_STYLE"
	KindColorMap       Kind = "COLOR_MAP"
	KindCellStyle      Kind = "CELL_STYLE"
	KindShapeFill      Kind = "SHAPE_FILL"
)

// Kinds returns every carrier kind.
func Kinds() []Kind {
	return []Kind{
		KindColorScheme, KindFontScheme, KindParagraphStyle,
		KindCharacterStyle, KindColorMap, KindCellStyle, KindShapeFill,
	}
}

// Significance ranks how much a lost carrier hurts.
type Significance string

const (
	SignificanceCritical  Significance = "CRITICAL"
	SignificanceImportant Significance = "IMPORTANT"
	SignificanceModerate  Significance = "MODERATE"
	SignificanceCosmetic  Significance = "COSMETIC"
)

// Significances returns every level, highest first.
func Significances() []Significance {
	return []Significance{
		SignificanceCritical, SignificanceImportant,
		SignificanceModerate, SignificanceCosmetic,
	}
}

// Mapping is one catalog entry binding a markup location to a design token.
// Loaded once at startup, read-only, shared by all analyses.
type Mapping struct {
	LocationPattern string         `json:"location_pattern"`
	Kind            Kind           `json:"carrier_kind"`
	Significance    Significance   `json:"significance"`
	TokenPath       string         `json:"design_token_path"`
	Description     string         `json:"description"`
	DocTypes        []oxml.DocType `json:"applicable_document_types"`
	Namespaces      []string       `json:"namespace_identities"`

	compiled *compiledPattern
}

// AppliesTo reports whether the mapping is evaluated for a document type.
func (m *Mapping) AppliesTo(docType oxml.DocType) bool {
	for _, t := range m.DocTypes {
		if t == docType {
			return true
		}
	}
	return false
}

// Detected is one carrier found in a document: the catalog mapping, the
// normalized path of the matched node, and the value extracted there.
// ExtractedValue is nil when the location carries neither the targeted
// attribute nor direct text.
type Detected struct {
	Mapping        *Mapping `json:"mapping"`
	MatchedNode    string   `json:"matched_node"`
	ExtractedValue *string  `json:"extracted_value"`
}

// BreakdownEntry is the per-significance survival accounting.
type BreakdownEntry struct {
	Detected     int     `json:"detected"`
	Missing      int     `json:"missing"`
	Total        int     `json:"total"`
	SurvivalRate float64 `json:"survival_rate"`
}

// AnalysisResult is the outcome of scanning one document against the
// catalog. Built fresh per call, never mutated after return.
type AnalysisResult struct {
	DocType           oxml.DocType                    `json:"doc_type"`
	Carriers          []Detected                      `json:"carriers"`
	SurvivalRate      float64                         `json:"survival_rate"`
	CategoryBreakdown map[Significance]BreakdownEntry `json:"category_breakdown"`
}

// TokenStatus classifies one token path across a document pair.
type TokenStatus string

const (
	TokenPreserved TokenStatus = "preserved"
	TokenModified  TokenStatus = "modified"
	TokenLost      TokenStatus = "lost"
	TokenGained    TokenStatus = "gained"
)

// TokenChange is the per-token verdict of a comparison.
type TokenChange struct {
	TokenPath string      `json:"token_path"`
	Status    TokenStatus `json:"status"`
	OldValue  string      `json:"old_value,omitempty"`
	NewValue  string      `json:"new_value,omitempty"`
}

// PreservationMetrics summarizes a comparison.
type PreservationMetrics struct {
	PreservationRate float64 `json:"preservation_rate"`
	ModificationRate float64 `json:"modification_rate"`
	LossRate         float64 `json:"loss_rate"`
	ChangeRatio      float64 `json:"change_ratio"`
}

// Comparison is the result of running carrier analysis on both versions of
// a document.
type Comparison struct {
	PreservationMetrics PreservationMetrics `json:"preservation_metrics"`
	TokenChanges        []TokenChange       `json:"token_changes"`
	Original            AnalysisResult      `json:"original"`
	Converted           AnalysisResult      `json:"converted"`
}

// CriticalSurvival is the critical-significance slice of an analysis.
type CriticalSurvival struct {
	DetectedCount  int      `json:"detected_count"`
	MissingCount   int      `json:"missing_count"`
	SurvivalRate   float64  `json:"survival_rate"`
	DetectedTokens []string `json:"detected_tokens"`
	MissingTokens  []string `json:"missing_tokens"`
}
