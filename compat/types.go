// Package compat folds per-platform diff, carrier, and tolerance results
// into a single compatibility report for the rendering layer.
package compat

import (
	"time"

	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/oxml"
	"github.com/hazyhaar/fidelity/semdiff"
	"github.com/hazyhaar/fidelity/tolerance"
)

// PlatformResult is the per-platform input to the aggregator. Any field
// may be nil when the producing component failed; the report is then
// partial for that platform rather than absent.
type PlatformResult struct {
	Carriers  *carrier.Comparison
	Tolerance *tolerance.Result
	Diff      *semdiff.DiffSummary
}

// Config tunes aggregation.
type Config struct {
	// SurvivalThreshold is the per-platform survival percentage below which
	// a recommendation is emitted. Zero means the default of 70.
	SurvivalThreshold float64
	// Profile names the tolerance profile the inputs were evaluated with;
	// recorded in the report for traceability.
	Profile string
}

func (c *Config) threshold() float64 {
	if c.SurvivalThreshold <= 0 {
		return 70
	}
	return c.SurvivalThreshold
}

// PlatformCompatibility is the per-platform slice of the report.
type PlatformCompatibility struct {
	Platform         string   `json:"platform"`
	TotalCarriers    int      `json:"total_carriers"`
	Preserved        int      `json:"preserved"`
	Modified         int      `json:"modified"`
	Lost             int      `json:"lost"`
	SurvivalRate     float64  `json:"survival_rate"`
	CriticalFailures []string `json:"critical_failures"`
	TolerancePassed  bool     `json:"tolerance_passed"`
	Partial          bool     `json:"partial"`
}

// CarrierCompatibility is the per-carrier-kind slice of the report.
type CarrierCompatibility struct {
	Kind            carrier.Kind    `json:"carrier_kind"`
	TotalTokens     int             `json:"total_tokens"`
	PlatformResults map[string]bool `json:"platform_results"`
	CommonFailures  []string        `json:"common_failures"`
}

// OverallMetrics are the cross-platform aggregates.
type OverallMetrics struct {
	OverallSurvivalRate float64 `json:"overall_survival_rate"`
	CriticalSuccessRate float64 `json:"critical_success_rate"`
	ReliabilityScore    float64 `json:"reliability_score"`
}

// CompatibilityReport is the aggregator's read-only output.
type CompatibilityReport struct {
	GeneratedAt     time.Time               `json:"generated_at"`
	DocType         oxml.DocType            `json:"doc_type"`
	Profile         string                  `json:"profile"`
	Platforms       []PlatformCompatibility `json:"platforms"`
	Carriers        []CarrierCompatibility  `json:"carriers"`
	OverallMetrics  OverallMetrics          `json:"overall_metrics"`
	Recommendations []string                `json:"recommendations"`
}
