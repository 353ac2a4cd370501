package compat

import (
	"fmt"
	"sort"
	"time"

	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/oxml"
)

// kindState accumulates per-carrier-kind evidence across platforms.
type kindState struct {
	tokens   map[string]bool
	perPlat  map[string]bool
	failures map[string]int
}

// GenerateMatrix folds per-platform results into one report. Inputs may be
// partial: a platform whose carrier comparison or tolerance verdict is
// missing still gets a row, flagged Partial, with zeroed fields for the
// data that never arrived. An empty input map yields an empty report, not
// an error.
func GenerateMatrix(docType oxml.DocType, results map[string]*PlatformResult, cfg Config) *CompatibilityReport {
	report := &CompatibilityReport{
		GeneratedAt: time.Now().UTC(),
		DocType:     docType,
		Profile:     cfg.Profile,
	}

	platforms := make([]string, 0, len(results))
	for name := range results {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)

	kindByToken := tokenKinds()
	kinds := make(map[carrier.Kind]*kindState)
	stateFor := func(k carrier.Kind) *kindState {
		st, ok := kinds[k]
		if !ok {
			st = &kindState{
				tokens:   make(map[string]bool),
				perPlat:  make(map[string]bool),
				failures: make(map[string]int),
			}
			kinds[k] = st
		}
		return st
	}

	var survivalSum float64
	var survivalCount, criticalClean, toleranceClean, toleranceKnown int

	for _, name := range platforms {
		r := results[name]
		pc := PlatformCompatibility{Platform: name}
		if r == nil {
			pc.Partial = true
			report.Platforms = append(report.Platforms, pc)
			continue
		}

		if r.Carriers != nil {
			cmp := r.Carriers
			for _, tc := range cmp.TokenChanges {
				pc.TotalCarriers++
				switch tc.Status {
				case carrier.TokenPreserved:
					pc.Preserved++
				case carrier.TokenModified:
					pc.Modified++
				case carrier.TokenLost:
					pc.Lost++
				}
				kind, known := kindByToken[tc.TokenPath]
				if !known {
					continue
				}
				st := stateFor(kind)
				st.tokens[tc.TokenPath] = true
				if _, seen := st.perPlat[name]; !seen {
					st.perPlat[name] = true
				}
				if tc.Status == carrier.TokenModified || tc.Status == carrier.TokenLost {
					st.perPlat[name] = false
					st.failures[tc.TokenPath]++
				}
			}
			pc.SurvivalRate = cmp.PreservationMetrics.PreservationRate
			survivalSum += pc.SurvivalRate
			survivalCount++

			crit := carrier.GetCriticalSurvival(cmp.Converted)
			pc.CriticalFailures = crit.MissingTokens
			if len(pc.CriticalFailures) == 0 {
				criticalClean++
			}
		} else {
			pc.Partial = true
		}

		if r.Tolerance != nil {
			pc.TolerancePassed = r.Tolerance.Passed
			toleranceKnown++
			if r.Tolerance.Passed {
				toleranceClean++
			}
		} else {
			pc.Partial = true
		}

		report.Platforms = append(report.Platforms, pc)
	}

	report.Carriers = carrierRows(kinds)
	report.OverallMetrics = overallMetrics(survivalSum, survivalCount, criticalClean, toleranceClean, toleranceKnown, len(platforms))
	report.Recommendations = recommend(report, cfg.threshold())
	return report
}

// tokenKinds maps every catalog token path to its carrier kind.
func tokenKinds() map[string]carrier.Kind {
	out := make(map[string]carrier.Kind)
	for _, m := range carrier.Catalog() {
		out[m.TokenPath] = m.Kind
	}
	return out
}

func carrierRows(kinds map[carrier.Kind]*kindState) []CarrierCompatibility {
	names := make([]carrier.Kind, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	rows := make([]CarrierCompatibility, 0, len(names))
	for _, k := range names {
		st := kinds[k]
		row := CarrierCompatibility{
			Kind:            k,
			TotalTokens:     len(st.tokens),
			PlatformResults: st.perPlat,
		}
		// Worst offenders first, ties broken by path for stable output.
		type fail struct {
			path  string
			count int
		}
		fails := make([]fail, 0, len(st.failures))
		for p, n := range st.failures {
			fails = append(fails, fail{p, n})
		}
		sort.Slice(fails, func(i, j int) bool {
			if fails[i].count != fails[j].count {
				return fails[i].count > fails[j].count
			}
			return fails[i].path < fails[j].path
		})
		for _, f := range fails {
			row.CommonFailures = append(row.CommonFailures, f.path)
		}
		rows = append(rows, row)
	}
	return rows
}

func overallMetrics(survivalSum float64, survivalCount, criticalClean, toleranceClean, toleranceKnown, platformCount int) OverallMetrics {
	m := OverallMetrics{}
	if survivalCount > 0 {
		m.OverallSurvivalRate = survivalSum / float64(survivalCount)
	}
	if platformCount > 0 {
		m.CriticalSuccessRate = 100 * float64(criticalClean) / float64(platformCount)
	}
	tolRate := 0.0
	if toleranceKnown > 0 {
		tolRate = 100 * float64(toleranceClean) / float64(toleranceKnown)
	}
	// Survival dominates; critical carrier health and tolerance verdicts
	// refine the score.
	m.ReliabilityScore = 0.5*m.OverallSurvivalRate + 0.3*m.CriticalSuccessRate + 0.2*tolRate
	return m
}

func recommend(r *CompatibilityReport, threshold float64) []string {
	var recs []string
	for _, p := range r.Platforms {
		if p.Partial && p.TotalCarriers == 0 {
			recs = append(recs, fmt.Sprintf("no carrier data for %s; conversion output could not be analyzed", p.Platform))
			continue
		}
		if p.SurvivalRate < threshold {
			recs = append(recs, fmt.Sprintf("%s preserves only %.1f%% of design tokens (threshold %.0f%%); review its conversion pipeline", p.Platform, p.SurvivalRate, threshold))
		}
		for _, tok := range p.CriticalFailures {
			recs = append(recs, fmt.Sprintf("%s drops critical token %s", p.Platform, tok))
		}
	}
	for _, c := range r.Carriers {
		failing := 0
		for _, ok := range c.PlatformResults {
			if !ok {
				failing++
			}
		}
		if len(c.PlatformResults) > 0 && failing*2 >= len(c.PlatformResults) {
			recs = append(recs, fmt.Sprintf("%s carriers regress on %d of %d platforms; prefer direct formatting or embedded fallbacks", c.Kind, failing, len(c.PlatformResults)))
		}
	}
	if len(recs) == 0 && len(r.Platforms) > 0 {
		recs = append(recs, "all platforms meet the survival threshold; template is safe to distribute")
	}
	return recs
}
