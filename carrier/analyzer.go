package carrier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/fidelity/oxml"
)

// Analyze scans one document against the catalog. Unparseable input never
// errors: it yields zero detected carriers and survival 0, so a broken
// round-trip artifact reads as total loss rather than a fault.
func Analyze(data []byte, docType oxml.DocType) AnalysisResult {
	doc, err := oxml.ParseAs(data, docType)
	if err != nil {
		return emptyResult(docType)
	}
	return AnalyzeDocument(doc)
}

// AnalyzeDocument scans an already-parsed document.
func AnalyzeDocument(doc *oxml.ParsedDocument) AnalysisResult {
	mappings := applicable(doc.Type)

	// Two match tiers per mapping: URI-qualified first, local-name-only as
	// fallback when the qualified tier finds nothing.
	type matchSet struct {
		qualified []Detected
		fallback  []Detected
	}
	matches := make([]matchSet, len(mappings))

	doc.Walk(func(path string, chain []oxml.QName, n *oxml.Node) {
		for i, m := range mappings {
			cp := m.compiled
			if cp.matchChain(chain, true) {
				matches[i].qualified = append(matches[i].qualified, Detected{
					Mapping:        m,
					MatchedNode:    path,
					ExtractedValue: cp.extract(n, true),
				})
			} else if cp.matchChain(chain, false) {
				matches[i].fallback = append(matches[i].fallback, Detected{
					Mapping:        m,
					MatchedNode:    path,
					ExtractedValue: cp.extract(n, false),
				})
			}
		}
	})

	res := AnalysisResult{
		DocType:           doc.Type,
		CategoryBreakdown: make(map[Significance]BreakdownEntry, 4),
	}
	for _, s := range Significances() {
		res.CategoryBreakdown[s] = BreakdownEntry{}
	}

	for i, m := range mappings {
		found := matches[i].qualified
		if len(found) == 0 {
			found = matches[i].fallback
		}
		entry := res.CategoryBreakdown[m.Significance]
		if len(found) > 0 {
			entry.Detected++
			res.Carriers = append(res.Carriers, found...)
		} else {
			entry.Missing++
		}
		res.CategoryBreakdown[m.Significance] = entry
	}

	var detected, total int
	for s, entry := range res.CategoryBreakdown {
		entry.Total = entry.Detected + entry.Missing
		entry.SurvivalRate = rate(entry.Detected, entry.Total)
		res.CategoryBreakdown[s] = entry
		detected += entry.Detected
		total += entry.Total
	}
	res.SurvivalRate = rate(detected, total)
	return res
}

func emptyResult(docType oxml.DocType) AnalysisResult {
	res := AnalysisResult{
		DocType:           docType,
		CategoryBreakdown: make(map[Significance]BreakdownEntry, 4),
	}
	for _, s := range Significances() {
		res.CategoryBreakdown[s] = BreakdownEntry{}
	}
	return res
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

// Compare analyzes both versions of a document and classifies every design
// token seen in either as preserved, modified, lost, or gained.
func Compare(original, converted []byte, docType oxml.DocType) Comparison {
	return CompareResults(Analyze(original, docType), Analyze(converted, docType))
}

// CompareResults is Compare over pre-computed analyses.
func CompareResults(orig, conv AnalysisResult) Comparison {
	origVals := tokenValues(orig)
	convVals := tokenValues(conv)

	var paths []string
	seen := make(map[string]bool)
	for _, d := range orig.Carriers {
		if !seen[d.Mapping.TokenPath] {
			seen[d.Mapping.TokenPath] = true
			paths = append(paths, d.Mapping.TokenPath)
		}
	}
	for _, d := range conv.Carriers {
		if !seen[d.Mapping.TokenPath] {
			seen[d.Mapping.TokenPath] = true
			paths = append(paths, d.Mapping.TokenPath)
		}
	}
	sort.Strings(paths)

	cmp := Comparison{Original: orig, Converted: conv}
	var preserved, modified, lost, gained int
	for _, p := range paths {
		ov, inOrig := origVals[p]
		cv, inConv := convVals[p]
		tc := TokenChange{TokenPath: p, OldValue: deref(ov), NewValue: deref(cv)}
		switch {
		case inOrig && inConv && valueEq(ov, cv):
			tc.Status = TokenPreserved
			preserved++
		case inOrig && inConv:
			tc.Status = TokenModified
			modified++
		case inOrig:
			tc.Status = TokenLost
			lost++
		default:
			tc.Status = TokenGained
			gained++
		}
		cmp.TokenChanges = append(cmp.TokenChanges, tc)
	}

	denom := preserved + modified + lost
	cmp.PreservationMetrics = PreservationMetrics{
		PreservationRate: rate(preserved, denom),
		ModificationRate: rate(modified, denom),
		LossRate:         rate(lost, denom),
		ChangeRatio:      float64(modified+lost+gained) / float64(max(1, len(paths))),
	}
	return cmp
}

// tokenValues maps each detected token path to the value at its first
// matched location.
func tokenValues(res AnalysisResult) map[string]*string {
	vals := make(map[string]*string)
	for _, d := range res.Carriers {
		if _, ok := vals[d.Mapping.TokenPath]; !ok {
			vals[d.Mapping.TokenPath] = d.ExtractedValue
		}
	}
	return vals
}

func valueEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Survival extracts the detected/missing accounting for one significance
// level from an analysis.
func Survival(res AnalysisResult, level Significance) CriticalSurvival {
	detected := make(map[string]bool)
	for _, d := range res.Carriers {
		if d.Mapping.Significance == level {
			detected[d.Mapping.TokenPath] = true
		}
	}

	out := CriticalSurvival{}
	for _, m := range applicable(res.DocType) {
		if m.Significance != level {
			continue
		}
		if detected[m.TokenPath] {
			out.DetectedTokens = append(out.DetectedTokens, m.TokenPath)
		} else {
			out.MissingTokens = append(out.MissingTokens, m.TokenPath)
		}
	}
	sort.Strings(out.DetectedTokens)
	sort.Strings(out.MissingTokens)
	out.DetectedCount = len(out.DetectedTokens)
	out.MissingCount = len(out.MissingTokens)
	out.SurvivalRate = rate(out.DetectedCount, out.DetectedCount+out.MissingCount)
	return out
}

// GetCriticalSurvival reports how the CRITICAL-significance carriers fared
// in one analysis.
func GetCriticalSurvival(res AnalysisResult) CriticalSurvival {
	return Survival(res, SignificanceCritical)
}

// Report renders a comparison as a deterministic text summary. The
// "Preservation Rate" line and "Category Breakdown" header are stable
// contract points for downstream parsing.
func Report(cmp Comparison) string {
	var b strings.Builder
	b.WriteString("Design Token Carrier Report\n")
	b.WriteString("===========================\n")
	fmt.Fprintf(&b, "Document Type: %s\n", cmp.Original.DocType)
	fmt.Fprintf(&b, "Preservation Rate: %.1f%%\n", cmp.PreservationMetrics.PreservationRate)

	var preserved, modified, lost, gained int
	for _, tc := range cmp.TokenChanges {
		switch tc.Status {
		case TokenPreserved:
			preserved++
		case TokenModified:
			modified++
		case TokenLost:
			lost++
		case TokenGained:
			gained++
		}
	}
	fmt.Fprintf(&b, "Tokens: %d preserved, %d modified, %d lost, %d gained\n", preserved, modified, lost, gained)

	b.WriteString("\nCategory Breakdown\n")
	b.WriteString("------------------\n")
	for _, s := range Significances() {
		entry := cmp.Converted.CategoryBreakdown[s]
		fmt.Fprintf(&b, "%-10s detected %d/%d (%.1f%%)\n", string(s)+":", entry.Detected, entry.Total, entry.SurvivalRate)
	}

	if modified+lost > 0 {
		b.WriteString("\nChanged Tokens\n")
		b.WriteString("--------------\n")
		for _, tc := range cmp.TokenChanges {
			switch tc.Status {
			case TokenModified:
				fmt.Fprintf(&b, "%s: %q -> %q\n", tc.TokenPath, tc.OldValue, tc.NewValue)
			case TokenLost:
				fmt.Fprintf(&b, "%s: lost (was %q)\n", tc.TokenPath, tc.OldValue)
			}
		}
	}
	return b.String()
}
