package semdiff

// Filter returns differences at or above minSeverity, restricted to the
// given categories when any are named.
func Filter(diffs []SemanticDifference, minSeverity Severity, categories ...Category) []SemanticDifference {
	var out []SemanticDifference
	for _, d := range diffs {
		if !d.Severity.AtLeast(minSeverity) {
			continue
		}
		if len(categories) > 0 && !containsCategory(categories, d.Category) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func containsCategory(cs []Category, c Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// GetPreservationMetrics partitions differences by their context flags and
// reports per-aspect preservation relative to totalElements. A zero
// totalElements yields full preservation and a zero change ratio, never a
// division fault.
func GetPreservationMetrics(diffs []SemanticDifference, totalElements int) PreservationMetrics {
	if totalElements <= 0 {
		return PreservationMetrics{
			OverallPreservation:   1,
			ContentPreservation:   1,
			StylePreservation:     1,
			StructurePreservation: 1,
		}
	}

	var content, style, structure, nonIgnorable int
	for _, d := range diffs {
		if d.Severity == SeverityIgnorable {
			continue
		}
		nonIgnorable++
		if d.Context.AffectsContent {
			content++
		}
		if d.Context.AffectsStyling {
			style++
		}
		if d.Context.AffectsStructure {
			structure++
		}
	}

	preservation := func(affected int) float64 {
		return clamp(1-float64(affected)/float64(totalElements), 0, 1)
	}
	return PreservationMetrics{
		OverallPreservation:   preservation(nonIgnorable),
		ContentPreservation:   preservation(content),
		StylePreservation:     preservation(style),
		StructurePreservation: preservation(structure),
		ChangeRatio:           float64(len(diffs)) / float64(totalElements),
	}
}
