package roundtrip

import (
	"strings"

	"github.com/hazyhaar/fidelity/semdiff"
	"github.com/hazyhaar/fidelity/tolerance"
)

// Location-name fragments that identify what aspect a styling change
// touches. Checked against the last path segments, lowercased.
var (
	colorMarkers   = []string{"color", "srgbclr", "sysclr", "solidfill", "fgcolor", "shd", "clrscheme", "clrmap", "highlight"}
	fontMarkers    = []string{"rfonts", "typeface", "latin", "majorfont", "minorfont", "fontscheme", "font", "name/@val"}
	spacingMarkers = []string{"spacing", "sz", "ind", "spc", "kern", "lnspc"}
)

// ChangesFromDiffs converts classified differences into the change records
// the tolerance engine evaluates. One difference yields one change.
func ChangesFromDiffs(diffs []semdiff.SemanticDifference) []tolerance.Change {
	changes := make([]tolerance.Change, 0, len(diffs))
	for _, d := range diffs {
		changes = append(changes, tolerance.Change{
			Type:     changeType(d),
			Location: d.Location,
			Severity: d.Severity,
		})
	}
	return changes
}

func changeType(d semdiff.SemanticDifference) tolerance.ChangeType {
	if d.Severity == semdiff.SeverityIgnorable || strings.HasPrefix(d.Location, "docProps/") {
		return tolerance.MetadataChange
	}
	if d.Context.AffectsContent && d.Category != semdiff.CategoryAdded {
		return tolerance.ContentLoss
	}
	if d.Context.AffectsStyling || d.Context.AffectsStructure {
		loc := strings.ToLower(d.Location)
		switch {
		case containsAny(loc, colorMarkers):
			return tolerance.ColorShift
		case containsAny(loc, fontMarkers):
			return tolerance.FontSubstitution
		case containsAny(loc, spacingMarkers):
			return tolerance.SpacingChange
		default:
			return tolerance.FormattingLoss
		}
	}
	if d.Context.AffectsContent {
		// Added content: counts against formatting, not loss.
		return tolerance.FormattingLoss
	}
	return tolerance.MetadataChange
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
