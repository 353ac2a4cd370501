package tolerance

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hazyhaar/fidelity/semdiff"
)

func formattingChanges(n int) []Change {
	changes := make([]Change, n)
	for i := range changes {
		changes[i] = Change{
			Type:     FormattingLoss,
			Location: "word/document.xml:w:document/w:body/w:p/w:r/w:rPr",
			Severity: semdiff.SeverityMajor,
		}
	}
	return changes
}

func TestBuiltinProfilesRegistered(t *testing.T) {
	c := NewConfig()
	want := []string{ProfileLenient, ProfileNormal, ProfilePermissive, ProfileStrict}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestStrictVsLenientFormattingBudget(t *testing.T) {
	// Twenty formatting regressions among seventy changes: over strict's
	// absolute budget of 10, inside lenient's budget of 100 and 30%.
	c := NewConfig()
	changes := formattingChanges(20)
	for i := 0; i < 50; i++ {
		changes = append(changes, Change{
			Type:     MetadataChange,
			Location: "docProps/app.xml:Properties/Company",
			Severity: semdiff.SeverityMinor,
		})
	}

	strict, err := c.Evaluate(changes, ProfileStrict)
	if err != nil {
		t.Fatal(err)
	}
	if strict.Passed {
		t.Fatal("strict should fail on 20 formatting changes")
	}
	if len(strict.RuleViolations) == 0 {
		t.Fatal("strict failure must name the violated rule")
	}
	v := strict.RuleViolations[0]
	if v.Rule.ChangeType != FormattingLoss || v.Count != 20 {
		t.Fatalf("violation = %+v", v)
	}

	lenient, err := c.Evaluate(changes, ProfileLenient)
	if err != nil {
		t.Fatal(err)
	}
	if !lenient.Passed {
		t.Fatalf("lenient should pass: %s", lenient.Summary)
	}
}

func TestCriticalPathBypassesBudget(t *testing.T) {
	// One critical change on a protected path fails normal even though the
	// color budget would allow it numerically.
	c := NewConfig()
	changes := []Change{{
		Type:     ColorShift,
		Location: "word/theme/theme1.xml:a:theme/a:themeElements/a:clrScheme/a:accent1/a:srgbClr/@val",
		Severity: semdiff.SeverityCritical,
	}}

	res, err := c.Evaluate(changes, ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Fatal("critical clrScheme change must fail the normal profile")
	}
	if len(res.CriticalViolations) != 1 {
		t.Fatalf("critical violations = %d, want 1", len(res.CriticalViolations))
	}
	// Bypassed changes are not double-counted against numeric rules.
	if len(res.RuleViolations) != 0 {
		t.Fatalf("rule violations = %+v, want none", res.RuleViolations)
	}
}

func TestIgnorablePathsExcludedFromCounting(t *testing.T) {
	c := NewConfig()
	changes := []Change{
		{Type: MetadataChange, Location: "word/document.xml:w:document/w:body/w:p/@w:rsidR", Severity: semdiff.SeverityIgnorable},
		{Type: MetadataChange, Location: "docProps/core.xml:cp:coreProperties/cp:revision", Severity: semdiff.SeverityIgnorable},
	}

	res, err := c.Evaluate(changes, ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Fatalf("bookkeeping churn must pass: %s", res.Summary)
	}
	if len(res.IgnoredChanges) != 2 {
		t.Fatalf("ignored = %d, want 2", len(res.IgnoredChanges))
	}
	if res.TotalChanges != 2 {
		t.Fatalf("total = %d, want 2", res.TotalChanges)
	}
}

func TestChangesByTypeAlwaysComplete(t *testing.T) {
	c := NewConfig()
	res, err := c.Evaluate(nil, ProfilePermissive)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Fatal("empty change set must pass")
	}
	for _, ct := range ChangeTypes() {
		if _, ok := res.ChangesByType[ct]; !ok {
			t.Fatalf("ChangesByType missing %s", ct)
		}
	}
}

func TestContentLossNeverToleratedByStrict(t *testing.T) {
	c := NewConfig()
	changes := []Change{{
		Type:     ContentLoss,
		Location: "word/document.xml:w:document/w:body/w:p/w:r/w:t",
		Severity: semdiff.SeverityCritical,
	}}

	for _, profile := range []string{ProfileStrict, ProfileNormal} {
		res, err := c.Evaluate(changes, profile)
		if err != nil {
			t.Fatal(err)
		}
		if res.Passed {
			t.Fatalf("%s must reject content loss", profile)
		}
	}
}

func TestEvaluateUnknownProfile(t *testing.T) {
	c := NewConfig()
	if _, err := c.Evaluate(nil, "no-such-profile"); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile", err)
	}
}

func TestAdjustToleranceValidation(t *testing.T) {
	c := NewConfig()

	bad := 101.0
	if err := c.AdjustTolerance(ProfileNormal, ColorShift, &bad, nil); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}
	neg := -1.0
	if err := c.AdjustTolerance(ProfileNormal, ColorShift, &neg, nil); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}
	ok := 50.0
	if err := c.AdjustTolerance("missing", ColorShift, &ok, nil); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile", err)
	}
}

func TestAdjustToleranceChangesOnlyThisRegistry(t *testing.T) {
	c := NewConfig()
	abs := 500
	if err := c.AdjustTolerance(ProfileStrict, FormattingLoss, nil, &abs); err != nil {
		t.Fatal(err)
	}

	adjusted, err := c.Profile(ProfileStrict)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range adjusted.Rules {
		if r.ChangeType == FormattingLoss {
			found = true
			if r.MaxAbsolute == nil || *r.MaxAbsolute != 500 {
				t.Fatalf("adjusted limit = %v", r.MaxAbsolute)
			}
		}
	}
	if !found {
		t.Fatal("formatting rule missing after adjustment")
	}

	// A fresh registry still carries the pristine default.
	fresh, err := NewConfig().Profile(ProfileStrict)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range fresh.Rules {
		if r.ChangeType == FormattingLoss && (r.MaxAbsolute == nil || *r.MaxAbsolute != 10) {
			t.Fatalf("fresh strict formatting limit = %v, want 10", r.MaxAbsolute)
		}
	}
}

func TestCustomProfileLifecycle(t *testing.T) {
	c := NewConfig()

	p, err := c.CreateCustomProfile("brand-review", ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "brand-review" || p.Level != LevelNormal {
		t.Fatalf("profile = %+v", p)
	}

	// Built-ins cannot be shadowed or removed.
	if _, err := c.CreateCustomProfile(ProfileStrict, ProfileNormal); !errors.Is(err, ErrBuiltinProfile) {
		t.Fatalf("err = %v, want ErrBuiltinProfile", err)
	}
	if err := c.RemoveProfile(ProfileNormal); !errors.Is(err, ErrBuiltinProfile) {
		t.Fatalf("err = %v, want ErrBuiltinProfile", err)
	}

	if err := c.RemoveProfile("brand-review"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Profile("brand-review"); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile after removal", err)
	}
}

func TestProfileCloneIsolation(t *testing.T) {
	c := NewConfig()
	p, err := c.Profile(ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if p.Rules[0].MaxAbsolute != nil {
		*p.Rules[0].MaxAbsolute = 999
	}
	p.CriticalPaths = append(p.CriticalPaths, "mutated")

	again, err := c.Profile(ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if again.Rules[0].MaxAbsolute != nil && *again.Rules[0].MaxAbsolute == 999 {
		t.Fatal("mutating a returned profile leaked into the registry")
	}
	for _, cp := range again.CriticalPaths {
		if cp == "mutated" {
			t.Fatal("mutating returned paths leaked into the registry")
		}
	}
}

func TestProfileFileRoundTrip(t *testing.T) {
	c := NewConfig()
	orig, err := c.CreateCustomProfile("roundtrip", ProfileLenient)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.json")
	if err := c.SaveProfile("roundtrip", path); err != nil {
		t.Fatal(err)
	}

	c2 := NewConfig()
	loaded, err := c2.LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(orig, loaded) {
		t.Fatalf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", orig, loaded)
	}
}

func TestWithinTolerance(t *testing.T) {
	abs, pct := 5, 10.0
	r := Rule{ChangeType: FormattingLoss, MaxAbsolute: &abs, MaxPercentage: &pct}

	if !r.WithinTolerance(5, 100) {
		t.Fatal("5 of 100 is inside both limits")
	}
	if r.WithinTolerance(6, 100) {
		t.Fatal("6 exceeds the absolute limit")
	}
	if r.WithinTolerance(5, 20) {
		t.Fatal("25% exceeds the percentage limit")
	}
	// Zero total: percentage is 0 by definition.
	if !r.WithinTolerance(0, 0) {
		t.Fatal("empty change set is always within tolerance")
	}

	unlimited := Rule{ChangeType: FormattingLoss}
	if !unlimited.WithinTolerance(1_000_000, 1) {
		t.Fatal("rule without limits never trips")
	}
}

func TestGetRecommendedProfile(t *testing.T) {
	tests := []struct {
		docType, usage, want string
	}{
		{"word", "legal", ProfileStrict},
		{"presentation", "marketing", ProfileLenient},
		{"spreadsheet", "internal", ProfilePermissive},
		{"word", "archival", ProfileStrict},
		{"word", "unknown-context", ProfileNormal},
		{"", "", ProfileNormal},
	}
	for _, tt := range tests {
		if got := GetRecommendedProfile(tt.docType, tt.usage); got != tt.want {
			t.Errorf("GetRecommendedProfile(%q, %q) = %q, want %q", tt.docType, tt.usage, got, tt.want)
		}
	}
}
