package tolerance

// Built-in profile names.
const (
	ProfileStrict     = "strict"
	ProfileNormal     = "normal"
	ProfileLenient    = "lenient"
	ProfilePermissive = "permissive"
)

// standardIgnorablePaths are editor-bookkeeping locations excluded from
// counting under normal-and-looser profiles: revision ids, paragraph
// session ids, proofing markers, print timestamps.
var standardIgnorablePaths = []string{
	"rsid",
	"paraId",
	"textId",
	"proofErr",
	"lastRenderedPageBreak",
	"lastPrinted",
	"cp:revision",
}

// builtinProfiles constructs the four default policies. Numbers for the
// normal and lenient formatting budgets are defaults, not compatibility
// constants; AdjustTolerance can change them at runtime.
func builtinProfiles() map[string]*Profile {
	strict := &Profile{
		Name:  ProfileStrict,
		Level: LevelStrict,
		Rules: []Rule{
			{ChangeType: ContentLoss, MaxAbsolute: intPtr(0), MaxPercentage: floatPtr(0),
				Description: "No visible content may be lost"},
			{ChangeType: FormattingLoss, MaxAbsolute: intPtr(10),
				Description: "At most 10 formatting regressions"},
			{ChangeType: ColorShift, MaxAbsolute: intPtr(0), MaxPercentage: floatPtr(0),
				Description: "Brand colors must not shift"},
			{ChangeType: FontSubstitution, MaxAbsolute: intPtr(0),
				Description: "Fonts must not be substituted"},
			{ChangeType: SpacingChange, MaxAbsolute: intPtr(5),
				Description: "At most 5 spacing changes"},
		},
		CriticalPaths: []string{
			"clrScheme",
			"fontScheme",
			"w:body",
		},
	}

	normal := &Profile{
		Name:  ProfileNormal,
		Level: LevelNormal,
		Rules: []Rule{
			{ChangeType: ContentLoss, MaxAbsolute: intPtr(0), MaxPercentage: floatPtr(0),
				Description: "No visible content may be lost"},
			{ChangeType: FormattingLoss, MaxAbsolute: intPtr(25), MaxPercentage: floatPtr(15),
				Description: "Moderate formatting budget"},
			{ChangeType: ColorShift, MaxAbsolute: intPtr(3),
				Description: "A few color shifts tolerated"},
			{ChangeType: FontSubstitution, MaxAbsolute: intPtr(2),
				Description: "Isolated font substitutions tolerated"},
		},
		CriticalPaths: []string{
			"clrScheme",
			"fontScheme",
		},
		IgnorablePaths: append([]string(nil), standardIgnorablePaths...),
	}

	lenient := &Profile{
		Name:  ProfileLenient,
		Level: LevelLenient,
		Rules: []Rule{
			{ChangeType: ContentLoss, MaxAbsolute: intPtr(3), MaxPercentage: floatPtr(2),
				Description: "Minor content loss tolerated"},
			{ChangeType: FormattingLoss, MaxAbsolute: intPtr(100), MaxPercentage: floatPtr(30),
				Description: "Large formatting budget"},
			{ChangeType: ColorShift, MaxPercentage: floatPtr(20),
				Description: "Color shifts tolerated up to 20%"},
		},
		CriticalPaths: []string{
			"clrScheme",
		},
		IgnorablePaths: append([]string(nil), standardIgnorablePaths...),
	}

	permissive := &Profile{
		Name:  ProfilePermissive,
		Level: LevelPermissive,
		Rules: []Rule{
			{ChangeType: ContentLoss, MaxAbsolute: intPtr(10), MaxPercentage: floatPtr(10),
				Description: "Content loss budget for lossy pipelines"},
		},
		// Nothing is unconditionally forbidden.
		CriticalPaths: nil,
		IgnorablePaths: append(append([]string(nil), standardIgnorablePaths...),
			"docProps",
			"bookmarkStart",
			"bookmarkEnd",
			"w:sectPr",
		),
	}

	return map[string]*Profile{
		ProfileStrict:     strict,
		ProfileNormal:     normal,
		ProfileLenient:    lenient,
		ProfilePermissive: permissive,
	}
}

// recommendation keys the static profile lookup table by document type and
// usage context.
type recommendation struct {
	docType string
	usage   string
}

var recommendedProfiles = map[recommendation]string{
	{"word", "legal"}:             ProfileStrict,
	{"word", "brand"}:             ProfileStrict,
	{"word", "internal"}:          ProfileNormal,
	{"presentation", "brand"}:     ProfileStrict,
	{"presentation", "marketing"}: ProfileLenient,
	{"presentation", "internal"}:  ProfileNormal,
	{"spreadsheet", "finance"}:    ProfileStrict,
	{"spreadsheet", "internal"}:   ProfilePermissive,
}

// GetRecommendedProfile returns the profile name suggested for a document
// type and usage context; "normal" for unrecognized combinations, and
// "strict" for anything archival.
func GetRecommendedProfile(docType, usageContext string) string {
	if usageContext == "archival" {
		return ProfileStrict
	}
	if name, ok := recommendedProfiles[recommendation{docType, usageContext}]; ok {
		return name
	}
	return ProfileNormal
}
