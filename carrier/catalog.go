package carrier

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/fidelity/oxml"
)

// compiledPattern is the namespace-resolved form of a location pattern.
// Segments are matched as a suffix of a node's ancestor chain; Attr is set
// when the pattern targets an attribute rather than the element itself.
type compiledPattern struct {
	segments []oxml.QName
	attr     *oxml.QName
}

// compilePattern resolves "w:style/w:rPr/w:color/@w:val" style patterns to
// (URI, local) segments using the authoring prefix table. Unprefixed names
// stay namespace-less and only ever match on local name.
func compilePattern(pattern string) (*compiledPattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("carrier: empty location pattern")
	}
	parts := strings.Split(pattern, "/")
	cp := &compiledPattern{}
	for i, part := range parts {
		if strings.HasPrefix(part, "@") {
			if i != len(parts)-1 {
				return nil, fmt.Errorf("carrier: attribute segment not last in %q", pattern)
			}
			q, err := resolveSegment(part[1:], pattern)
			if err != nil {
				return nil, err
			}
			cp.attr = &q
			continue
		}
		q, err := resolveSegment(part, pattern)
		if err != nil {
			return nil, err
		}
		cp.segments = append(cp.segments, q)
	}
	if len(cp.segments) == 0 {
		return nil, fmt.Errorf("carrier: pattern %q has no element segments", pattern)
	}
	return cp, nil
}

func resolveSegment(seg, pattern string) (oxml.QName, error) {
	prefix, local, ok := strings.Cut(seg, ":")
	if !ok {
		return oxml.QName{Local: seg}, nil
	}
	uri, known := oxml.AuthoringNamespaces[prefix]
	if !known {
		return oxml.QName{}, fmt.Errorf("carrier: unknown prefix %q in pattern %q", prefix, pattern)
	}
	return oxml.QName{Space: uri, Local: local}, nil
}

// matchChain reports whether the pattern's element segments are a suffix of
// the given ancestor chain. qualified=false drops namespace URIs and
// compares local names only (the fallback tier).
func (cp *compiledPattern) matchChain(chain []oxml.QName, qualified bool) bool {
	if len(chain) < len(cp.segments) {
		return false
	}
	offset := len(chain) - len(cp.segments)
	for i, seg := range cp.segments {
		got := chain[offset+i]
		if got.Local != seg.Local {
			return false
		}
		if qualified && seg.Space != "" && got.Space != seg.Space {
			return false
		}
	}
	return true
}

// extract pulls the carrier value from a matched node: the targeted
// attribute when the pattern names one, else the node's direct text, else
// nil.
func (cp *compiledPattern) extract(n *oxml.Node, qualified bool) *string {
	if cp.attr != nil {
		if qualified && cp.attr.Space != "" {
			if v, ok := n.Attr(cp.attr.Space, cp.attr.Local); ok {
				return &v
			}
			return nil
		}
		if v, ok := n.AttrLocal(cp.attr.Local); ok {
			return &v
		}
		return nil
	}
	if n.Text != "" {
		t := n.Text
		return &t
	}
	return nil
}

var allDocTypes = []oxml.DocType{oxml.DocTypeWord, oxml.DocTypePresentation, oxml.DocTypeSpreadsheet}

// defaultCatalog lists the carriers the analyzer knows about. Theme
// entries apply to every document type because each package format embeds
// the same drawingml theme part.
var defaultCatalog = []Mapping{
	// Theme color scheme.
	{LocationPattern: "a:clrScheme/a:dk1/a:sysClr/@lastClr", Kind: KindColorScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.color.text", Description: "Primary text color slot",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:lt1/a:sysClr/@lastClr", Kind: KindColorScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.color.background", Description: "Primary background color slot",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:dk2/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceImportant,
		TokenPath: "tokens.color.text2", Description: "Secondary text color slot",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:lt2/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceImportant,
		TokenPath: "tokens.color.background2", Description: "Secondary background color slot",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent1/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.color.accent1", Description: "Accent 1 brand color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent2/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.color.accent2", Description: "Accent 2 brand color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent3/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceImportant,
		TokenPath: "tokens.color.accent3", Description: "Accent 3 color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent4/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceImportant,
		TokenPath: "tokens.color.accent4", Description: "Accent 4 color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent5/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceModerate,
		TokenPath: "tokens.color.accent5", Description: "Accent 5 color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:accent6/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceModerate,
		TokenPath: "tokens.color.accent6", Description: "Accent 6 color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:hlink/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceModerate,
		TokenPath: "tokens.color.hyperlink", Description: "Hyperlink color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:clrScheme/a:folHlink/a:srgbClr/@val", Kind: KindColorScheme, Significance: SignificanceCosmetic,
		TokenPath: "tokens.color.followedHyperlink", Description: "Followed hyperlink color",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},

	// Theme font scheme.
	{LocationPattern: "a:fontScheme/a:majorFont/a:latin/@typeface", Kind: KindFontScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.font.heading", Description: "Heading typeface",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:fontScheme/a:minorFont/a:latin/@typeface", Kind: KindFontScheme, Significance: SignificanceCritical,
		TokenPath: "tokens.font.body", Description: "Body typeface",
		DocTypes: allDocTypes, Namespaces: []string{oxml.NSDrawing}},

	// Shape fills. Authored with the presentation prefix; the picture and
	// spreadsheet-drawing hosts bind the same element under pic:/xdr:, which
	// the local-name fallback tier resolves.
	{LocationPattern: "p:spPr/a:solidFill/a:srgbClr/@val", Kind: KindShapeFill, Significance: SignificanceImportant,
		TokenPath: "tokens.color.shapeFill", Description: "Shape solid fill color",
		DocTypes: allDocTypes,
		Namespaces: []string{oxml.NSPresentation, oxml.NSPicture, oxml.NSSheetDrawing, oxml.NSDrawing}},

	// Word styles and direct formatting.
	{LocationPattern: "w:docDefaults/w:rPrDefault/w:rPr/w:rFonts/@w:ascii", Kind: KindFontScheme, Significance: SignificanceImportant,
		TokenPath: "tokens.font.default", Description: "Default run typeface",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:style/w:rPr/w:color/@w:val", Kind: KindParagraphStyle, Significance: SignificanceImportant,
		TokenPath: "tokens.color.styleText", Description: "Named style text color",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:style/w:rPr/w:rFonts/@w:ascii", Kind: KindCharacterStyle, Significance: SignificanceImportant,
		TokenPath: "tokens.font.style", Description: "Named style typeface",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:style/w:pPr/w:spacing/@w:after", Kind: KindParagraphStyle, Significance: SignificanceModerate,
		TokenPath: "tokens.spacing.after", Description: "Named style paragraph spacing",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:r/w:rPr/w:color/@w:val", Kind: KindCharacterStyle, Significance: SignificanceModerate,
		TokenPath: "tokens.color.runText", Description: "Direct run color",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:r/w:rPr/w:sz/@w:val", Kind: KindCharacterStyle, Significance: SignificanceModerate,
		TokenPath: "tokens.font.runSize", Description: "Direct run size",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},
	{LocationPattern: "w:pPr/w:shd/@w:fill", Kind: KindParagraphStyle, Significance: SignificanceCosmetic,
		TokenPath: "tokens.color.paragraphShading", Description: "Paragraph shading fill",
		DocTypes: []oxml.DocType{oxml.DocTypeWord}, Namespaces: []string{oxml.NSWordprocessing}},

	// Presentation color map and slide text.
	{LocationPattern: "p:clrMap/@bg1", Kind: KindColorMap, Significance: SignificanceImportant,
		TokenPath: "tokens.color.map.bg1", Description: "Color map background slot",
		DocTypes: []oxml.DocType{oxml.DocTypePresentation}, Namespaces: []string{oxml.NSPresentation}},
	{LocationPattern: "p:clrMap/@tx1", Kind: KindColorMap, Significance: SignificanceImportant,
		TokenPath: "tokens.color.map.tx1", Description: "Color map text slot",
		DocTypes: []oxml.DocType{oxml.DocTypePresentation}, Namespaces: []string{oxml.NSPresentation}},
	{LocationPattern: "a:r/a:rPr/a:solidFill/a:srgbClr/@val", Kind: KindCharacterStyle, Significance: SignificanceModerate,
		TokenPath: "tokens.color.slideText", Description: "Slide run color",
		DocTypes: []oxml.DocType{oxml.DocTypePresentation}, Namespaces: []string{oxml.NSDrawing}},
	{LocationPattern: "a:r/a:rPr/@sz", Kind: KindCharacterStyle, Significance: SignificanceModerate,
		TokenPath: "tokens.font.slideSize", Description: "Slide run size",
		DocTypes: []oxml.DocType{oxml.DocTypePresentation}, Namespaces: []string{oxml.NSDrawing}},

	// Spreadsheet styles.
	{LocationPattern: "x:fonts/x:font/x:color/@rgb", Kind: KindCellStyle, Significance: SignificanceImportant,
		TokenPath: "tokens.color.cellFont", Description: "Cell font color",
		DocTypes: []oxml.DocType{oxml.DocTypeSpreadsheet}, Namespaces: []string{oxml.NSSpreadsheet}},
	{LocationPattern: "x:fonts/x:font/x:name/@val", Kind: KindCellStyle, Significance: SignificanceImportant,
		TokenPath: "tokens.font.cell", Description: "Cell typeface",
		DocTypes: []oxml.DocType{oxml.DocTypeSpreadsheet}, Namespaces: []string{oxml.NSSpreadsheet}},
	{LocationPattern: "x:fills/x:fill/x:patternFill/x:fgColor/@rgb", Kind: KindCellStyle, Significance: SignificanceImportant,
		TokenPath: "tokens.color.cellFill", Description: "Cell fill color",
		DocTypes: []oxml.DocType{oxml.DocTypeSpreadsheet}, Namespaces: []string{oxml.NSSpreadsheet}},
}

// catalog is compiled once at init; read-only afterwards.
var catalog []Mapping

func init() {
	catalog = make([]Mapping, len(defaultCatalog))
	copy(catalog, defaultCatalog)
	for i := range catalog {
		cp, err := compilePattern(catalog[i].LocationPattern)
		if err != nil {
			panic(err)
		}
		catalog[i].compiled = cp
	}
}

// Catalog returns the compiled carrier catalog. Callers must not mutate the
// returned mappings.
func Catalog() []Mapping {
	return catalog
}

// applicable returns the catalog entries evaluated for a document type.
// Restricting the scan keeps per-lookup cost low and avoids cross-format
// false positives.
func applicable(docType oxml.DocType) []*Mapping {
	var out []*Mapping
	for i := range catalog {
		if catalog[i].AppliesTo(docType) {
			out = append(out, &catalog[i])
		}
	}
	return out
}

var significanceRank = map[Significance]int{
	SignificanceCritical:  3,
	SignificanceImportant: 2,
	SignificanceModerate:  1,
	SignificanceCosmetic:  0,
}

// StyleSignificance reports whether an (element, attribute) pair is flagged
// as design-significant for a document type, and at what level. The diff
// engine uses this to rank styling changes. Several catalog entries can
// target the same pair (every theme slot ends in srgbClr/@val); the
// highest significance among them wins.
func StyleSignificance(docType oxml.DocType, elem, attr oxml.QName) (Significance, bool) {
	best, found := Significance(""), false
	for _, m := range applicable(docType) {
		cp := m.compiled
		if cp.attr == nil {
			continue
		}
		if cp.attr.Local != attr.Local {
			continue
		}
		if last := cp.segments[len(cp.segments)-1]; last.Local == elem.Local {
			if !found || significanceRank[m.Significance] > significanceRank[best] {
				best, found = m.Significance, true
			}
		}
	}
	return best, found
}
