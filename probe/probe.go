// Package probe builds small synthetic OOXML packages with known design
// tokens. The builders exist for two callers: package tests that need
// documents with controlled token values, and the CLI self-check that
// verifies the analysis pipeline against a document whose expected results
// are known in advance.
package probe

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Paragraph describes one body paragraph of a generated docx.
type Paragraph struct {
	Text    string
	Color   string // hex without #, empty for inherited
	Font    string
	Size    string // half-points, e.g. "24"
	Shading string // paragraph shading fill hex
}

// SlideRun describes one text run of a generated pptx slide.
type SlideRun struct {
	Text  string
	Color string
	Size  string // hundredths of a point, e.g. "1800"
}

type config struct {
	theme     bool
	dk1, lt1  string
	dk2, lt2  string
	accents   [6]string
	hlink     string
	folHlink  string
	majorFont string
	minorFont string

	paragraphs []Paragraph
	styleColor string
	styleFont  string
	spacing    string
	revision   string

	slideRuns []SlideRun
	shapeFill string

	cellFont      string
	cellFontColor string
	cellFill      string
}

func defaults() config {
	return config{
		theme:     true,
		dk1:       "000000",
		lt1:       "FFFFFF",
		dk2:       "1F3864",
		lt2:       "E7E6E6",
		accents:   [6]string{"4472C4", "ED7D31", "A5A5A5", "FFC000", "5B9BD5", "70AD47"},
		hlink:     "0563C1",
		folHlink:  "954F72",
		majorFont: "Calibri Light",
		minorFont: "Calibri",

		paragraphs: []Paragraph{{Text: "Quarterly results", Color: "2E74B5", Font: "Calibri Light", Size: "28"}},
		styleColor: "2E74B5",
		styleFont:  "Calibri Light",
		spacing:    "240",

		slideRuns: []SlideRun{{Text: "Quarterly results", Color: "44546A", Size: "1800"}},
		shapeFill: "4472C4",

		cellFont:      "Calibri",
		cellFontColor: "FF1F3864",
		cellFill:      "FF4472C4",
	}
}

// Option adjusts a generated package.
type Option func(*config)

// WithoutTheme omits the theme part, simulating a converter that strips it.
func WithoutTheme() Option {
	return func(c *config) { c.theme = false }
}

// WithAccent overrides one accent slot (1-6).
func WithAccent(slot int, hex string) Option {
	return func(c *config) {
		if slot >= 1 && slot <= 6 {
			c.accents[slot-1] = hex
		}
	}
}

// WithThemeFonts overrides the major and minor typefaces.
func WithThemeFonts(major, minor string) Option {
	return func(c *config) {
		c.majorFont = major
		c.minorFont = minor
	}
}

// WithParagraphs replaces the docx body.
func WithParagraphs(ps ...Paragraph) Option {
	return func(c *config) { c.paragraphs = ps }
}

// WithHeadingStyle overrides the named style's color and typeface in the
// docx styles part.
func WithHeadingStyle(color, font string) Option {
	return func(c *config) {
		c.styleColor = color
		c.styleFont = font
	}
}

// WithSpacing overrides the named style's spacing-after value (twentieths
// of a point).
func WithSpacing(v string) Option {
	return func(c *config) { c.spacing = v }
}

// WithRevision stamps editor bookkeeping onto the docx: rsid attributes on
// every paragraph and a revision number in the core properties.
func WithRevision(rsid string) Option {
	return func(c *config) { c.revision = rsid }
}

// WithSlideRuns replaces the pptx slide text.
func WithSlideRuns(rs ...SlideRun) Option {
	return func(c *config) { c.slideRuns = rs }
}

// WithShapeFill overrides the pptx shape fill color.
func WithShapeFill(hex string) Option {
	return func(c *config) { c.shapeFill = hex }
}

// WithCellStyle overrides the xlsx font name, font color, and fill color.
// Colors are ARGB hex as spreadsheetml writes them.
func WithCellStyle(font, fontColor, fillColor string) Option {
	return func(c *config) {
		c.cellFont = font
		c.cellFontColor = fontColor
		c.cellFill = fillColor
	}
}

// Docx builds a minimal wordprocessingml package.
func Docx(opts ...Option) ([]byte, error) {
	c := defaults()
	for _, o := range opts {
		o(&c)
	}
	parts := map[string]string{
		"word/document.xml": c.wordDocument(),
		"word/styles.xml":   c.wordStyles(),
		"docProps/core.xml": c.coreProps(),
	}
	if c.theme {
		parts["word/theme/theme1.xml"] = c.themePart()
	}
	return writeZip(parts)
}

// Pptx builds a minimal presentationml package.
func Pptx(opts ...Option) ([]byte, error) {
	c := defaults()
	for _, o := range opts {
		o(&c)
	}
	parts := map[string]string{
		"ppt/presentation.xml":              c.presentation(),
		"ppt/slideMasters/slideMaster1.xml": c.slideMaster(),
		"ppt/slides/slide1.xml":             c.slide(),
		"docProps/core.xml":                 c.coreProps(),
	}
	if c.theme {
		parts["ppt/theme/theme1.xml"] = c.themePart()
	}
	return writeZip(parts)
}

// Xlsx builds a minimal spreadsheetml package.
func Xlsx(opts ...Option) ([]byte, error) {
	c := defaults()
	for _, o := range opts {
		o(&c)
	}
	parts := map[string]string{
		"xl/workbook.xml":          c.workbook(),
		"xl/styles.xml":            c.sheetStyles(),
		"xl/worksheets/sheet1.xml": c.worksheet(),
		"docProps/core.xml":        c.coreProps(),
	}
	if c.theme {
		parts["xl/theme/theme1.xml"] = c.themePart()
	}
	return writeZip(parts)
}

func writeZip(parts map[string]string) ([]byte, error) {
	names := make([]string, 0, len(parts))
	for n := range parts {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("probe: create %s: %w", name, err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			return nil, fmt.Errorf("probe: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("probe: close package: %w", err)
	}
	return buf.Bytes(), nil
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func esc(s string) string { return escaper.Replace(s) }

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsP   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsX   = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsCP  = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDC  = "http://purl.org/dc/elements/1.1/"
)

func (c *config) themePart() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<a:theme xmlns:a=%q name="Probe"><a:themeElements><a:clrScheme name="Probe">`, nsA)
	fmt.Fprintf(&b, `<a:dk1><a:sysClr val="windowText" lastClr=%q/></a:dk1>`, c.dk1)
	fmt.Fprintf(&b, `<a:lt1><a:sysClr val="window" lastClr=%q/></a:lt1>`, c.lt1)
	fmt.Fprintf(&b, `<a:dk2><a:srgbClr val=%q/></a:dk2>`, c.dk2)
	fmt.Fprintf(&b, `<a:lt2><a:srgbClr val=%q/></a:lt2>`, c.lt2)
	for i, v := range c.accents {
		fmt.Fprintf(&b, `<a:accent%d><a:srgbClr val=%q/></a:accent%d>`, i+1, v, i+1)
	}
	fmt.Fprintf(&b, `<a:hlink><a:srgbClr val=%q/></a:hlink>`, c.hlink)
	fmt.Fprintf(&b, `<a:folHlink><a:srgbClr val=%q/></a:folHlink>`, c.folHlink)
	b.WriteString(`</a:clrScheme><a:fontScheme name="Probe">`)
	fmt.Fprintf(&b, `<a:majorFont><a:latin typeface=%q/></a:majorFont>`, esc(c.majorFont))
	fmt.Fprintf(&b, `<a:minorFont><a:latin typeface=%q/></a:minorFont>`, esc(c.minorFont))
	b.WriteString(`</a:fontScheme></a:themeElements></a:theme>`)
	return b.String()
}

func (c *config) wordDocument() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<w:document xmlns:w=%q xmlns:w14=%q><w:body>`, nsW, nsW14)
	for i, p := range c.paragraphs {
		if c.revision != "" {
			fmt.Fprintf(&b, `<w:p w:rsidR=%q w14:paraId="%08X">`, c.revision, i+1)
		} else {
			b.WriteString(`<w:p>`)
		}
		if p.Shading != "" {
			fmt.Fprintf(&b, `<w:pPr><w:shd w:val="clear" w:fill=%q/></w:pPr>`, p.Shading)
		}
		b.WriteString(`<w:r><w:rPr>`)
		if p.Font != "" {
			fmt.Fprintf(&b, `<w:rFonts w:ascii=%q/>`, esc(p.Font))
		}
		if p.Color != "" {
			fmt.Fprintf(&b, `<w:color w:val=%q/>`, p.Color)
		}
		if p.Size != "" {
			fmt.Fprintf(&b, `<w:sz w:val=%q/>`, p.Size)
		}
		b.WriteString(`</w:rPr>`)
		fmt.Fprintf(&b, `<w:t>%s</w:t></w:r></w:p>`, esc(p.Text))
	}
	b.WriteString(`<w:sectPr/></w:body></w:document>`)
	return b.String()
}

func (c *config) wordStyles() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<w:styles xmlns:w=%q>`, nsW)
	fmt.Fprintf(&b, `<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii=%q/></w:rPr></w:rPrDefault></w:docDefaults>`, esc(c.minorFont))
	b.WriteString(`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/>`)
	fmt.Fprintf(&b, `<w:pPr><w:spacing w:after=%q/></w:pPr>`, c.spacing)
	fmt.Fprintf(&b, `<w:rPr><w:rFonts w:ascii=%q/><w:color w:val=%q/></w:rPr>`, esc(c.styleFont), c.styleColor)
	b.WriteString(`</w:style></w:styles>`)
	return b.String()
}

func (c *config) coreProps() string {
	rev := "1"
	if c.revision != "" {
		rev = c.revision
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		fmt.Sprintf(`<cp:coreProperties xmlns:cp=%q xmlns:dc=%q><dc:title>Probe</dc:title><cp:revision>%s</cp:revision></cp:coreProperties>`,
			nsCP, nsDC, esc(rev))
}

func (c *config) presentation() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		fmt.Sprintf(`<p:presentation xmlns:p=%q xmlns:r=%q><p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst><p:sldIdLst><p:sldId id="256" r:id="rId2"/></p:sldIdLst></p:presentation>`,
			nsP, nsR)
}

func (c *config) slideMaster() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		fmt.Sprintf(`<p:sldMaster xmlns:p=%q xmlns:a=%q><p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:sldMaster>`,
			nsP, nsA)
}

func (c *config) slide() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<p:sld xmlns:p=%q xmlns:a=%q><p:cSld><p:spTree><p:sp>`, nsP, nsA)
	fmt.Fprintf(&b, `<p:spPr><a:solidFill><a:srgbClr val=%q/></a:solidFill></p:spPr>`, c.shapeFill)
	b.WriteString(`<p:txBody><a:p>`)
	for _, r := range c.slideRuns {
		b.WriteString(`<a:r><a:rPr lang="en-US"`)
		if r.Size != "" {
			fmt.Fprintf(&b, ` sz=%q`, r.Size)
		}
		b.WriteString(`>`)
		if r.Color != "" {
			fmt.Fprintf(&b, `<a:solidFill><a:srgbClr val=%q/></a:solidFill>`, r.Color)
		}
		fmt.Fprintf(&b, `</a:rPr><a:t>%s</a:t></a:r>`, esc(r.Text))
	}
	b.WriteString(`</a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func (c *config) workbook() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		fmt.Sprintf(`<workbook xmlns=%q><sheets><sheet name="Sheet1" sheetId="1"/></sheets></workbook>`, nsX)
}

func (c *config) sheetStyles() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<styleSheet xmlns=%q>`, nsX)
	fmt.Fprintf(&b, `<fonts count="1"><font><sz val="11"/><color rgb=%q/><name val=%q/></font></fonts>`, c.cellFontColor, esc(c.cellFont))
	fmt.Fprintf(&b, `<fills count="1"><fill><patternFill patternType="solid"><fgColor rgb=%q/></patternFill></fill></fills>`, c.cellFill)
	b.WriteString(`</styleSheet>`)
	return b.String()
}

func (c *config) worksheet() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		fmt.Sprintf(`<worksheet xmlns=%q><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>Revenue</t></is></c></row></sheetData></worksheet>`, nsX)
}
