package oxml

// OOXML namespace URIs relevant to design-token analysis. The same semantic
// element shows up under different prefixes depending on the host document
// type (a shape's properties are p:spPr in a slide, pic:spPr in a word
// picture, xdr:spPr in a spreadsheet drawing), so identity is always the
// (URI, local name) pair and prefixes are only cosmetic.
const (
	NSWordprocessing   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSDrawing          = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPresentation     = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NSSpreadsheet      = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	NSPicture          = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NSWordDrawing      = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSSheetDrawing     = "http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing"
	NSRelationships    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSCoreProperties   = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	NSWordprocessing14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	NSXML              = "http://www.w3.org/XML/1998/namespace"
)

// canonicalPrefixes maps namespace URIs to the prefix used in normalized
// location paths. Source markup may bind any prefix string; paths always
// use these.
var canonicalPrefixes = map[string]string{
	NSWordprocessing:   "w",
	NSDrawing:          "a",
	NSPresentation:     "p",
	NSSpreadsheet:      "x",
	NSPicture:          "pic",
	NSWordDrawing:      "wp",
	NSSheetDrawing:     "xdr",
	NSRelationships:    "r",
	NSCoreProperties:   "cp",
	NSWordprocessing14: "w14",
	NSXML:              "xml",
}

// CanonicalPrefix returns the normalized prefix for a namespace URI, or ""
// when the URI has no registered prefix.
func CanonicalPrefix(uri string) string {
	return canonicalPrefixes[uri]
}

// AuthoringNamespaces maps the prefixes carrier patterns are authored with
// to their URIs. The inverse of canonicalPrefixes, kept explicit so pattern
// compilation never depends on path-rendering choices.
var AuthoringNamespaces = map[string]string{
	"w":   NSWordprocessing,
	"a":   NSDrawing,
	"p":   NSPresentation,
	"x":   NSSpreadsheet,
	"pic": NSPicture,
	"wp":  NSWordDrawing,
	"xdr": NSSheetDrawing,
	"r":   NSRelationships,
	"cp":  NSCoreProperties,
	"w14": NSWordprocessing14,
}
