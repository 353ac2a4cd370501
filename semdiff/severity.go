package semdiff

import (
	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/oxml"
)

// bookkeepingAttrs never affect appearance or content: revision/session
// identifiers and editor-internal markers. Changes to them are IGNORABLE no
// matter how many there are.
var bookkeepingAttrs = map[string]bool{
	"rsid":         true,
	"rsidR":        true,
	"rsidRPr":      true,
	"rsidRDefault": true,
	"rsidP":        true,
	"rsidDel":      true,
	"rsidTr":       true,
	"rsidSect":     true,
	"paraId":       true,
	"textId":       true,
	"durableId":    true,
}

// bookkeepingElems are marker elements with no rendered effect; text inside
// them is bookkeeping too (e.g. cp:revision, cp:lastPrinted in core props).
var bookkeepingElems = map[string]bool{
	"proofErr":              true,
	"lastRenderedPageBreak": true,
	"bookmarkStart":         true,
	"bookmarkEnd":           true,
	"revision":              true,
	"lastPrinted":           true,
	"lastModifiedBy":        true,
	"modified":              true,
	"totalTime":             true,
}

// structuralElems carry visible content; adding or removing one changes the
// document's structure and is never ignorable.
var structuralElems = map[string]bool{
	"p":       true,
	"r":       true,
	"tbl":     true,
	"tr":      true,
	"tc":      true,
	"row":     true,
	"c":       true,
	"sp":      true,
	"pic":     true,
	"graphic": true,
	"txBody":  true,
}

// styleElems hold formatting rather than content; changes under them are
// styling changes ranked by the carrier catalog.
var styleElems = map[string]bool{
	"color":       true,
	"rFonts":      true,
	"sz":          true,
	"szCs":        true,
	"spacing":     true,
	"shd":         true,
	"highlight":   true,
	"jc":          true,
	"ind":         true,
	"solidFill":   true,
	"srgbClr":     true,
	"sysClr":      true,
	"latin":       true,
	"font":        true,
	"fill":        true,
	"patternFill": true,
	"fgColor":     true,
	"bgColor":     true,
	"clrScheme":   true,
	"fontScheme":  true,
	"clrMap":      true,
	"rPr":         true,
	"pPr":         true,
	"spPr":        true,
	"name":        true,
}

var styleAttrs = map[string]bool{
	"fill":       true,
	"color":      true,
	"rgb":        true,
	"typeface":   true,
	"themeColor": true,
	"themeFill":  true,
	"sz":         true,
}

// classifyAttr ranks a changed attribute. Catalog-flagged design carriers
// rank CRITICAL or MAJOR; other styling attributes default to MINOR.
func classifyAttr(docType oxml.DocType, elem, attr oxml.QName) (Severity, Context) {
	if bookkeepingAttrs[attr.Local] {
		return SeverityIgnorable, Context{}
	}
	styling := styleElems[elem.Local] || styleAttrs[attr.Local]
	if !styling {
		return SeverityMinor, Context{}
	}
	ctx := Context{AffectsStyling: true}
	if docType != "" {
		if sig, ok := carrier.StyleSignificance(docType, elem, attr); ok {
			if sig == carrier.SignificanceCritical {
				return SeverityCritical, ctx
			}
			return SeverityMajor, ctx
		}
	}
	return SeverityMinor, ctx
}

// classifyText ranks a changed text value. Visible text is CRITICAL;
// bookkeeping element text is not visible.
func classifyText(elem oxml.QName) (Severity, Context) {
	if bookkeepingElems[elem.Local] {
		return SeverityIgnorable, Context{}
	}
	return SeverityCritical, Context{AffectsContent: true}
}

// classifyNode ranks an added or dropped element.
func classifyNode(n *oxml.Node) (Severity, Context) {
	if bookkeepingElems[n.Name.Local] {
		return SeverityIgnorable, Context{}
	}
	if structuralElems[n.Name.Local] {
		ctx := Context{AffectsStructure: true}
		if subtreeHasText(n) {
			ctx.AffectsContent = true
			return SeverityCritical, ctx
		}
		return SeverityMajor, ctx
	}
	if styleElems[n.Name.Local] {
		return SeverityMajor, Context{AffectsStyling: true}
	}
	return SeverityMinor, Context{}
}

func subtreeHasText(n *oxml.Node) bool {
	if n.Text != "" {
		return true
	}
	for _, c := range n.Children {
		if subtreeHasText(c) {
			return true
		}
	}
	return false
}
