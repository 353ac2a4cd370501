package semdiff

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/fidelity/oxml"
)

// Analyze walks both trees and returns every classified difference plus a
// summary. docType selects the severity rules; pass "" for generic,
// namespace-agnostic classification. A nil document is treated as empty
// (the parse-failure contract: zero trees are valid zero-result inputs),
// so Analyze never fails for any input pair.
func Analyze(original, converted *oxml.ParsedDocument, docType oxml.DocType) ([]SemanticDifference, DiffSummary) {
	if docType == "" && original != nil {
		docType = original.Type
	}

	d := &differ{docType: docType, affected: make(map[string]bool)}

	origParts := partMap(original)
	convParts := partMap(converted)

	for _, p := range partNames(original) {
		if conv, ok := convParts[p]; ok {
			root := origParts[p]
			d.diffNodes(p+":"+root.Name.String(), root, conv)
		} else {
			root := origParts[p]
			d.dropNode(p+":"+root.Name.String(), root)
		}
	}
	for _, p := range partNames(converted) {
		if _, ok := origParts[p]; !ok {
			root := convParts[p]
			d.addNode(p+":"+root.Name.String(), root)
		}
	}

	total := 0
	if original != nil {
		total = original.CountElements()
	}
	return d.diffs, d.summarize(total)
}

type differ struct {
	docType  oxml.DocType
	diffs    []SemanticDifference
	affected map[string]bool // original-side locations touched by non-ignorable MODIFIED/DROPPED
}

func partMap(doc *oxml.ParsedDocument) map[string]*oxml.Node {
	m := make(map[string]*oxml.Node)
	if doc == nil {
		return m
	}
	for _, p := range doc.Parts {
		m[p.Name] = p.Root
	}
	return m
}

func partNames(doc *oxml.ParsedDocument) []string {
	if doc == nil {
		return nil
	}
	names := make([]string, 0, len(doc.Parts))
	for _, p := range doc.Parts {
		names = append(names, p.Name)
	}
	return names
}

func (d *differ) emit(diff SemanticDifference) {
	d.diffs = append(d.diffs, diff)
	if diff.Severity != SeverityIgnorable &&
		(diff.Category == CategoryModified || diff.Category == CategoryDropped) {
		d.affected[diff.Location] = true
	}
}

// diffNodes compares a matched element pair: attributes, direct text, then
// children.
func (d *differ) diffNodes(path string, a, b *oxml.Node) {
	d.diffAttrs(path, a, b)

	if a.Text != b.Text {
		sev, ctx := classifyText(a.Name)
		d.emit(SemanticDifference{
			Location:    path,
			Category:    CategoryModified,
			Severity:    sev,
			Description: fmt.Sprintf("text of %s changed from %q to %q", a.Name, a.Text, b.Text),
			OldValue:    a.Text,
			NewValue:    b.Text,
			Context:     ctx,
		})
	}

	d.diffChildren(path, a, b)
}

func (d *differ) diffAttrs(path string, a, b *oxml.Node) {
	seen := make(map[oxml.QName]bool, len(a.Attrs))
	for _, attr := range a.Attrs {
		seen[attr.Name] = true
		loc := path + "/@" + attr.Name.String()
		bv, ok := b.Attr(attr.Name.Space, attr.Name.Local)
		if !ok {
			sev, ctx := classifyAttr(d.docType, a.Name, attr.Name)
			d.emit(SemanticDifference{
				Location:    loc,
				Category:    CategoryDropped,
				Severity:    sev,
				Description: fmt.Sprintf("attribute %s dropped (was %q)", attr.Name, attr.Value),
				OldValue:    attr.Value,
				Context:     ctx,
			})
			continue
		}
		if bv != attr.Value {
			sev, ctx := classifyAttr(d.docType, a.Name, attr.Name)
			d.emit(SemanticDifference{
				Location:    loc,
				Category:    CategoryModified,
				Severity:    sev,
				Description: fmt.Sprintf("attribute %s changed from %q to %q", attr.Name, attr.Value, bv),
				OldValue:    attr.Value,
				NewValue:    bv,
				Context:     ctx,
			})
		}
	}
	for _, attr := range b.Attrs {
		if seen[attr.Name] {
			continue
		}
		sev, ctx := classifyAttr(d.docType, b.Name, attr.Name)
		d.emit(SemanticDifference{
			Location:    path + "/@" + attr.Name.String(),
			Category:    CategoryAdded,
			Severity:    sev,
			Description: fmt.Sprintf("attribute %s added with value %q", attr.Name, attr.Value),
			NewValue:    attr.Value,
			Context:     ctx,
		})
	}
}

type childRef struct {
	node *oxml.Node
	path string
}

// childRefs assigns each child its normalized path segment (ordinal among
// same-named siblings, matching oxml.Walk).
func childRefs(path string, n *oxml.Node) map[oxml.QName][]childRef {
	refs := make(map[oxml.QName][]childRef)
	seen := make(map[oxml.QName]int)
	for _, c := range n.Children {
		idx := seen[c.Name]
		seen[c.Name] = idx + 1
		seg := c.Name.String()
		if idx > 0 {
			seg += "[" + strconv.Itoa(idx+1) + "]"
		}
		refs[c.Name] = append(refs[c.Name], childRef{node: c, path: path + "/" + seg})
	}
	return refs
}

// identityAttrs key a node within its sibling group so reordered elements
// still pair up; ordinal position is the fallback.
var identityAttrs = []string{"styleId", "id", "name", "idx"}

func identityKey(n *oxml.Node) string {
	for _, a := range identityAttrs {
		if v, ok := n.AttrLocal(a); ok {
			return a + "=" + v
		}
	}
	return ""
}

func (d *differ) diffChildren(path string, a, b *oxml.Node) {
	aRefs := childRefs(path, a)
	bRefs := childRefs(path, b)

	// Names in a's document order first, then names only b has.
	var names []oxml.QName
	nameSeen := make(map[oxml.QName]bool)
	for _, c := range a.Children {
		if !nameSeen[c.Name] {
			nameSeen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	for _, c := range b.Children {
		if !nameSeen[c.Name] {
			nameSeen[c.Name] = true
			names = append(names, c.Name)
		}
	}

	for _, name := range names {
		as, bs := aRefs[name], bRefs[name]
		usedB := make([]bool, len(bs))

		type pair struct{ a, b childRef }
		var pairs []pair
		var unpairedA []childRef

		// Identity tier.
		for _, ar := range as {
			key := identityKey(ar.node)
			matched := false
			if key != "" {
				for j, br := range bs {
					if !usedB[j] && identityKey(br.node) == key {
						usedB[j] = true
						pairs = append(pairs, pair{ar, br})
						matched = true
						break
					}
				}
			}
			if !matched {
				unpairedA = append(unpairedA, ar)
			}
		}

		// Ordinal tier for the rest.
		j := 0
		for _, ar := range unpairedA {
			for j < len(bs) && usedB[j] {
				j++
			}
			if j < len(bs) {
				usedB[j] = true
				pairs = append(pairs, pair{ar, bs[j]})
				continue
			}
			d.dropNode(ar.path, ar.node)
		}
		for j, br := range bs {
			if !usedB[j] {
				d.addNode(br.path, br.node)
			}
		}

		for _, p := range pairs {
			d.diffNodes(p.a.path, p.a.node, p.b.node)
		}
	}
}

func (d *differ) dropNode(path string, n *oxml.Node) {
	sev, ctx := classifyNode(n)
	d.emit(SemanticDifference{
		Location:    path,
		Category:    CategoryDropped,
		Severity:    sev,
		Description: fmt.Sprintf("element %s dropped", n.Name),
		Context:     ctx,
	})
	if sev != SeverityIgnorable {
		// The whole subtree is gone, not just the root element.
		d.markSubtree(path, n)
	}
}

func (d *differ) markSubtree(path string, n *oxml.Node) {
	d.affected[path] = true
	for _, a := range n.Attrs {
		d.affected[path+"/@"+a.Name.String()] = true
	}
	seen := make(map[oxml.QName]int, len(n.Children))
	for _, c := range n.Children {
		idx := seen[c.Name]
		seen[c.Name] = idx + 1
		seg := c.Name.String()
		if idx > 0 {
			seg += "[" + strconv.Itoa(idx+1) + "]"
		}
		d.markSubtree(path+"/"+seg, c)
	}
}

func (d *differ) addNode(path string, n *oxml.Node) {
	sev, ctx := classifyNode(n)
	d.emit(SemanticDifference{
		Location:    path,
		Category:    CategoryAdded,
		Severity:    sev,
		Description: fmt.Sprintf("element %s added", n.Name),
		Context:     ctx,
	})
}

// summarize builds the DiffSummary; totalComparable is the original-side
// node+attribute count.
func (d *differ) summarize(totalComparable int) DiffSummary {
	s := DiffSummary{
		TotalDifferences: len(d.diffs),
		ByCategory:       make(map[Category]int, 3),
		BySeverity:       make(map[Severity]int, 4),
	}
	for _, c := range Categories() {
		s.ByCategory[c] = 0
	}
	for _, sev := range Severities() {
		s.BySeverity[sev] = 0
	}
	for _, diff := range d.diffs {
		s.ByCategory[diff.Category]++
		s.BySeverity[diff.Severity]++
		if diff.Severity == SeverityCritical {
			s.CriticalChanges = append(s.CriticalChanges, diff)
		}
	}

	if totalComparable == 0 {
		s.PreservationRate = 100
		return s
	}
	preserved := totalComparable - len(d.affected)
	rate := 100 * float64(preserved) / float64(totalComparable)
	s.PreservationRate = clamp(rate, 0, 100)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
