// Package oxml parses OOXML packages (docx, pptx, xlsx) into immutable,
// namespace-normalized trees.
//
// Every node and attribute is identified by its (namespace URI, local name)
// pair; the prefix strings used in the source markup are resolved at parse
// time and never surface in the tree. Malformed input is reported as a parse
// error, never as a partial tree.
package oxml

import "strconv"

// DocType identifies a supported document type.
type DocType string

const (
	DocTypeWord         DocType = "word"
	DocTypePresentation DocType = "presentation"
	DocTypeSpreadsheet  DocType = "spreadsheet"
)

// DocTypes returns all supported document types.
func DocTypes() []DocType {
	return []DocType{DocTypeWord, DocTypePresentation, DocTypeSpreadsheet}
}

// QName is a namespace-qualified name. Space is the namespace URI, empty for
// unqualified names.
type QName struct {
	Space string
	Local string
}

// String renders the qualified name with its canonical prefix
// ("w:color"), the bare local name when unqualified, or "{uri}local" for
// namespaces without a registered prefix.
func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	if p := CanonicalPrefix(q.Space); p != "" {
		return p + ":" + q.Local
	}
	return "{" + q.Space + "}" + q.Local
}

// Attr is a namespace-qualified attribute.
type Attr struct {
	Name  QName
	Value string
}

// Node is one element in a parsed part. Nodes are immutable after parse and
// carry no parent pointers; walkers track position themselves.
type Node struct {
	Name     QName
	Attrs    []Attr
	Text     string // direct text content, whitespace-trimmed
	Children []*Node
}

// Attr returns the value of the attribute with the given namespace URI and
// local name, and whether it was present.
func (n *Node) Attr(space, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrLocal returns the value of the first attribute with the given local
// name regardless of namespace.
func (n *Node) AttrLocal(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Part is one XML part of the package, e.g. "word/document.xml".
type Part struct {
	Name string
	Root *Node
}

// ParsedDocument is the namespace-normalized tree of the design-relevant
// parts of one OOXML package. Built once per document version; immutable.
type ParsedDocument struct {
	Type  DocType
	Parts []Part
}

// Part returns the named part, or nil when the package does not carry it.
func (d *ParsedDocument) Part(name string) *Node {
	for _, p := range d.Parts {
		if p.Name == name {
			return p.Root
		}
	}
	return nil
}

// VisitFunc receives each node with its normalized location path and the
// chain of qualified names from the part root down to the node itself.
// The chain slice is reused between calls; copy it if retained.
type VisitFunc func(path string, chain []QName, n *Node)

// Walk traverses every part depth-first. Paths look like
// "word/document.xml:w:document/w:body/w:p[2]"; the ordinal suffix counts
// same-named siblings and is omitted for the first occurrence.
func (d *ParsedDocument) Walk(fn VisitFunc) {
	for _, p := range d.Parts {
		walkNode(p.Name+":"+p.Root.Name.String(), []QName{p.Root.Name}, p.Root, fn)
	}
}

func walkNode(path string, chain []QName, n *Node, fn VisitFunc) {
	fn(path, chain, n)
	seen := make(map[QName]int, len(n.Children))
	for _, c := range n.Children {
		idx := seen[c.Name]
		seen[c.Name] = idx + 1
		seg := c.Name.String()
		if idx > 0 {
			seg += "[" + strconv.Itoa(idx+1) + "]"
		}
		walkNode(path+"/"+seg, append(chain, c.Name), c, fn)
	}
}

// CountElements returns the number of element nodes plus attributes across
// all parts; the denominator for preservation accounting.
func (d *ParsedDocument) CountElements() int {
	total := 0
	d.Walk(func(_ string, _ []QName, n *Node) {
		total += 1 + len(n.Attrs)
	})
	return total
}
