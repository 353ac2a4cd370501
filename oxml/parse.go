package oxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned when a package carries none of the known
// main parts.
var ErrUnsupportedFormat = fmt.Errorf("oxml: unsupported package format")

// maxNestingDepth caps XML element nesting as a bomb defense.
const maxNestingDepth = 256

// Parse reads an OOXML package and returns its namespace-normalized tree.
// The document type is detected from the package's main part.
func Parse(data []byte) (*ParsedDocument, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("oxml: open package: %w", err)
	}

	docType, err := detectType(r)
	if err != nil {
		return nil, err
	}
	return parseParts(r, docType)
}

// ParseAs is Parse with an explicit document type, skipping detection.
func ParseAs(data []byte, docType DocType) (*ParsedDocument, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("oxml: open package: %w", err)
	}
	return parseParts(r, docType)
}

func detectType(r *zip.Reader) (DocType, error) {
	for _, f := range r.File {
		switch f.Name {
		case "word/document.xml":
			return DocTypeWord, nil
		case "ppt/presentation.xml":
			return DocTypePresentation, nil
		case "xl/workbook.xml":
			return DocTypeSpreadsheet, nil
		}
	}
	return "", ErrUnsupportedFormat
}

// designParts returns the parts that can carry design tokens for a document
// type. Slide and worksheet parts are matched by prefix since their count
// varies per document.
func designParts(docType DocType) (exact []string, prefixes []string) {
	switch docType {
	case DocTypeWord:
		return []string{"word/document.xml", "word/styles.xml", "word/theme/theme1.xml", "docProps/core.xml"}, nil
	case DocTypePresentation:
		return []string{"ppt/presentation.xml", "ppt/theme/theme1.xml", "docProps/core.xml"},
			[]string{"ppt/slides/slide", "ppt/slideMasters/slideMaster"}
	case DocTypeSpreadsheet:
		return []string{"xl/workbook.xml", "xl/styles.xml", "xl/theme/theme1.xml", "docProps/core.xml"},
			[]string{"xl/worksheets/sheet", "xl/drawings/drawing"}
	default:
		return nil, nil
	}
}

func parseParts(r *zip.Reader, docType DocType) (*ParsedDocument, error) {
	exact, prefixes := designParts(docType)
	if exact == nil && prefixes == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, docType)
	}

	wanted := func(name string) bool {
		for _, e := range exact {
			if name == e {
				return true
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) && strings.HasSuffix(name, ".xml") {
				return true
			}
		}
		return false
	}

	var names []string
	byName := make(map[string]*zip.File)
	for _, f := range r.File {
		if wanted(f.Name) {
			names = append(names, f.Name)
			byName[f.Name] = f
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("oxml: no %s parts in package", docType)
	}
	sort.Strings(names)

	doc := &ParsedDocument{Type: docType}
	for _, name := range names {
		rc, err := byName[name].Open()
		if err != nil {
			return nil, fmt.Errorf("oxml: open part %s: %w", name, err)
		}
		root, err := parsePart(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("oxml: parse part %s: %w", name, err)
		}
		doc.Parts = append(doc.Parts, Part{Name: name, Root: root})
	}
	return doc, nil
}

// parsePart builds a tree from one XML part. encoding/xml resolves prefix
// bindings during tokenization, so element and attribute names arrive
// already qualified by URI.
func parsePart(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var root *Node
	var stack []*Node
	// One accumulator per open element, so text around a child element
	// (mixed content) is kept instead of being discarded by the child.
	var texts []*strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) >= maxNestingDepth {
				return nil, fmt.Errorf("element nesting depth exceeds %d", maxNestingDepth)
			}
			n := &Node{Name: QName{Space: t.Name.Space, Local: t.Name.Local}}
			for _, a := range t.Attr {
				// xmlns declarations are binding machinery, not content.
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				n.Attrs = append(n.Attrs, Attr{
					Name:  QName{Space: a.Name.Space, Local: a.Name.Local},
					Value: a.Value,
				})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})

		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			n := stack[len(stack)-1]
			if s := strings.TrimSpace(texts[len(texts)-1].String()); s != "" {
				n.Text = s
			}
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}

	if root == nil {
		return nil, fmt.Errorf("empty part")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].Name.Local)
	}
	return root, nil
}
