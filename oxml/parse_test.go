package oxml

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

// buildZip assembles an in-memory package from part name to content.
func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func minimalDocx(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"word/document.xml": `<w:document xmlns:w="` + wordNS + `"><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p></w:body></w:document>`,
	})
}

func TestParseDetectsWord(t *testing.T) {
	doc, err := Parse(minimalDocx(t))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type != DocTypeWord {
		t.Fatalf("type = %q, want %q", doc.Type, DocTypeWord)
	}
	root := doc.Part("word/document.xml")
	if root == nil {
		t.Fatal("document part missing")
	}
	if root.Name.Space != wordNS || root.Name.Local != "document" {
		t.Fatalf("root = %v", root.Name)
	}
}

func TestParseDetectsPresentationAndSpreadsheet(t *testing.T) {
	pptx := buildZip(t, map[string]string{
		"ppt/presentation.xml": `<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`,
	})
	doc, err := Parse(pptx)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type != DocTypePresentation {
		t.Fatalf("type = %q, want presentation", doc.Type)
	}

	xlsx := buildZip(t, map[string]string{
		"xl/workbook.xml": `<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"/>`,
	})
	doc, err = Parse(xlsx)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type != DocTypeSpreadsheet {
		t.Fatalf("type = %q, want spreadsheet", doc.Type)
	}
}

func TestParseRejectsNonZip(t *testing.T) {
	if _, err := Parse([]byte("not a zip archive")); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestParseRejectsUnknownPackage(t *testing.T) {
	data := buildZip(t, map[string]string{"readme.txt": "hi"})
	if _, err := Parse(data); err == nil {
		t.Fatal("expected ErrUnsupportedFormat")
	}
}

func TestParseRejectsMalformedPart(t *testing.T) {
	data := buildZip(t, map[string]string{
		"word/document.xml": `<w:document xmlns:w="` + wordNS + `"><w:body></w:document>`,
	})
	if _, err := Parse(data); err == nil {
		t.Fatal("expected parse error for unbalanced markup")
	}
}

func TestParseDepthLimit(t *testing.T) {
	// 300 nested elements exceeds the nesting cap.
	var b strings.Builder
	b.WriteString(`<w:document xmlns:w="` + wordNS + `">`)
	for i := 0; i < 300; i++ {
		b.WriteString("<w:p>")
	}
	for i := 0; i < 300; i++ {
		b.WriteString("</w:p>")
	}
	b.WriteString("</w:document>")
	data := buildZip(t, map[string]string{"word/document.xml": b.String()})
	if _, err := Parse(data); err == nil {
		t.Fatal("expected depth limit error")
	}
}

func TestWalkPathsAndOrdinals(t *testing.T) {
	data := buildZip(t, map[string]string{
		"word/document.xml": `<w:document xmlns:w="` + wordNS + `"><w:body><w:p/><w:p/><w:p/></w:body></w:document>`,
	})
	doc, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	doc.Walk(func(path string, _ []QName, _ *Node) {
		paths = append(paths, path)
	})

	want := []string{
		"word/document.xml:w:document",
		"word/document.xml:w:document/w:body",
		"word/document.xml:w:document/w:body/w:p",
		"word/document.xml:w:document/w:body/w:p[2]",
		"word/document.xml:w:document/w:body/w:p[3]",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, w := range want {
		if paths[i] != w {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], w)
		}
	}
}

func TestWalkChainQualified(t *testing.T) {
	doc, err := Parse(minimalDocx(t))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	doc.Walk(func(_ string, chain []QName, n *Node) {
		if n.Name.Local == "t" {
			found = true
			if len(chain) != 5 {
				t.Fatalf("chain length = %d, want 5", len(chain))
			}
			for _, q := range chain {
				if q.Space != wordNS {
					t.Fatalf("chain entry %v not namespace-qualified", q)
				}
			}
		}
	})
	if !found {
		t.Fatal("w:t not visited")
	}
}

func TestQNameString(t *testing.T) {
	tests := []struct {
		q    QName
		want string
	}{
		{QName{Space: wordNS, Local: "color"}, "w:color"},
		{QName{Local: "bg1"}, "bg1"},
		{QName{Space: "urn:unknown", Local: "x"}, "{urn:unknown}x"},
	}
	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestCountElements(t *testing.T) {
	data := buildZip(t, map[string]string{
		"word/document.xml": `<w:document xmlns:w="` + wordNS + `"><w:body><w:p><w:r><w:t>x</w:t></w:r></w:p></w:body></w:document>`,
	})
	doc, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	// 5 elements, no attributes.
	if got := doc.CountElements(); got != 5 {
		t.Fatalf("CountElements = %d, want 5", got)
	}
}

func TestParseKeepsMixedContentText(t *testing.T) {
	// Text on both sides of a child element belongs to the parent; the
	// child must not wipe what came before it.
	data := buildZip(t, map[string]string{
		"word/document.xml": `<w:document xmlns:w="` + wordNS + `"><w:body><w:p>hello<w:br/>world</w:p></w:body></w:document>`,
	})
	doc, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	var p, br *Node
	doc.Walk(func(_ string, _ []QName, n *Node) {
		switch n.Name.Local {
		case "p":
			p = n
		case "br":
			br = n
		}
	})
	if p == nil || br == nil {
		t.Fatal("w:p or w:br not visited")
	}
	if p.Text != "helloworld" {
		t.Fatalf("p.Text = %q, want %q", p.Text, "helloworld")
	}
	if br.Text != "" {
		t.Fatalf("br.Text = %q, want empty", br.Text)
	}
}

func TestParseSkipsXmlnsAttrs(t *testing.T) {
	doc, err := Parse(minimalDocx(t))
	if err != nil {
		t.Fatal(err)
	}
	root := doc.Part("word/document.xml")
	if len(root.Attrs) != 0 {
		t.Fatalf("root attrs = %v, want none", root.Attrs)
	}
}
