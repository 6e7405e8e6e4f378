package mailmerge

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

// Test fixtures are assembled in memory as minimal but well-formed
// packages: a content-types manifest plus whatever parts a test needs.

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const nsAttrs = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"`

const (
	ctDocument = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctHeader   = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	ctFooter   = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"
	ctSettings = "application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"
	ctRels     = "application/vnd.openxmlformats-package.relationships+xml"
)

// partContentTypes maps test part paths to their content types.
var partContentTypes = map[string]string{
	"word/document.xml": ctDocument,
	"word/header1.xml":  ctHeader,
	"word/header2.xml":  ctHeader,
	"word/footer1.xml":  ctFooter,
	"word/settings.xml": ctSettings,
}

// buildPackage zips the given parts together with a generated
// [Content_Types].xml manifest.
func buildPackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var manifest strings.Builder
	manifest.WriteString(xmlHeader)
	manifest.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	manifest.WriteString(`<Default Extension="rels" ContentType="` + ctRels + `"/>`)
	manifest.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	for path := range parts {
		if ct, ok := partContentTypes[path]; ok {
			fmt.Fprintf(&manifest, `<Override PartName="/%s" ContentType="%s"/>`, path, ct)
		}
	}
	manifest.WriteString(`</Types>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	write(contentTypesPath, manifest.String())
	for path, content := range parts {
		write(path, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

// newBytesReaderAt adapts raw package bytes for New.
func newBytesReaderAt(data []byte) (*bytes.Reader, int64) {
	return bytes.NewReader(data), int64(len(data))
}

// openPackage builds a package from parts and loads it.
func openPackage(t *testing.T, parts map[string]string, opts ...Option) *MailMerge {
	t.Helper()
	data := buildPackage(t, parts)
	m, err := New(bytes.NewReader(data), int64(len(data)), opts...)
	if err != nil {
		t.Fatalf("opening package: %v", err)
	}
	return m
}

// openBody wraps body content in a main document part and loads it.
func openBody(t *testing.T, body string, opts ...Option) *MailMerge {
	t.Helper()
	return openPackage(t, map[string]string{"word/document.xml": documentXML(body)}, opts...)
}

// documentXML wraps body content in a main document part with a trailing
// section.
func documentXML(body string) string {
	return xmlHeader + `<w:document ` + nsAttrs + `><w:body>` + body +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
}

// headerXML wraps content in a header part.
func headerXML(content string) string {
	return xmlHeader + `<w:hdr ` + nsAttrs + `>` + content + `</w:hdr>`
}

// settingsXML produces a settings part carrying a mailMerge element.
func settingsXML() string {
	return xmlHeader + `<w:settings ` + nsAttrs + `>` +
		`<w:zoom w:percent="100"/>` +
		`<w:mailMerge><w:mainDocumentType w:val="formLetters"/></w:mailMerge>` +
		`</w:settings>`
}

// relsXML produces a relationship document for the given id/type/target
// triples.
func relsXML(rels [][3]string) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, rel := range rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, rel[0], rel[1], rel[2])
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

const headerRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"

func para(content string) string {
	return `<w:p>` + content + `</w:p>`
}

func textRun(text string) string {
	return `<w:r><w:t>` + text + `</w:t></w:r>`
}

// simpleField encodes a merge field in the fldSimple form, with the usual
// guillemet display content.
func simpleField(name string) string {
	return `<w:fldSimple w:instr=" MERGEFIELD ` + name + ` \* MERGEFORMAT ">` +
		`<w:r><w:t>«` + name + `»</w:t></w:r></w:fldSimple>`
}

// complexField encodes a merge field in the begin/separate/end form.
// instr is the full instruction, e.g. ` MERGEFIELD Amount \# "#,##0.00" `.
func complexField(instr, display string) string {
	return `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve">` + instr + `</w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>` + display + `</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`
}

// mainRoot returns the parsed root of the main document part.
func mainRoot(t *testing.T, m *MailMerge) *etree.Element {
	t.Helper()
	parts := m.pkg.partsByCategory(categoryMain)
	if len(parts) == 0 {
		t.Fatal("no main part")
	}
	return parts[0].doc.Root()
}

// collectText concatenates the w:t content below scope, inserting a newline
// for every w:br.
func collectText(scope *etree.Element) string {
	var sb strings.Builder
	forEachElement(scope, func(e *etree.Element) {
		if e.Space != "w" {
			return
		}
		switch e.Tag {
		case "t":
			sb.WriteString(e.Text())
		case "br":
			sb.WriteString("\n")
		}
	})
	return sb.String()
}

// bodyText returns the visible text of the main document part.
func bodyText(t *testing.T, m *MailMerge) string {
	t.Helper()
	return collectText(mainRoot(t, m))
}

// writeAndReload serializes m and opens the result as a fresh document, so
// tests can inspect what actually landed in the package.
func writeAndReload(t *testing.T, m *MailMerge) (*MailMerge, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("writing package: %v", err)
	}
	out, err := New(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reloading package: %v", err)
	}
	return out, buf.Bytes()
}

// zipEntryNames lists the entry names of a serialized package.
func zipEntryNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
