package mailmerge

import (
	"archive/zip"
	"fmt"
	"io"
	"path"

	"github.com/beevik/etree"
)

const contentTypesPath = "[Content_Types].xml"

// partInfo is one parsed XML part of the package.
type partInfo struct {
	path        string
	category    string
	contentType *etree.Element // Override entry in [Content_Types].xml, nil for rels parts
	doc         *etree.Document
}

// docxPackage wraps the zip container and the parsed parts the merge cares
// about. Entries that are not parsed (images, styles, fonts) are copied
// through verbatim on write.
type docxPackage struct {
	reader       *zip.Reader
	entries      map[string]*zip.File
	parts        map[string]*partInfo // keyed by entry path
	categories   map[string][]*partInfo
	contentTypes *etree.Document
}

// newDocxPackage opens the zip archive and parses the content-types
// manifest plus every part it classifies as main, header/footer, notes or
// settings.
func newDocxPackage(r io.ReaderAt, size int64) (*docxPackage, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, NewDocumentError("open", "", err)
	}

	pkg := &docxPackage{
		reader:     zr,
		entries:    make(map[string]*zip.File),
		parts:      make(map[string]*partInfo),
		categories: make(map[string][]*partInfo),
	}
	for _, f := range zr.File {
		pkg.entries[f.Name] = f
	}

	ct, ok := pkg.entries[contentTypesPath]
	if !ok {
		return nil, NewDocumentError("open", contentTypesPath, &PartNotFoundError{Name: contentTypesPath})
	}
	pkg.contentTypes, err = readPartXML(ct)
	if err != nil {
		return nil, err
	}

	for _, override := range pkg.contentTypes.Root().SelectElements("Override") {
		category, ok := contentTypeCategories[override.SelectAttrValue("ContentType", "")]
		if !ok {
			continue
		}
		partName := override.SelectAttrValue("PartName", "")
		entryPath := normalizePartName(partName)
		entry, ok := pkg.entries[entryPath]
		if !ok {
			return nil, NewDocumentError("open", entryPath, &PartNotFoundError{Name: partName})
		}
		doc, err := readPartXML(entry)
		if err != nil {
			return nil, err
		}
		part := &partInfo{
			path:        entryPath,
			category:    category,
			contentType: override,
			doc:         doc,
		}
		pkg.parts[entryPath] = part
		pkg.categories[category] = append(pkg.categories[category], part)
	}

	if len(pkg.categories[categoryMain]) == 0 {
		return nil, NewDocumentError("open", "", &PartNotFoundError{Name: categoryMain})
	}
	return pkg, nil
}

// partsByCategory returns the parts of the given categories, in load order.
func (p *docxPackage) partsByCategory(categories ...string) []*partInfo {
	var parts []*partInfo
	for _, cat := range categories {
		parts = append(parts, p.categories[cat]...)
	}
	return parts
}

// settingsPart returns the settings part, or nil when the document has none.
func (p *docxPackage) settingsPart() *partInfo {
	if parts := p.categories[categorySettings]; len(parts) > 0 {
		return parts[0]
	}
	return nil
}

// relationsPath derives the relationships entry path for a part, following
// the <dir>/_rels/<partfilename>.rels convention.
func relationsPath(partPath string) string {
	dir, base := path.Split(partPath)
	return dir + "_rels/" + base + ".rels"
}

// loadRelations parses a part's relationship document. A missing
// relationships entry is not an error; the caller receives nil and skips
// relationship handling. The parsed document is registered as a part so a
// later write serializes any mutation.
func (p *docxPackage) loadRelations(partPath string) (*RelationsDocument, error) {
	relPath := relationsPath(partPath)
	entry, ok := p.entries[relPath]
	if !ok {
		return nil, nil
	}
	if existing, ok := p.parts[relPath]; ok {
		return &RelationsDocument{doc: existing.doc, path: relPath}, nil
	}
	doc, err := readPartXML(entry)
	if err != nil {
		return nil, err
	}
	p.parts[relPath] = &partInfo{path: relPath, doc: doc}
	return &RelationsDocument{doc: doc, path: relPath}, nil
}

func readPartXML(f *zip.File) (*etree.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, NewDocumentError("read", f.Name, err)
	}
	defer rc.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(rc); err != nil {
		return nil, NewDocumentError("parse", f.Name, err)
	}
	if doc.Root() == nil {
		return nil, NewDocumentError("parse", f.Name, fmt.Errorf("no root element"))
	}
	return doc, nil
}

// normalizePartName strips the leading slash of a content-types PartName so
// it matches zip entry naming.
func normalizePartName(partName string) string {
	if len(partName) > 0 && partName[0] == '/' {
		return partName[1:]
	}
	return partName
}
