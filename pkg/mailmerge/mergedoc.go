package mailmerge

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

var partFilenameRE = regexp.MustCompile(`^([A-Za-z_]+)(\d+)\.xml$`)

// relRewrite records that a relationship target was duplicated while a row
// was finishing. The rewrite is applied to the next separator (or to the
// trailing section properties on close), because that is where the
// references to the duplicated part live and it does not exist until the
// following copy is prepared.
type relRewrite struct {
	oldTarget string
	newTarget string
}

// mergeDocument duplicates the main document body once per data row. The
// body is snapshotted at session open (minus its trailing w:sectPr), the
// live body is emptied, and each prepared copy is merged and appended with
// a separator in between. Not used for header/footer/notes parts.
type mergeDocument struct {
	md        *MergeData
	relations *RelationsDocument

	body         *etree.Element
	bodyTemplate *etree.Element
	lastSection  *etree.Element
	separator    *etree.Element

	currentBody *etree.Element
	finishRels  []relRewrite

	// pending is raised when a body copy has been appended and the next
	// copy must be preceded by a separator.
	pending bool
}

// newMergeDocument opens a duplication session on the given document root.
// For section separators, the section type is set on the document's first
// section only; the last section keeps its original type. This asymmetry
// matches Word's observed behavior and is deliberate.
func newMergeDocument(md *MergeData, root *etree.Element, relations *RelationsDocument, separator Separator) (*mergeDocument, error) {
	sepType, sepClass, err := separator.split()
	if err != nil {
		return nil, err
	}

	docBody := root.SelectElement("w:body")
	if docBody == nil {
		return nil, NewDocumentError("merge", "", &PartNotFoundError{Name: "w:body"})
	}

	if sepClass == "section" {
		firstSection := findFirstSection(docBody)
		if firstSection == nil {
			return nil, NewDocumentError("merge", "", &PartNotFoundError{Name: "w:sectPr"})
		}
		typeEl := firstSection.SelectElement("w:type")
		if typeEl == nil {
			typeEl = firstSection.CreateElement("w:type")
		}
		typeEl.CreateAttr("w:val", sepType)
	}

	lastSection := docBody.SelectElement("w:sectPr")
	if lastSection == nil {
		return nil, NewDocumentError("merge", "", &PartNotFoundError{Name: "w:sectPr"})
	}
	docBody.RemoveChild(lastSection)

	d := &mergeDocument{
		md:           md,
		relations:    relations,
		body:         docBody,
		bodyTemplate: docBody.Copy(),
		lastSection:  lastSection,
	}
	removeAllChildren(docBody)

	d.separator = etree.NewElement("w:p")
	switch sepClass {
	case "section":
		pPr := d.separator.CreateElement("w:pPr")
		pPr.AddChild(lastSection.Copy())
	case "break":
		r := d.separator.CreateElement("w:r")
		br := r.CreateElement("w:br")
		br.CreateAttr("w:type", sepType)
	}
	return d, nil
}

// findFirstSection locates the first w:sectPr of the body: either inside
// the first paragraph that carries one, or the body-level trailing one.
func findFirstSection(body *etree.Element) *etree.Element {
	for _, p := range body.SelectElements("w:p") {
		if pPr := p.SelectElement("w:pPr"); pPr != nil {
			if sect := pPr.SelectElement("w:sectPr"); sect != nil {
				return sect
			}
		}
	}
	return body.SelectElement("w:sectPr")
}

// prepare readies a fresh working copy of the body. When the previous row
// produced output, its separator is appended first, carrying the
// relationship rewrites recorded by that row's finish.
func (d *mergeDocument) prepare() {
	if d.pending {
		sep := d.separator.Copy()
		for _, rw := range d.finishRels {
			d.replaceRelationReference(rw, sep)
		}
		d.body.AddChild(sep)
		d.pending = false
	}
	d.currentBody = d.bodyTemplate.Copy()
	d.md.fixIDs(d.currentBody)
}

// merge resolves every placeholder in the working copy against row.
func (d *mergeDocument) merge(row map[string]any) error {
	return d.md.Replace(d.currentBody, row)
}

// finish appends the working copy to the growing body, or discards it when
// the row was aborted. The relationship rewrites handed over by the
// header/footer documents are held until the next prepare.
func (d *mergeDocument) finish(finishRels []relRewrite, abort bool) {
	d.finishRels = finishRels
	if abort {
		d.currentBody = nil
		return
	}
	if d.currentBody != nil {
		for _, child := range d.currentBody.ChildElements() {
			d.currentBody.RemoveChild(child)
			d.body.AddChild(child)
		}
		d.currentBody = nil
		d.pending = true
	}
}

// close flushes rewrites pending from the last row into the original
// trailing section properties and reattaches them, restoring page size,
// margins and columns.
func (d *mergeDocument) close() {
	for _, rw := range d.finishRels {
		d.replaceRelationReference(rw, d.lastSection)
	}
	d.body.AddChild(d.lastSection)
}

// replaceRelationReference duplicates the relationship for rw.oldTarget
// under a fresh ID pointing at rw.newTarget and rewrites every r:id
// reference inside scope from the old ID to the new one.
func (d *mergeDocument) replaceRelationReference(rw relRewrite, scope *etree.Element) {
	if d.relations == nil {
		return
	}
	oldRel := d.relations.GetRelationElem(rw.oldTarget)
	if oldRel == nil {
		return
	}
	newID, err := d.relations.ReplaceRelation(d.md.IDManager, oldRel, rw.newTarget)
	if err != nil {
		d.md.log.Warn("skipping relationship rewrite", zap.String("target", rw.oldTarget), zap.Error(err))
		return
	}
	oldID := oldRel.SelectAttrValue("Id", "")
	forEachElement(scope, func(e *etree.Element) {
		for _, attr := range e.Attr {
			if attr.Space == "r" && attr.Key == "id" && attr.Value == oldID {
				e.CreateAttr("r:id", newID)
			}
		}
	})
}

// mergeHeaderFooterDocument duplicates one header or footer part per data
// row. Unlike the main body, each row produces a brand-new part under a
// freshly numbered filename, queued for package assembly together with its
// content-type descriptor.
type mergeHeaderFooterDocument struct {
	md        *MergeData
	part      *partInfo
	relations *RelationsDocument

	target    string // base filename, e.g. header2.xml
	idType    string // numbering scheme, e.g. "header"
	partID    string // original number, e.g. "2"
	hasFields bool

	current  *etree.Document
	newParts []*newPart
}

// newPart is a part created during a merge, pending package assembly.
type newPart struct {
	path        string
	contentType *etree.Element
	doc         *etree.Document
}

func newMergeHeaderFooterDocument(md *MergeData, part *partInfo, relations *RelationsDocument, separator Separator) (*mergeHeaderFooterDocument, error) {
	if _, _, err := separator.split(); err != nil {
		return nil, err
	}
	base := path.Base(part.path)
	match := partFilenameRE.FindStringSubmatch(base)
	if match == nil {
		return nil, NewDocumentError("merge", part.path, &PartNotFoundError{Name: base})
	}
	return &mergeHeaderFooterDocument{
		md:        md,
		part:      part,
		relations: relations,
		target:    base,
		idType:    match[1],
		partID:    match[2],
		hasFields: len(findDescendants(part.doc.Root(), "", tagMergeField)) > 0,
	}, nil
}

// prepare clones the entire part for the next row. Parts without fields
// are left alone; the original serves every copy.
func (h *mergeHeaderFooterDocument) prepare() {
	if h.hasFields {
		h.current = h.part.doc.Copy()
	}
}

// merge resolves the cloned part against row.
func (h *mergeHeaderFooterDocument) merge(row map[string]any) error {
	if !h.hasFields || h.current == nil {
		return nil
	}
	return h.md.Replace(h.current.Root(), row)
}

// finish registers the cloned part under a new number and reports the
// target rewrite the main document must apply to its next separator.
func (h *mergeHeaderFooterDocument) finish(abort bool) []relRewrite {
	if abort {
		h.current = nil
	}
	if h.current == nil {
		return nil
	}

	newID := strconv.Itoa(h.md.IDManager.RegisterID(h.idType, 0))
	newTarget := strings.Replace(h.target, h.partID, newID, 1)
	newPath := strings.Replace(h.part.path, h.partID, newID, 1)

	ct := h.part.contentType.Copy()
	partName := h.part.contentType.SelectAttrValue("PartName", "")
	ct.CreateAttr("PartName", strings.Replace(partName, h.target, newTarget, 1))

	h.newParts = append(h.newParts, &newPart{path: newPath, contentType: ct, doc: h.current})
	h.current = nil
	return []relRewrite{{oldTarget: h.target, newTarget: newTarget}}
}
