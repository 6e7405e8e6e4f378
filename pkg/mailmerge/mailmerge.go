package mailmerge

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// MailMerge is one loaded document. It is not safe for concurrent use; open
// a separate instance per goroutine.
type MailMerge struct {
	pkg *docxPackage
	md  *MergeData
	log *zap.Logger

	updateFields UpdateFieldsPolicy
	relations    map[string]*RelationsDocument
	newParts     []*newPart
	closed       bool
}

// Open loads the document at path into memory and normalizes its merge
// fields.
func Open(path string, opts ...Option) (*MailMerge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("open", path, err)
	}
	return New(bytes.NewReader(data), int64(len(data)), opts...)
}

// New loads a document from r and normalizes its merge fields. The reader
// must stay valid until Write; part payloads that are not parsed are copied
// from it on demand.
func New(r io.ReaderAt, size int64, opts ...Option) (*MailMerge, error) {
	pkg, err := newDocxPackage(r, size)
	if err != nil {
		return nil, err
	}
	m := &MailMerge{
		pkg:       pkg,
		md:        newMergeData(zap.NewNop()),
		log:       zap.NewNop(),
		relations: make(map[string]*RelationsDocument),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, part := range pkg.partsByCategory(mergeableCategories...) {
		root := part.doc.Root()
		m.md.fillSimpleFields(root)
		if err := m.md.fillComplexFields(root); err != nil {
			return nil, NewDocumentError("load", part.path, err)
		}
		m.log.Debug("part loaded",
			zap.String("part", part.path),
			zap.String("category", part.category))
	}
	m.log.Debug("document loaded", zap.Int("fields", len(m.md.fields)))
	return m, nil
}

// GetMergeFields returns the distinct names of fields still awaiting data,
// sorted.
func (m *MailMerge) GetMergeFields() []string {
	if m.closed {
		return nil
	}
	seen := make(map[string]bool)
	for _, part := range m.pkg.partsByCategory(mergeableCategories...) {
		for name := range m.md.FieldNames(part.doc.Root()) {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge resolves fields against a single data row, in place, across the
// body, headers, footers and notes, including parts created by an earlier
// MergeTemplates. Fields without data stay in the document for a later
// Merge call or the write-time sweep.
func (m *MailMerge) Merge(row map[string]any) error {
	if m.closed {
		return ErrClosed
	}
	for _, part := range m.pkg.partsByCategory(mergeableCategories...) {
		if err := m.md.Replace(part.doc.Root(), row); err != nil {
			return fmt.Errorf("merging %s: %w", part.path, err)
		}
	}
	for _, np := range m.newParts {
		if err := m.md.Replace(np.doc.Root(), row); err != nil {
			return fmt.Errorf("merging %s: %w", np.path, err)
		}
	}
	return nil
}

// MergeRows replicates the table row containing the anchor field once per
// entry in rows. Other fields in the document are untouched.
func (m *MailMerge) MergeRows(anchor string, rows []map[string]any) error {
	if m.closed {
		return ErrClosed
	}
	for _, part := range m.pkg.partsByCategory(mergeableCategories...) {
		if err := m.md.ReplaceTableRows(part.doc.Root(), anchor, rows); err != nil {
			return fmt.Errorf("merging %s: %w", part.path, err)
		}
	}
	for _, np := range m.newParts {
		if err := m.md.ReplaceTableRows(np.doc.Root(), anchor, rows); err != nil {
			return fmt.Errorf("merging %s: %w", np.path, err)
		}
	}
	return nil
}

// MergeTemplates duplicates the document body once per data row, separated
// by sep, and resolves each copy against its row. Headers and footers that
// carry fields are duplicated as new package parts with rewritten
// relationship references. A ValueFunc returning ErrSkipRecord abandons
// that row only; its copies are discarded and the merge continues.
func (m *MailMerge) MergeTemplates(rows []map[string]any, sep Separator) error {
	if m.closed {
		return ErrClosed
	}
	if _, _, err := sep.split(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNoRows
	}

	var hfs []*mergeHeaderFooterDocument
	for _, part := range m.pkg.partsByCategory(categoryHeaderFooter) {
		rels, err := m.getRelations(part.path)
		if err != nil {
			return err
		}
		h, err := newMergeHeaderFooterDocument(m.md, part, rels, sep)
		if err != nil {
			return err
		}
		// existing part numbers must never be reissued
		_ = m.md.IDManager.ObserveIDStr(h.idType + h.partID)
		hfs = append(hfs, h)
	}

	var docs []*mergeDocument
	for _, part := range m.pkg.partsByCategory(categoryMain) {
		rels, err := m.getRelations(part.path)
		if err != nil {
			return err
		}
		d, err := newMergeDocument(m.md, part.doc.Root(), rels, sep)
		if err != nil {
			return fmt.Errorf("merging %s: %w", part.path, err)
		}
		docs = append(docs, d)
	}

	for i, row := range rows {
		for _, d := range docs {
			d.prepare()
		}
		for _, h := range hfs {
			h.prepare()
		}

		abort := false
		err := m.mergeRow(docs, hfs, row)
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipRecord):
			m.log.Debug("record skipped", zap.Int("row", i))
			abort = true
		default:
			return fmt.Errorf("merging row %d: %w", i, err)
		}

		var rels []relRewrite
		for _, h := range hfs {
			rels = append(rels, h.finish(abort)...)
		}
		for _, d := range docs {
			d.finish(rels, abort)
		}
	}

	for _, d := range docs {
		d.close()
	}
	for _, h := range hfs {
		m.newParts = append(m.newParts, h.newParts...)
	}
	m.log.Debug("templates merged",
		zap.Int("rows", len(rows)),
		zap.Int("new_parts", len(m.newParts)))
	return nil
}

func (m *MailMerge) mergeRow(docs []*mergeDocument, hfs []*mergeHeaderFooterDocument, row map[string]any) error {
	for _, d := range docs {
		if err := d.merge(row); err != nil {
			return err
		}
	}
	for _, h := range hfs {
		if err := h.merge(row); err != nil {
			return err
		}
	}
	return nil
}

// MergePages duplicates the body once per row with a page break between
// copies.
//
// Deprecated: use MergeTemplates with SeparatorPageBreak.
func (m *MailMerge) MergePages(rows []map[string]any) error {
	m.log.Warn("MergePages is deprecated, use MergeTemplates")
	return m.MergeTemplates(rows, SeparatorPageBreak)
}

// Write serializes the merged package to w. Fields still awaiting data are
// settled per the keep-fields policy first; the document stays usable for
// further writes but not for further merges of the settled fields.
func (m *MailMerge) Write(w io.Writer) error {
	if m.closed {
		return ErrClosed
	}

	hasUnmerged := len(m.GetMergeFields()) > 0
	m.md.replaceMissing = true
	for _, part := range m.pkg.partsByCategory(mergeableCategories...) {
		if err := m.md.Replace(part.doc.Root(), map[string]any{}); err != nil {
			m.md.replaceMissing = false
			return fmt.Errorf("settling %s: %w", part.path, err)
		}
	}
	for _, np := range m.newParts {
		if err := m.md.Replace(np.doc.Root(), map[string]any{}); err != nil {
			m.md.replaceMissing = false
			return fmt.Errorf("settling %s: %w", np.path, err)
		}
	}
	m.md.replaceMissing = false

	keptFields := (m.md.keepFields == KeepFieldsAll && len(m.md.fields) > 0) ||
		(m.md.keepFields != KeepFieldsNone && hasUnmerged)
	m.fixSettings(keptFields)

	for _, np := range m.newParts {
		if np.contentType.Parent() == nil {
			m.pkg.contentTypes.Root().AddChild(np.contentType)
		}
	}

	zw := zip.NewWriter(w)
	for _, entry := range m.pkg.reader.File {
		var payload []byte
		switch {
		case entry.Name == contentTypesPath:
			var err error
			if payload, err = m.pkg.contentTypes.WriteToBytes(); err != nil {
				return NewDocumentError("write", entry.Name, err)
			}
		default:
			if part, ok := m.pkg.parts[entry.Name]; ok {
				var err error
				if payload, err = part.doc.WriteToBytes(); err != nil {
					return NewDocumentError("write", entry.Name, err)
				}
			}
		}

		out, err := zw.Create(entry.Name)
		if err != nil {
			return NewDocumentError("write", entry.Name, err)
		}
		if payload != nil {
			if _, err := out.Write(payload); err != nil {
				return NewDocumentError("write", entry.Name, err)
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return NewDocumentError("write", entry.Name, err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			rc.Close()
			return NewDocumentError("write", entry.Name, err)
		}
		rc.Close()
	}

	for _, np := range m.newParts {
		payload, err := np.doc.WriteToBytes()
		if err != nil {
			return NewDocumentError("write", np.path, err)
		}
		out, err := zw.Create(np.path)
		if err != nil {
			return NewDocumentError("write", np.path, err)
		}
		if _, err := out.Write(payload); err != nil {
			return NewDocumentError("write", np.path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return NewDocumentError("write", "", err)
	}
	m.log.Debug("document written", zap.Int("new_parts", len(m.newParts)))
	return nil
}

// WriteFile writes the merged package to path.
func (m *MailMerge) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return NewDocumentError("write", path, err)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close releases the document. It is idempotent; every other operation on
// a closed document returns ErrClosed.
func (m *MailMerge) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.pkg = nil
	m.newParts = nil
	return nil
}

// fixSettings adjusts the settings part for output. The w:mailMerge
// element, which makes Word prompt for a data source, is dropped once no
// live field remains; w:updateFields is inserted per the configured policy
// so Word recalculates nested field results on open.
func (m *MailMerge) fixSettings(keptFields bool) {
	part := m.pkg.settingsPart()
	if part == nil {
		return
	}
	root := part.doc.Root()

	if !keptFields {
		if mm := root.SelectElement("w:mailMerge"); mm != nil {
			root.RemoveChild(mm)
		}
	}

	update := m.updateFields == UpdateFieldsAlways ||
		(m.updateFields == UpdateFieldsWhenNeeded && (m.md.hasNestedFields || keptFields))
	if update && root.SelectElement("w:updateFields") == nil {
		uf := etree.NewElement("w:updateFields")
		uf.CreateAttr("w:val", "true")
		root.InsertChildAt(0, uf)
	}
}

// getRelations loads and caches a part's relationship document, recording
// every existing relationship ID with the unique-ID manager.
func (m *MailMerge) getRelations(partPath string) (*RelationsDocument, error) {
	if rd, ok := m.relations[partPath]; ok {
		return rd, nil
	}
	rd, err := m.pkg.loadRelations(partPath)
	if err != nil {
		return nil, err
	}
	if rd != nil {
		rd.registerExisting(m.md.IDManager)
	}
	m.relations[partPath] = rd
	return rd, nil
}
