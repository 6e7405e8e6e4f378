package mailmerge

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// ValueFunc computes a field value at merge time. Returning ErrSkipRecord
// abandons the current data row during MergeTemplates; any other error
// aborts the merge.
type ValueFunc func(field string) (any, error)

// valueKind is the closed set of shapes a row value can take.
type valueKind int

const (
	valueMissing valueKind = iota
	valueLiteral
	valueTableRows
	valueRichText
)

type fieldValue struct {
	kind    valueKind
	raw     any
	rows    []map[string]any
	payload *RichTextPayload
}

// MergeData owns the normalized fields of one loaded document and resolves
// them against data rows. It holds the document's unique-ID manager so
// every component that duplicates content allocates through the same
// counters.
type MergeData struct {
	IDManager *UniqueIDManager

	fields          map[string]*mergeField
	keyCounter      int
	hasNestedFields bool

	keepFields        KeepFieldsPolicy
	removeEmptyTables bool
	emptyValue        string
	locale            language.Tag
	log               *zap.Logger

	// replaceMissing is raised during the write-path sweep: fields with no
	// data are then substituted with the empty value, or restored to their
	// raw encoding under the keep-fields policies.
	replaceMissing bool
}

func newMergeData(log *zap.Logger) *MergeData {
	return &MergeData{
		IDManager: NewUniqueIDManager(),
		fields:    make(map[string]*mergeField),
		locale:    language.English,
		log:       log,
	}
}

// Replace resolves every placeholder under scope against row. Placeholders
// whose field has no entry in row are left in place for a later merge or
// the write-path sweep.
func (md *MergeData) Replace(scope *etree.Element, row map[string]any) error {
	for _, ph := range findDescendants(scope, "", tagMergeField) {
		// Table-row replication and block payloads detach whole subtrees;
		// placeholders inside them are gone from the live tree.
		if ph.Parent() == nil || !isDescendantOf(ph, scope) {
			continue
		}
		f := md.fields[ph.SelectAttrValue(attrMergeKey, "")]
		if f == nil {
			continue
		}
		fv, err := md.lookup(row, f.name)
		if err != nil {
			return err
		}
		switch fv.kind {
		case valueMissing:
			if err := md.resolveMissing(ph, f, row); err != nil {
				return err
			}
		case valueLiteral:
			md.spliceLiteral(ph, f, md.formatLiteral(f, fv.raw))
		case valueTableRows:
			if err := md.replicateTableRow(ph, f, fv.rows); err != nil {
				return err
			}
		case valueRichText:
			md.spliceRichText(ph, fv.payload)
		}
	}
	return nil
}

// ReplaceTableRows resolves only the placeholders named anchor, treating
// rows as table-row repetition data. Used by MergeRows.
func (md *MergeData) ReplaceTableRows(scope *etree.Element, anchor string, rows []map[string]any) error {
	for _, ph := range findDescendants(scope, "", tagMergeField) {
		if ph.Parent() == nil || !isDescendantOf(ph, scope) {
			continue
		}
		if ph.SelectAttrValue(attrFieldName, "") != anchor {
			continue
		}
		f := md.fields[ph.SelectAttrValue(attrMergeKey, "")]
		if f == nil {
			continue
		}
		if err := md.replicateTableRow(ph, f, rows); err != nil {
			return err
		}
	}
	return nil
}

// FieldNames returns the distinct names of placeholders still present
// under scope.
func (md *MergeData) FieldNames(scope *etree.Element) map[string]bool {
	names := make(map[string]bool)
	for _, ph := range findDescendants(scope, "", tagMergeField) {
		names[ph.SelectAttrValue(attrFieldName, "")] = true
	}
	return names
}

func (md *MergeData) lookup(row map[string]any, name string) (fieldValue, error) {
	v, ok := row[name]
	if !ok {
		return fieldValue{kind: valueMissing}, nil
	}
	switch fn := v.(type) {
	case ValueFunc:
		res, err := fn(name)
		if err != nil {
			return fieldValue{}, err
		}
		v = res
	case func(string) (any, error):
		res, err := fn(name)
		if err != nil {
			return fieldValue{}, err
		}
		v = res
	}
	switch x := v.(type) {
	case []map[string]any:
		return fieldValue{kind: valueTableRows, rows: x}, nil
	case *RichTextPayload:
		if x == nil {
			return fieldValue{kind: valueMissing}, nil
		}
		return fieldValue{kind: valueRichText, payload: x}, nil
	case nil:
		return fieldValue{kind: valueLiteral, raw: ""}, nil
	default:
		return fieldValue{kind: valueLiteral, raw: v}, nil
	}
}

// resolveMissing handles a placeholder that has no value in the current
// row. Outside the write sweep it is left alone, unless its display
// content holds nested placeholders that do have data, in which case the
// field is assembled from its children.
func (md *MergeData) resolveMissing(ph *etree.Element, f *mergeField, row map[string]any) error {
	if len(f.children) > 0 {
		text, resolved, err := md.assembleNested(f, row)
		if err != nil {
			return err
		}
		if resolved {
			md.spliceNodes(ph, md.runsForText(f, text))
			return nil
		}
	}
	if !md.replaceMissing {
		return nil
	}
	if md.keepFields == KeepFieldsNone {
		md.spliceNodes(ph, md.runsForText(f, md.emptyValue))
		return nil
	}
	md.restoreField(ph, f, nil)
	return nil
}

// assembleNested resolves the placeholders nested in f's display content
// depth-first, concatenates their formatted text and applies f's own
// format switch to the combined result.
func (md *MergeData) assembleNested(f *mergeField, row map[string]any) (string, bool, error) {
	var sb strings.Builder
	resolved := false
	for _, key := range f.children {
		cf := md.fields[key]
		if cf == nil {
			continue
		}
		fv, err := md.lookup(row, cf.name)
		if err != nil {
			return "", false, err
		}
		if fv.kind != valueLiteral {
			continue
		}
		sb.WriteString(md.formatLiteral(cf, fv.raw))
		resolved = true
	}
	if !resolved {
		return "", false, nil
	}
	return md.applySwitches(f, sb.String()), true, nil
}

// formatLiteral renders a literal value, honoring the field's \# and \@
// switches when the value has a matching shape.
func (md *MergeData) formatLiteral(f *mergeField, raw any) string {
	if f.switches.numberFormat != "" {
		if n, ok := parseNumericValue(raw); ok {
			return formatNumber(f.switches.numberFormat, n, md.locale)
		}
	}
	if f.switches.dateFormat != "" {
		if t, ok := parseDateValue(raw); ok {
			return formatDate(f.switches.dateFormat, t)
		}
	}
	return literalText(raw)
}

// applySwitches applies f's format switches to already-rendered text.
func (md *MergeData) applySwitches(f *mergeField, text string) string {
	if f.switches.numberFormat != "" {
		if n, ok := parseNumericValue(text); ok {
			return formatNumber(f.switches.numberFormat, n, md.locale)
		}
	}
	if f.switches.dateFormat != "" {
		if t, ok := parseDateValue(text); ok {
			return formatDate(f.switches.dateFormat, t)
		}
	}
	return text
}

// spliceLiteral replaces ph with runs rendering text. Under the keep-all
// policy the raw field encoding is restored around the new display runs so
// Word still sees a live field.
func (md *MergeData) spliceLiteral(ph *etree.Element, f *mergeField, text string) {
	runs := md.runsForText(f, text)
	if md.keepFields == KeepFieldsAll {
		md.restoreField(ph, f, runs)
		return
	}
	md.spliceNodes(ph, runs)
}

// runsForText clones the field's display-run template, strips its old
// content and fills it with text. Formatting (w:rPr) carries over.
func (md *MergeData) runsForText(f *mergeField, text string) []*etree.Element {
	run := f.template.Copy()
	for _, child := range run.ChildElements() {
		if child.Space == "w" && child.Tag == "rPr" {
			continue
		}
		run.RemoveChild(child)
	}
	setRunText(run, text)
	return []*etree.Element{run}
}

// spliceNodes inserts nodes at ph's position and removes ph.
func (md *MergeData) spliceNodes(ph *etree.Element, nodes []*etree.Element) {
	parent := ph.Parent()
	idx := ph.Index()
	for i, n := range nodes {
		parent.InsertChildAt(idx+i, n)
	}
	parent.RemoveChild(ph)
}

// spliceRichText inserts a pre-built payload. Block-level fragments
// replace the enclosing paragraph; inline fragments replace only the
// placeholder.
func (md *MergeData) spliceRichText(ph *etree.Element, payload *RichTextPayload) {
	clones := payload.cloneElements()
	if payload.blockLevel {
		if para := findAncestor(ph, "w", "p"); para != nil && para.Parent() != nil {
			parent := para.Parent()
			idx := para.Index()
			for i, c := range clones {
				parent.InsertChildAt(idx+i, c)
			}
			parent.RemoveChild(para)
			return
		}
	}
	md.spliceNodes(ph, clones)
}

// replicateTableRow clones the table row enclosing ph once per entry in
// rows, resolving every field in each clone against that entry's mapping.
// The original row is removed; an empty list removes the entire table when
// the remove-empty-tables policy is set.
func (md *MergeData) replicateTableRow(ph *etree.Element, f *mergeField, rows []map[string]any) error {
	tr := findAncestor(ph, "w", "tr")
	if tr == nil {
		// anchor outside a table row: nothing to replicate
		md.spliceNodes(ph, md.runsForText(f, md.emptyValue))
		return nil
	}
	tbl := findAncestor(tr, "w", "tbl")
	parent := tr.Parent()
	idx := tr.Index()

	for i, rowData := range rows {
		clone := tr.Copy()
		parent.InsertChildAt(idx+i, clone)
		if err := md.Replace(clone, rowData); err != nil {
			return err
		}
	}
	detach(tr)

	if len(rows) == 0 && md.removeEmptyTables && tbl != nil {
		detach(tbl)
	}
	return nil
}

// restoreField puts the raw field encoding back in place of ph. With runs
// set, the display content between the separate and end markers is swapped
// for the new runs; with runs nil the original display content is kept.
func (md *MergeData) restoreField(ph *etree.Element, f *mergeField, runs []*etree.Element) {
	clones := md.rawClones(f, runs)
	parent := ph.Parent()
	idx := ph.Index()
	for i, c := range clones {
		parent.InsertChildAt(idx+i, c)
	}
	parent.RemoveChild(ph)
}

// rawClones deep-copies the field's original node sequence. Placeholders
// that were consumed into this field are expanded back to their own raw
// encodings so no placeholder survives into serialized output.
func (md *MergeData) rawClones(f *mergeField, runs []*etree.Element) []*etree.Element {
	if f.simple {
		fld := f.allElems[0].Copy()
		if runs != nil {
			for _, child := range fld.SelectElements("w:r") {
				fld.RemoveChild(child)
			}
			for _, r := range runs {
				fld.AddChild(r)
			}
		}
		return []*etree.Element{fld}
	}

	var out []*etree.Element
	skipping := false
	inserted := false
	for _, e := range f.allElems {
		typ := fldCharTypeOf(e)
		if typ == "end" {
			if runs != nil && !inserted {
				out = append(out, runs...)
				inserted = true
			}
			skipping = false
			out = append(out, e.Copy())
			continue
		}
		if skipping {
			continue
		}
		if e.Space == "" && e.Tag == tagMergeField {
			if cf := md.fields[e.SelectAttrValue(attrMergeKey, "")]; cf != nil {
				out = append(out, md.rawClones(cf, nil)...)
				continue
			}
		}
		out = append(out, e.Copy())
		if runs != nil && typ == "separate" {
			out = append(out, runs...)
			inserted = true
			skipping = true
		}
	}
	return out
}

func fldCharTypeOf(e *etree.Element) string {
	if e.Space != "w" || e.Tag != "r" {
		return ""
	}
	fc := e.SelectElement("w:fldChar")
	if fc == nil {
		return ""
	}
	return fc.SelectAttrValue("w:fldCharType", "")
}

// fixIDs renumbers bookmark and drawing-object IDs in a freshly cloned
// body so duplicated copies do not collide with earlier ones.
func (md *MergeData) fixIDs(scope *etree.Element) {
	renumbered := make(map[string]string)
	for _, bs := range findDescendants(scope, "w", "bookmarkStart") {
		old := bs.SelectAttrValue("w:id", "")
		seed, _ := strconv.Atoi(old)
		id := strconv.Itoa(md.IDManager.RegisterID("bookmark", seed))
		renumbered[old] = id
		bs.CreateAttr("w:id", id)
	}
	for _, be := range findDescendants(scope, "w", "bookmarkEnd") {
		if id, ok := renumbered[be.SelectAttrValue("w:id", "")]; ok {
			be.CreateAttr("w:id", id)
		}
	}
	for _, dp := range findDescendants(scope, "wp", "docPr") {
		seed, _ := strconv.Atoi(dp.SelectAttrValue("id", ""))
		dp.CreateAttr("id", strconv.Itoa(md.IDManager.RegisterID("docPr", seed)))
	}
}
