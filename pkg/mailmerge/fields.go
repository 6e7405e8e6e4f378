package mailmerge

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/beevik/etree"
)

// mergeField is the normalized form of one raw field encoding. After
// normalization the raw nodes are detached from the tree and replaced by a
// single <MergeField name=".." merge_key=".."/> placeholder element; the
// detached nodes stay owned here for format inheritance, nested resolution
// and the keep-fields policies.
type mergeField struct {
	key      string
	name     string
	instr    string
	switches fieldSwitches
	nested   bool
	simple   bool

	// template is a copy of the field's first display run; replacement
	// runs are cloned from it so the original formatting survives.
	template *etree.Element

	// allElems is the complete raw encoding in document order; showElems
	// the display-content subset between separate and end markers.
	allElems  []*etree.Element
	showElems []*etree.Element

	// children are the merge keys of placeholders nested inside the
	// display content.
	children []string
}

// fieldSwitches holds the parsed \# and \@ format switches.
type fieldSwitches struct {
	numberFormat string
	dateFormat   string
}

// fillSimpleFields normalizes every w:fldSimple under root. The simple
// encoding carries the instruction as an attribute and the display content
// as a single child run.
func (md *MergeData) fillSimpleFields(root *etree.Element) {
	for _, fs := range findDescendants(root, "w", "fldSimple") {
		instr := fs.SelectAttrValue("w:instr", "")
		var show []*etree.Element
		if run := fs.SelectElement("w:r"); run != nil {
			show = append(show, run.Copy())
		}
		f := md.makeDataField(instr, false, true, []*etree.Element{fs}, nil, show)
		if f != nil {
			md.insertPlaceholder(f)
		}
	}
}

// fillComplexFields normalizes every begin/separate/end field under root.
// All begin-marker runs are collected into a work list up front; fields are
// consumed from it in document order, recursing into nested fields so each
// inner field is fully normalized before the outer walk continues.
func (md *MergeData) fillComplexFields(root *etree.Element) error {
	var begins []*etree.Element
	for _, run := range findDescendants(root, "w", "r") {
		if fc := run.SelectElement("w:fldChar"); fc != nil &&
			fc.SelectAttrValue("w:fldCharType", "") == "begin" {
			begins = append(begins, run)
		}
	}
	for len(begins) > 0 {
		f, _, err := md.pullNextMergeField(&begins, false)
		if err != nil {
			return err
		}
		if f != nil {
			md.insertPlaceholder(f)
		}
	}
	return nil
}

// pullNextMergeField consumes the earliest begin marker from the work list
// and walks forward through sibling runs, crossing paragraph boundaries,
// until the matching end marker. It returns the normalized field (nil when
// the instruction is not a MERGEFIELD, in which case the raw nodes stay in
// the tree) and the last element consumed.
func (md *MergeData) pullNextMergeField(begins *[]*etree.Element, nested bool) (*mergeField, *etree.Element, error) {
	current := (*begins)[0]
	*begins = (*begins)[1:]

	allElems := []*etree.Element{current}
	var instrElems, showElems []*etree.Element
	target := &instrElems

	for {
		next, fldCharType := nextFieldRun(current)
		if next == nil {
			return nil, nil, NewMalformedFieldError(strings.TrimSpace(instrTextOf(allElems)))
		}

		switch {
		case fldCharType == "begin":
			if len(*begins) == 0 || (*begins)[0] != next {
				return nil, nil, NewMalformedFieldError(strings.TrimSpace(instrTextOf(allElems)))
			}
			sub, last, err := md.pullNextMergeField(begins, true)
			if err != nil {
				return nil, nil, err
			}
			if sub != nil {
				next = md.insertPlaceholder(sub)
			} else {
				next = last
			}
		case fldCharType == "separate":
			target = &showElems
		case next.Space == "" && next.Tag == tagMergeField:
			// a simple field normalized earlier sits inside this one
			md.markNested(next.SelectAttrValue(attrMergeKey, ""))
		}

		if fldCharType != "end" && fldCharType != "separate" {
			*target = append(*target, next)
		}
		allElems = append(allElems, next)
		current = next

		if fldCharType == "end" {
			break
		}
	}

	f := md.makeDataField("", nested, false, allElems, instrElems, showElems)
	return f, current, nil
}

// nextFieldRun returns the element following cur, searching forward through
// following paragraphs when the current one has no more runs, together with
// its w:fldChar type ("" when it is not a field marker).
func nextFieldRun(cur *etree.Element) (*etree.Element, string) {
	next := nextSiblingElement(cur)
	para := cur.Parent()
	for next == nil {
		if para == nil {
			return nil, ""
		}
		para = nextSiblingElement(para)
		if para == nil {
			return nil, ""
		}
		next = para.SelectElement("w:r")
	}
	fldChar := next.SelectElement("w:fldChar")
	if fldChar == nil {
		return next, ""
	}
	return next, fldChar.SelectAttrValue("w:fldCharType", "")
}

// makeDataField builds the normalized field record. It returns nil when the
// instruction is not a MERGEFIELD; nested placeholders inside such fields
// are still tracked and marked nested.
func (md *MergeData) makeDataField(instr string, nested, simple bool, allElems, instrElems, showElems []*etree.Element) *mergeField {
	if instr == "" {
		instr = instrTextOf(instrElems)
	}
	name, switches, ok := parseInstruction(instr)
	if !ok {
		for _, e := range allElems {
			for _, ph := range findDescendants(e, "", tagMergeField) {
				md.markNested(ph.SelectAttrValue(attrMergeKey, ""))
			}
		}
		return nil
	}

	md.keyCounter++
	f := &mergeField{
		key:       strconv.Itoa(md.keyCounter),
		name:      name,
		instr:     strings.TrimSpace(instr),
		switches:  switches,
		nested:    nested,
		simple:    simple,
		allElems:  allElems,
		showElems: showElems,
	}
	for _, e := range showElems {
		if e.Space == "w" && e.Tag == "r" && f.template == nil {
			f.template = e.Copy()
		}
		for _, ph := range findDescendants(e, "", tagMergeField) {
			f.children = append(f.children, ph.SelectAttrValue(attrMergeKey, ""))
		}
	}
	if f.template == nil {
		f.template = etree.NewElement("w:r")
	}
	if nested {
		md.hasNestedFields = true
	}
	md.fields[f.key] = f
	return f
}

// insertPlaceholder swaps the raw field encoding for its placeholder
// element, detaching every consumed node. The placeholder takes the
// position of the first consumed node.
func (md *MergeData) insertPlaceholder(f *mergeField) *etree.Element {
	first := f.allElems[0]
	parent := first.Parent()

	ph := etree.NewElement(tagMergeField)
	ph.CreateAttr(attrFieldName, f.name)
	ph.CreateAttr(attrMergeKey, f.key)
	parent.InsertChildAt(first.Index(), ph)

	for _, e := range f.allElems {
		detach(e)
	}
	return ph
}

func (md *MergeData) markNested(key string) {
	if f, ok := md.fields[key]; ok {
		f.nested = true
		md.hasNestedFields = true
	}
}

// parseInstruction extracts the field name and format switches from a
// MERGEFIELD instruction such as:
//
//	MERGEFIELD Amount \# "#,##0.00" \* MERGEFORMAT
func parseInstruction(instr string) (string, fieldSwitches, bool) {
	var sw fieldSwitches
	tokens := splitInstruction(instr)
	if len(tokens) < 2 || !strings.EqualFold(tokens[0], "MERGEFIELD") {
		return "", sw, false
	}
	name := unquoteToken(tokens[1])
	for i := 2; i < len(tokens); i++ {
		switch tokens[i] {
		case `\#`:
			if i+1 < len(tokens) {
				sw.numberFormat = unquoteToken(tokens[i+1])
				i++
			}
		case `\@`:
			if i+1 < len(tokens) {
				sw.dateFormat = unquoteToken(tokens[i+1])
				i++
			}
		case `\*`:
			// MERGEFORMAT and friends; formatting is taken from the
			// display run instead.
			i++
		}
	}
	return name, sw, true
}

// splitInstruction splits on whitespace, keeping double-quoted spans
// together.
func splitInstruction(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case !inQuote && unicode.IsSpace(r):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func unquoteToken(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
