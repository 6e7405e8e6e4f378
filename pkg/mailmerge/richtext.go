package mailmerge

import "github.com/beevik/etree"

// RichTextPayload carries pre-built WordprocessingML fragments that replace
// a merge field verbatim. Block-level payloads (w:p paragraphs, w:tbl
// tables) replace the paragraph enclosing the field, since block content
// cannot live inside a run; inline payloads (w:r runs) are spliced in place
// of the field, leaving the paragraph intact.
//
// The payload's elements are deep-copied on every insertion, so one payload
// can safely be reused across rows.
type RichTextPayload struct {
	elements   []*etree.Element
	blockLevel bool
}

// NewRichTextPayload creates a payload from the given fragments. Pass
// blockLevel=false when supplying inline runs.
func NewRichTextPayload(elements []*etree.Element, blockLevel bool) *RichTextPayload {
	elems := make([]*etree.Element, len(elements))
	copy(elems, elements)
	return &RichTextPayload{elements: elems, blockLevel: blockLevel}
}

// BlockLevel reports whether the payload replaces the enclosing paragraph.
func (p *RichTextPayload) BlockLevel() bool { return p.blockLevel }

// Len returns the number of fragments in the payload.
func (p *RichTextPayload) Len() int { return len(p.elements) }

// cloneElements returns deep copies of the fragments, ready for insertion.
func (p *RichTextPayload) cloneElements() []*etree.Element {
	clones := make([]*etree.Element, len(p.elements))
	for i, e := range p.elements {
		clones[i] = e.Copy()
	}
	return clones
}
