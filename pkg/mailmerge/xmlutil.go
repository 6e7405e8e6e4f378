package mailmerge

import (
	"strings"

	"github.com/beevik/etree"
)

// nextSiblingElement returns the first element following e among the
// children of e's parent, or nil.
func nextSiblingElement(e *etree.Element) *etree.Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	for i := e.Index() + 1; i < len(parent.Child); i++ {
		if el, ok := parent.Child[i].(*etree.Element); ok {
			return el
		}
	}
	return nil
}

// forEachElement applies fn to e and every element below it.
func forEachElement(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, child := range e.ChildElements() {
		forEachElement(child, fn)
	}
}

// isDescendantOf reports whether e is scope or sits below scope.
func isDescendantOf(e, scope *etree.Element) bool {
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur == scope {
			return true
		}
	}
	return false
}

// findAncestor walks up from e looking for an element with the given
// prefixed tag, stopping at (and excluding) the tree root.
func findAncestor(e *etree.Element, space, tag string) *etree.Element {
	for cur := e.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Space == space && cur.Tag == tag {
			return cur
		}
	}
	return nil
}

// detach removes e from its parent, if it has one.
func detach(e *etree.Element) {
	if parent := e.Parent(); parent != nil {
		parent.RemoveChild(e)
	}
}

// removeAllChildren empties an element in place.
func removeAllChildren(e *etree.Element) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(len(e.Child) - 1)
	}
}

// setRunText fills run with the given text, splitting on newlines into
// w:t elements separated by w:br, the way Word represents line breaks.
func setRunText(run *etree.Element, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			run.CreateElement("w:br")
		}
		t := run.CreateElement("w:t")
		t.SetText(line)
		if line != strings.TrimSpace(line) {
			t.CreateAttr("xml:space", "preserve")
		}
	}
}

// findDescendants collects every element below scope (scope included) with
// the given prefixed tag, in document order. etree path expressions resolve
// "//" against the tree root, so scoped queries are done by explicit walk.
func findDescendants(scope *etree.Element, space, tag string) []*etree.Element {
	var found []*etree.Element
	forEachElement(scope, func(e *etree.Element) {
		if e.Space == space && e.Tag == tag {
			found = append(found, e)
		}
	})
	return found
}

// instrTextOf concatenates the w:instrText content of the given elements,
// descending into runs and any elements nested below them.
func instrTextOf(elems []*etree.Element) string {
	var sb strings.Builder
	for _, e := range elems {
		for _, it := range findDescendants(e, "w", "instrText") {
			sb.WriteString(it.Text())
		}
	}
	return sb.String()
}
