package mailmerge

import "github.com/beevik/etree"

// RelationsDocument wraps one part's relationship document
// (<dir>/_rels/<part>.rels). Relationship IDs are unique within a single
// relationship document; duplicating a part therefore requires duplicating
// every relationship it uses under a freshly allocated ID.
type RelationsDocument struct {
	doc  *etree.Document
	path string
}

// GetRelationElem finds the relationship whose Target attribute matches
// target, or nil when the part has no such relationship.
func (rd *RelationsDocument) GetRelationElem(target string) *etree.Element {
	for _, rel := range rd.doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("Target", "") == target {
			return rel
		}
	}
	return nil
}

// ReplaceRelation clones old under a fresh ID pointing at newTarget,
// appends the clone to the relationship document, and returns the new ID.
func (rd *RelationsDocument) ReplaceRelation(idman *UniqueIDManager, old *etree.Element, newTarget string) (string, error) {
	newRel := old.Copy()
	newID, err := idman.RegisterIDStr(old.SelectAttrValue("Id", ""))
	if err != nil {
		return "", err
	}
	newRel.CreateAttr("Id", newID)
	newRel.CreateAttr("Target", newTarget)
	rd.doc.Root().AddChild(newRel)
	return newID, nil
}

// registerExisting records every relationship ID already present so the
// unique-ID manager never hands one of them out again.
func (rd *RelationsDocument) registerExisting(idman *UniqueIDManager) {
	for _, rel := range rd.doc.Root().SelectElements("Relationship") {
		// Non-numeric schemes are simply not tracked.
		_ = idman.ObserveIDStr(rel.SelectAttrValue("Id", ""))
	}
}
