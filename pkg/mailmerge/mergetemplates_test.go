package mailmerge

import (
	"errors"
	"testing"
)

func letterParts(body string) map[string]string {
	return map[string]string{"word/document.xml": documentXML(body)}
}

func TestMergeTemplatesPageBreak(t *testing.T) {
	m := openPackage(t, letterParts(para(textRun("Hello ")+simpleField("name"))))
	defer m.Close()

	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}}
	if err := m.MergeTemplates(rows, SeparatorPageBreak); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}

	if got := bodyText(t, m); got != "Hello Ann\nHello Bo" {
		t.Errorf("body = %q, want %q", got, "Hello Ann\nHello Bo")
	}

	root := mainRoot(t, m)
	pageBreaks := 0
	for _, br := range findDescendants(root, "w", "br") {
		if br.SelectAttrValue("w:type", "") == "page" {
			pageBreaks++
		}
	}
	if pageBreaks != 1 {
		t.Errorf("page breaks = %d, want 1", pageBreaks)
	}
	// the trailing section properties are restored exactly once
	if n := len(root.SelectElement("w:body").SelectElements("w:sectPr")); n != 1 {
		t.Errorf("trailing sectPr count = %d, want 1", n)
	}
}

func TestMergeTemplatesSectionSeparator(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}, {"name": "Cy"}}
	if err := m.MergeTemplates(rows, SeparatorNextPageSection); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}
	if got := bodyText(t, m); got != "AnnBoCy" {
		t.Errorf("body = %q", got)
	}

	// two separator paragraphs, each carrying section properties
	body := mainRoot(t, m).SelectElement("w:body")
	sectParas := 0
	for _, p := range body.SelectElements("w:p") {
		if pPr := p.SelectElement("w:pPr"); pPr != nil && pPr.SelectElement("w:sectPr") != nil {
			sectParas++
		}
	}
	if sectParas != 2 {
		t.Errorf("separator paragraphs = %d, want 2", sectParas)
	}
}

func TestMergeTemplatesSingleRowAddsNoSeparator(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	if err := m.MergeTemplates([]map[string]any{{"name": "Solo"}}, SeparatorPageBreak); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}
	if got := bodyText(t, m); got != "Solo" {
		t.Errorf("body = %q, want Solo", got)
	}
	if len(findDescendants(mainRoot(t, m), "w", "br")) != 0 {
		t.Error("separator added for a single row")
	}
}

func TestMergeTemplatesInvalidSeparator(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	err := m.MergeTemplates([]map[string]any{{"name": "x"}}, Separator("diagonal_break"))
	if !IsInvalidSeparatorError(err) {
		t.Errorf("got %v, want InvalidSeparatorError", err)
	}
	// the document must be untouched after the rejected call
	if got := m.GetMergeFields(); len(got) != 1 {
		t.Errorf("fields = %v, want one", got)
	}
}

func TestMergeTemplatesNoRows(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	if err := m.MergeTemplates(nil, SeparatorPageBreak); !errors.Is(err, ErrNoRows) {
		t.Errorf("got %v, want ErrNoRows", err)
	}
}

func TestMergeTemplatesSkipRecord(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	skip := ValueFunc(func(string) (any, error) { return nil, ErrSkipRecord })
	rows := []map[string]any{{"name": "Ann"}, {"name": skip}, {"name": "Cy"}}
	if err := m.MergeTemplates(rows, SeparatorPageBreak); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}
	if got := bodyText(t, m); got != "Ann\nCy" {
		t.Errorf("body = %q, want %q", got, "Ann\nCy")
	}
}

func TestMergeTemplatesBookmarksRenumbered(t *testing.T) {
	body := para(`<w:bookmarkStart w:id="1" w:name="mark"/>`+
		simpleField("name")+
		`<w:bookmarkEnd w:id="1"/>`) + ""
	m := openPackage(t, letterParts(body))
	defer m.Close()

	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}}
	if err := m.MergeTemplates(rows, SeparatorPageBreak); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}
	seen := make(map[string]bool)
	for _, bs := range findDescendants(mainRoot(t, m), "w", "bookmarkStart") {
		id := bs.SelectAttrValue("w:id", "")
		if seen[id] {
			t.Errorf("duplicate bookmark id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 2 {
		t.Errorf("bookmarkStart count = %d, want 2", len(seen))
	}
}

func headerLetterParts() map[string]string {
	sectPr := `<w:sectPr><w:headerReference w:type="default" r:id="rId1"/>` +
		`<w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`
	doc := xmlHeader + `<w:document ` + nsAttrs + `><w:body>` +
		para(textRun("Dear ")+simpleField("name")) + sectPr + `</w:body></w:document>`
	return map[string]string{
		"word/document.xml":            doc,
		"word/header1.xml":             headerXML(para(simpleField("name"))),
		"word/_rels/document.xml.rels": relsXML([][3]string{{"rId1", headerRelType, "header1.xml"}}),
	}
}

func TestMergeTemplatesDuplicatesHeaders(t *testing.T) {
	m := openPackage(t, headerLetterParts())
	defer m.Close()

	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}}
	if err := m.MergeTemplates(rows, SeparatorNextPageSection); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}

	out, raw := writeAndReload(t, m)
	defer out.Close()

	names := zipEntryNames(t, raw)
	for _, want := range []string{"word/header2.xml", "word/header3.xml"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s in output, have %v", want, names)
		}
	}

	// the duplicated parts carry the per-row values
	headerTexts := make(map[string]string)
	for _, part := range out.pkg.partsByCategory(categoryHeaderFooter) {
		headerTexts[part.path] = collectText(part.doc.Root())
	}
	if headerTexts["word/header2.xml"] != "Ann" {
		t.Errorf("header2 = %q, want Ann", headerTexts["word/header2.xml"])
	}
	if headerTexts["word/header3.xml"] != "Bo" {
		t.Errorf("header3 = %q, want Bo", headerTexts["word/header3.xml"])
	}

	// relationship IDs must not collide and the trailing section must
	// reference the last duplicated header
	rels, err := out.pkg.loadRelations("word/document.xml")
	if err != nil {
		t.Fatalf("loading output relations: %v", err)
	}
	if rels.GetRelationElem("header2.xml") == nil || rels.GetRelationElem("header3.xml") == nil {
		t.Error("duplicated header relationships missing")
	}
	lastSect := mainRoot(t, out).SelectElement("w:body").SelectElement("w:sectPr")
	ref := lastSect.SelectElement("w:headerReference")
	lastID := ref.SelectAttrValue("r:id", "")
	if lastID == "rId1" {
		t.Error("trailing section still references the original header")
	}
	if rel := rels.GetRelationElem("header3.xml"); rel != nil &&
		rel.SelectAttrValue("Id", "") != lastID {
		t.Errorf("trailing section references %s, want the header3 relationship", lastID)
	}
}

func TestMergeTemplatesSkipLastRowLeavesRelationsAlone(t *testing.T) {
	m := openPackage(t, headerLetterParts())
	defer m.Close()

	skip := ValueFunc(func(string) (any, error) { return nil, ErrSkipRecord })
	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}, {"name": skip}}
	if err := m.MergeTemplates(rows, SeparatorNextPageSection); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}

	out, _ := writeAndReload(t, m)
	defer out.Close()

	// the second row's rewrite was flushed into the separator before the
	// third row aborted; it must not be applied again on close
	rels, err := out.pkg.loadRelations("word/document.xml")
	if err != nil {
		t.Fatalf("loading output relations: %v", err)
	}
	count := 0
	for _, rel := range rels.doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("Target", "") == "header3.xml" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("header3.xml relationship count = %d, want 1", count)
	}

	// the aborted row contributed nothing, so the trailing section keeps
	// its original header reference
	lastSect := mainRoot(t, out).SelectElement("w:body").SelectElement("w:sectPr")
	if got := lastSect.SelectElement("w:headerReference").SelectAttrValue("r:id", ""); got != "rId1" {
		t.Errorf("trailing section references %s, want rId1", got)
	}
	if got := bodyText(t, out); got != "Dear AnnDear Bo" {
		t.Errorf("body = %q", got)
	}
}

func TestMergeReachesDuplicatedHeaders(t *testing.T) {
	parts := headerLetterParts()
	parts["word/header1.xml"] = headerXML(para(simpleField("name") + simpleField("note")))
	m := openPackage(t, parts)
	defer m.Close()

	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}}
	if err := m.MergeTemplates(rows, SeparatorNextPageSection); err != nil {
		t.Fatalf("MergeTemplates: %v", err)
	}
	// the note field was not in the rows; a later merge still fills it in
	// the duplicated header parts
	if err := m.Merge(map[string]any{"note": " (confidential)"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	out, _ := writeAndReload(t, m)
	defer out.Close()

	headerTexts := make(map[string]string)
	for _, part := range out.pkg.partsByCategory(categoryHeaderFooter) {
		headerTexts[part.path] = collectText(part.doc.Root())
	}
	if got := headerTexts["word/header2.xml"]; got != "Ann (confidential)" {
		t.Errorf("header2 = %q, want %q", got, "Ann (confidential)")
	}
	if got := headerTexts["word/header3.xml"]; got != "Bo (confidential)" {
		t.Errorf("header3 = %q, want %q", got, "Bo (confidential)")
	}
}

func TestMergePagesAlias(t *testing.T) {
	m := openPackage(t, letterParts(para(simpleField("name"))))
	defer m.Close()

	if err := m.MergePages([]map[string]any{{"name": "Ann"}, {"name": "Bo"}}); err != nil {
		t.Fatalf("MergePages: %v", err)
	}
	if got := bodyText(t, m); got != "Ann\nBo" {
		t.Errorf("body = %q", got)
	}
}
