package mailmerge

import (
	"reflect"
	"testing"
)

func TestGetMergeFieldsSimple(t *testing.T) {
	m := openBody(t, para(textRun("Dear ")+simpleField("first_name")+textRun(" ")+simpleField("last_name")))
	defer m.Close()

	got := m.GetMergeFields()
	want := []string{"first_name", "last_name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMergeFields() = %v, want %v", got, want)
	}
}

func TestGetMergeFieldsComplex(t *testing.T) {
	m := openBody(t, para(complexField(` MERGEFIELD city `, "«city»")))
	defer m.Close()

	got := m.GetMergeFields()
	if !reflect.DeepEqual(got, []string{"city"}) {
		t.Errorf("GetMergeFields() = %v, want [city]", got)
	}
}

func TestGetMergeFieldsDeduplicatesAndSorts(t *testing.T) {
	body := para(simpleField("zeta")) +
		para(simpleField("alpha")) +
		para(simpleField("zeta")) +
		para(complexField(` MERGEFIELD alpha `, "«alpha»"))
	m := openBody(t, body)
	defer m.Close()

	got := m.GetMergeFields()
	want := []string{"alpha", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMergeFields() = %v, want %v", got, want)
	}
}

func TestFieldsAcrossParagraphBoundary(t *testing.T) {
	// begin and end markers in different paragraphs
	body := para(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`+
		`<w:r><w:instrText> MERGEFIELD split </w:instrText></w:r>`) +
		para(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`+
			`<w:r><w:t>«split»</w:t></w:r>`+
			`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	m := openBody(t, body)
	defer m.Close()

	if got := m.GetMergeFields(); !reflect.DeepEqual(got, []string{"split"}) {
		t.Errorf("GetMergeFields() = %v, want [split]", got)
	}
}

func TestFieldsInHeader(t *testing.T) {
	m := openPackage(t, map[string]string{
		"word/document.xml": documentXML(para(simpleField("body_field"))),
		"word/header1.xml":  headerXML(para(simpleField("header_field"))),
	})
	defer m.Close()

	got := m.GetMergeFields()
	want := []string{"body_field", "header_field"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMergeFields() = %v, want %v", got, want)
	}
}

func TestMalformedFieldBeginWithoutEnd(t *testing.T) {
	body := para(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> MERGEFIELD broken </w:instrText></w:r>`)
	data := buildPackage(t, map[string]string{"word/document.xml": documentXML(body)})

	_, err := New(newBytesReaderAt(data))
	if err == nil {
		t.Fatal("expected error for begin without end")
	}
	if !IsMalformedFieldError(err) {
		t.Errorf("got %v, want MalformedFieldError", err)
	}
}

func TestNonMergefieldComplexFieldLeftAlone(t *testing.T) {
	body := para(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> PAGE </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>1</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	m := openBody(t, body)
	defer m.Close()

	if got := m.GetMergeFields(); len(got) != 0 {
		t.Errorf("GetMergeFields() = %v, want empty", got)
	}
	// the raw PAGE field must survive untouched
	if len(findDescendants(mainRoot(t, m), "w", "fldChar")) != 3 {
		t.Error("PAGE field markers were removed")
	}
}

func TestNestedFieldDiscovery(t *testing.T) {
	// an IF field wrapping a MERGEFIELD: the outer stays raw, the inner
	// becomes a placeholder marked nested
	body := para(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> IF </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> MERGEFIELD inner </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>«inner»</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
		`<w:r><w:instrText> = "x" "yes" "no" </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>no</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	m := openBody(t, body)
	defer m.Close()

	if got := m.GetMergeFields(); !reflect.DeepEqual(got, []string{"inner"}) {
		t.Fatalf("GetMergeFields() = %v, want [inner]", got)
	}
	if !m.md.hasNestedFields {
		t.Error("nested field not flagged")
	}
}

func TestParseInstruction(t *testing.T) {
	tests := []struct {
		instr    string
		name     string
		numFmt   string
		dateFmt  string
		accepted bool
	}{
		{` MERGEFIELD name `, "name", "", "", true},
		{`MERGEFIELD "two words"`, "two words", "", "", true},
		{` MERGEFIELD Amount \# "#,##0.00" \* MERGEFORMAT `, "Amount", "#,##0.00", "", true},
		{` MERGEFIELD due \@ "yyyy-MM-dd" `, "due", "", "yyyy-MM-dd", true},
		{` mergefield lower `, "lower", "", "", true},
		{` PAGE `, "", "", "", false},
		{` MERGEFIELD `, "", "", "", false},
	}
	for _, tt := range tests {
		name, sw, ok := parseInstruction(tt.instr)
		if ok != tt.accepted {
			t.Errorf("parseInstruction(%q) accepted=%v, want %v", tt.instr, ok, tt.accepted)
			continue
		}
		if !ok {
			continue
		}
		if name != tt.name || sw.numberFormat != tt.numFmt || sw.dateFormat != tt.dateFmt {
			t.Errorf("parseInstruction(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.instr, name, sw.numberFormat, sw.dateFormat, tt.name, tt.numFmt, tt.dateFmt)
		}
	}
}
