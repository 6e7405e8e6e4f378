// Package mailmerge fills Word MERGEFIELD placeholders in DOCX documents.
//
// A template is any .docx file containing merge fields inserted through
// Word's "Insert Field" / mail-merge tooling. The package discovers both
// simple (w:fldSimple) and complex (w:fldChar begin/separate/end) field
// encodings in the document body, headers, footers and notes, and replaces
// them with values supplied by the caller.
//
// Basic usage:
//
//	doc, err := mailmerge.Open("letter.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close()
//
//	doc.Merge(map[string]any{
//	    "name":    "Ann",
//	    "balance": 1234.5,
//	})
//
//	if err := doc.WriteFile("out.docx"); err != nil {
//	    log.Fatal(err)
//	}
//
// For one output document per data row, use MergeTemplates with one of the
// Separator values:
//
//	rows := []map[string]any{{"name": "Ann"}, {"name": "Bo"}}
//	doc.MergeTemplates(rows, mailmerge.SeparatorPageBreak)
//
// Values may be strings, numbers, time.Time, a []map[string]any (which
// replicates the enclosing table row per entry), a *RichTextPayload with
// pre-built WordprocessingML content, or a ValueFunc callback. A callback
// returning ErrSkipRecord discards the current row of a MergeTemplates run.
package mailmerge
