package mailmerge

import "strings"

// Part categories, keyed by the ContentType attribute of the Override
// entries in [Content_Types].xml.
const (
	categoryMain         = "main"
	categoryHeaderFooter = "header_footer"
	categoryNotes        = "notes"
	categorySettings     = "settings"
)

var contentTypeCategories = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml":          categoryMain,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.template.main+xml":          categoryMain,
	"application/vnd.ms-word.document.macroEnabled.main+xml":                                    categoryMain,
	"application/vnd.ms-word.template.macroEnabledTemplate.main+xml":                            categoryMain,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml":                 categoryHeaderFooter,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml":                 categoryHeaderFooter,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml":              categoryNotes,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.endnotes+xml":               categoryNotes,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml":               categorySettings,
}

// mergeableCategories are the categories that are scanned for fields.
var mergeableCategories = []string{categoryMain, categoryHeaderFooter, categoryNotes}

// Placeholder element written into part trees in place of a raw field
// encoding during normalization.
const (
	tagMergeField = "MergeField"
	attrFieldName = "name"
	attrMergeKey  = "merge_key"
)

// Separator selects what is inserted between duplicated bodies by
// MergeTemplates. The value is "<type>_<class>" where class is either
// "break" (a w:br run) or "section" (a w:sectPr paragraph).
type Separator string

const (
	SeparatorPageBreak         Separator = "page_break"
	SeparatorColumnBreak       Separator = "column_break"
	SeparatorTextWrappingBreak Separator = "textWrapping_break"
	SeparatorContinuousSection Separator = "continuous_section"
	SeparatorEvenPageSection   Separator = "evenPage_section"
	SeparatorNextColumnSection Separator = "nextColumn_section"
	SeparatorNextPageSection   Separator = "nextPage_section"
	SeparatorOddPageSection    Separator = "oddPage_section"
)

var validSeparators = map[Separator]bool{
	SeparatorPageBreak:         true,
	SeparatorColumnBreak:       true,
	SeparatorTextWrappingBreak: true,
	SeparatorContinuousSection: true,
	SeparatorEvenPageSection:   true,
	SeparatorNextColumnSection: true,
	SeparatorNextPageSection:   true,
	SeparatorOddPageSection:    true,
}

// split breaks a separator into its break/section type and class.
func (s Separator) split() (sepType, sepClass string, err error) {
	if !validSeparators[s] {
		return "", "", NewInvalidSeparatorError(string(s))
	}
	parts := strings.SplitN(string(s), "_", 2)
	return parts[0], parts[1], nil
}
