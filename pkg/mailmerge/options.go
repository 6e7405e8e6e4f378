package mailmerge

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// KeepFieldsPolicy controls what happens to merge fields when the document
// is written out.
type KeepFieldsPolicy int

const (
	// KeepFieldsNone replaces every field. Fields without data get the
	// configured empty value.
	KeepFieldsNone KeepFieldsPolicy = iota

	// KeepFieldsSome restores the raw field encoding for fields that never
	// received data, so a later pass through Word can still fill them.
	KeepFieldsSome

	// KeepFieldsAll keeps every field live: merged values are written as
	// the field's display result inside the original encoding.
	KeepFieldsAll
)

func (p KeepFieldsPolicy) String() string {
	switch p {
	case KeepFieldsNone:
		return "none"
	case KeepFieldsSome:
		return "some"
	case KeepFieldsAll:
		return "all"
	default:
		return fmt.Sprintf("KeepFieldsPolicy(%d)", int(p))
	}
}

// ParseKeepFieldsPolicy converts a policy name to its value.
func ParseKeepFieldsPolicy(s string) (KeepFieldsPolicy, error) {
	switch s {
	case "none":
		return KeepFieldsNone, nil
	case "some":
		return KeepFieldsSome, nil
	case "all":
		return KeepFieldsAll, nil
	default:
		return KeepFieldsNone, fmt.Errorf("unknown keep-fields policy %q", s)
	}
}

// UpdateFieldsPolicy controls whether the written document asks Word to
// recalculate fields on open (w:updateFields in settings).
type UpdateFieldsPolicy int

const (
	// UpdateFieldsNever leaves the settings untouched.
	UpdateFieldsNever UpdateFieldsPolicy = iota

	// UpdateFieldsWhenNeeded sets the flag only when the document held
	// nested fields, whose computed results Word must refresh.
	UpdateFieldsWhenNeeded

	// UpdateFieldsAlways sets the flag unconditionally.
	UpdateFieldsAlways
)

func (p UpdateFieldsPolicy) String() string {
	switch p {
	case UpdateFieldsNever:
		return "never"
	case UpdateFieldsWhenNeeded:
		return "auto"
	case UpdateFieldsAlways:
		return "always"
	default:
		return fmt.Sprintf("UpdateFieldsPolicy(%d)", int(p))
	}
}

// ParseUpdateFieldsPolicy converts a policy name to its value.
func ParseUpdateFieldsPolicy(s string) (UpdateFieldsPolicy, error) {
	switch s {
	case "never":
		return UpdateFieldsNever, nil
	case "auto":
		return UpdateFieldsWhenNeeded, nil
	case "always":
		return UpdateFieldsAlways, nil
	default:
		return UpdateFieldsNever, fmt.Errorf("unknown update-fields policy %q", s)
	}
}

// Option configures a document at open time.
type Option func(*MailMerge)

// WithKeepFields sets the write-time field retention policy.
func WithKeepFields(p KeepFieldsPolicy) Option {
	return func(m *MailMerge) { m.md.keepFields = p }
}

// WithAutoUpdateFields sets the w:updateFields policy.
func WithAutoUpdateFields(p UpdateFieldsPolicy) Option {
	return func(m *MailMerge) { m.updateFields = p }
}

// WithRemoveEmptyTables removes a table entirely when its anchor field
// receives an empty row list, instead of leaving a headerless shell.
func WithRemoveEmptyTables(remove bool) Option {
	return func(m *MailMerge) { m.md.removeEmptyTables = remove }
}

// WithEmptyValue sets the text substituted for fields that end up without
// data under KeepFieldsNone. Default is the empty string.
func WithEmptyValue(v string) Option {
	return func(m *MailMerge) { m.md.emptyValue = v }
}

// WithLocale sets the locale used for the N and P numeric format
// shorthands. Default is English.
func WithLocale(tag language.Tag) Option {
	return func(m *MailMerge) { m.md.locale = tag }
}

// WithLogger installs a logger. Default is zap.NewNop.
func WithLogger(log *zap.Logger) Option {
	return func(m *MailMerge) {
		m.log = log
		m.md.log = log
	}
}
