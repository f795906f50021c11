package vault

import (
	"unicode"
	"unicode/utf8"
)

const (
	MaxTitleLength     = 200
	MaxFieldCount      = 50
	MaxFieldNameLength = 100
	MaxFieldValueSize  = 64 * 1024
)

// Validate checks the payload shape and size limits. Errors wrap
// ErrInvalidEntry.
func (d *EntryData) Validate() error {
	if d.Title == "" {
		return validationErrorf("title must not be empty")
	}
	if !utf8.ValidString(d.Title) {
		return validationErrorf("title contains invalid UTF-8")
	}
	if n := utf8.RuneCountInString(d.Title); n > MaxTitleLength {
		return validationErrorf("title length %d exceeds maximum of %d", n, MaxTitleLength)
	}
	if len(d.Fields) == 0 {
		return validationErrorf("entry must have at least one field")
	}
	if len(d.Fields) > MaxFieldCount {
		return validationErrorf("field count %d exceeds maximum of %d", len(d.Fields), MaxFieldCount)
	}
	for i, f := range d.Fields {
		if err := validateFieldName(f.Name); err != nil {
			return err
		}
		if len(f.Value) > MaxFieldValueSize {
			return validationErrorf("field %d size %d exceeds maximum of %d bytes", i, len(f.Value), MaxFieldValueSize)
		}
		if !utf8.ValidString(f.Value) {
			return validationErrorf("field %q value contains invalid UTF-8", f.Name)
		}
	}
	return nil
}

func validateFieldName(name string) error {
	if name == "" {
		return validationErrorf("field name must not be empty")
	}
	if !utf8.ValidString(name) {
		return validationErrorf("field name contains invalid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > MaxFieldNameLength {
		return validationErrorf("field name length %d exceeds maximum of %d", n, MaxFieldNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return validationErrorf("field name contains control character")
		}
	}
	return nil
}
