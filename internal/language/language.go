// Package language normalizes BCP 47 language tags used by the speech and
// synthesis backends.
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultTag is used when no language is configured.
const DefaultTag = "en-US"

// Normalize parses a language tag and returns its canonical form, e.g.
// "en_us" becomes "en-US". Empty input resolves to DefaultTag.
func Normalize(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag, nil
	}
	value = strings.ReplaceAll(value, "_", "-")
	tag, err := language.Parse(value)
	if err != nil {
		return "", fmt.Errorf("parse language tag %q: %w", value, err)
	}
	return tag.String(), nil
}

// Base returns the primary language subtag of a normalized tag, e.g. "en"
// for "en-US". Unparseable input falls back to the input unchanged.
func Base(value string) string {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return value
	}
	base, _ := tag.Base()
	return base.String()
}
