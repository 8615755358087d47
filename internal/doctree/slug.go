package doctree

import (
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every run of non-alphanumeric characters
// to a single hyphen.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TitleFromFilename turns "getting-started_guide.md" into
// "Getting Started Guide".
func TitleFromFilename(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
