package parser

import (
	"path/filepath"
	"strings"
)

// Document is a single parsed Markdown file.
type Document struct {
	Path  string   // repository-relative, slash separated
	Meta  Metadata // header state and fields
	Body  string   // text after the header, or the full text when absent/malformed
	Links []string // raw link destinations found in Body
}

// Explicit reports whether the document carries a usable header.
func (d *Document) Explicit() bool {
	return d.Meta.State == MetaPresent && d.Meta.ID != ""
}

// SupportedExtensions lists document extensions the builder manages.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// IsSupportedExtension checks if a file extension is a managed document type.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse splits the header from raw text and collects the body's links.
func Parse(path string, raw []byte) *Document {
	meta, body := ParseMetadata(string(raw))
	return &Document{
		Path:  path,
		Meta:  meta,
		Body:  body,
		Links: ExtractLinks([]byte(body)),
	}
}
