package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes a metadata header.
const Delimiter = "---"

// MetaState discriminates the outcome of header parsing.
type MetaState int

const (
	MetaAbsent    MetaState = iota // no header, or no closing delimiter
	MetaPresent                    // header decoded as a mapping
	MetaMalformed                  // header found but not a valid mapping
)

func (s MetaState) String() string {
	switch s {
	case MetaPresent:
		return "present"
	case MetaMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// Metadata is the fixed field set carried by a document header.
// Fields are zero unless State is MetaPresent.
type Metadata struct {
	State MetaState

	ID          string
	Title       string
	Parent      *string
	Order       float64
	SourceFile  string
	SourceFiles []string

	// Extra holds unknown header keys. Preserved, never interpreted.
	Extra map[string]any

	// Err is the decode failure when State is MetaMalformed.
	Err error
}

type header struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Parent      *string        `yaml:"parent"`
	Order       float64        `yaml:"order"`
	SourceFile  string         `yaml:"sourceFile"`
	SourceFiles []string       `yaml:"sourceFiles"`
	Extra       map[string]any `yaml:",inline"`
}

// ParseMetadata splits a leading header block from text.
//
// The header is recognized only when the first line is exactly the
// delimiter and a later line closes it. A missing header yields MetaAbsent
// and the text unchanged. A header that does not decode as a mapping yields
// MetaMalformed and, again, the full original text as body so no content is
// lost.
func ParseMetadata(text string) (Metadata, string) {
	firstEnd := strings.IndexByte(text, '\n')
	if firstEnd < 0 || !isDelimiter(text[:firstEnd]) {
		return Metadata{State: MetaAbsent}, text
	}

	pos := firstEnd + 1
	for pos < len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		line, next := text[pos:], len(text)
		if end >= 0 {
			line, next = text[pos:pos+end], pos+end+1
		}
		if isDelimiter(line) {
			meta, err := decodeHeader(text[firstEnd+1 : pos])
			if err != nil {
				return Metadata{State: MetaMalformed, Err: err}, text
			}
			return meta, text[next:]
		}
		pos = next
	}
	return Metadata{State: MetaAbsent}, text
}

func decodeHeader(block string) (Metadata, error) {
	var h header
	if err := yaml.Unmarshal([]byte(block), &h); err != nil {
		return Metadata{}, fmt.Errorf("decode header: %w", err)
	}
	m := Metadata{
		State:       MetaPresent,
		ID:          strings.TrimSpace(h.ID),
		Title:       strings.TrimSpace(h.Title),
		Order:       h.Order,
		SourceFile:  strings.TrimSpace(h.SourceFile),
		SourceFiles: h.SourceFiles,
		Extra:       h.Extra,
	}
	if h.Parent != nil {
		if p := strings.TrimSpace(*h.Parent); p != "" {
			m.Parent = &p
		}
	}
	return m, nil
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}
