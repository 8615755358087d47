// Package codemap infers a documentation module for source files from their
// paths. It never touches the file system; the result is a suggestion only.
package codemap

import (
	"path"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Module describes a canonical module a directory hint maps to.
type Module struct {
	ID     string // canonical module id
	Title  string // human label for a synthesized module node
	Prefix string // singular prefix for sub-module ids
}

// Modules maps directory hints (singular and plural spellings) to canonical
// modules.
var Modules = map[string]Module{
	"commands": {ID: "commands", Title: "Commands", Prefix: "command"},
	"command":  {ID: "commands", Title: "Commands", Prefix: "command"},
	"cmd":      {ID: "commands", Title: "Commands", Prefix: "command"},
	"cli":      {ID: "commands", Title: "Commands", Prefix: "command"},

	"utils":     {ID: "utils", Title: "Utilities", Prefix: "util"},
	"util":      {ID: "utils", Title: "Utilities", Prefix: "util"},
	"utilities": {ID: "utils", Title: "Utilities", Prefix: "util"},
	"utility":   {ID: "utils", Title: "Utilities", Prefix: "util"},
	"helpers":   {ID: "utils", Title: "Utilities", Prefix: "util"},
	"helper":    {ID: "utils", Title: "Utilities", Prefix: "util"},

	"services": {ID: "services", Title: "Services", Prefix: "service"},
	"service":  {ID: "services", Title: "Services", Prefix: "service"},

	"models": {ID: "models", Title: "Models", Prefix: "model"},
	"model":  {ID: "models", Title: "Models", Prefix: "model"},

	"types": {ID: "types", Title: "Types", Prefix: "type"},
	"type":  {ID: "types", Title: "Types", Prefix: "type"},

	"interfaces": {ID: "interfaces", Title: "Interfaces", Prefix: "interface"},
	"interface":  {ID: "interfaces", Title: "Interfaces", Prefix: "interface"},

	"handlers": {ID: "handlers", Title: "Handlers", Prefix: "handler"},
	"handler":  {ID: "handlers", Title: "Handlers", Prefix: "handler"},

	"routes": {ID: "routes", Title: "Routes", Prefix: "route"},
	"route":  {ID: "routes", Title: "Routes", Prefix: "route"},
	"router": {ID: "routes", Title: "Routes", Prefix: "route"},

	"middleware":  {ID: "middleware", Title: "Middleware", Prefix: "middleware"},
	"middlewares": {ID: "middleware", Title: "Middleware", Prefix: "middleware"},

	"config":        {ID: "config", Title: "Configuration", Prefix: "config"},
	"configs":       {ID: "config", Title: "Configuration", Prefix: "config"},
	"configuration": {ID: "config", Title: "Configuration", Prefix: "config"},

	"constants": {ID: "constants", Title: "Constants", Prefix: "constant"},
	"constant":  {ID: "constants", Title: "Constants", Prefix: "constant"},
	"consts":    {ID: "constants", Title: "Constants", Prefix: "constant"},
}

// SourceRoots are conventional top-level source directories. At most one is
// stripped from the front of a path.
var SourceRoots = map[string]bool{
	"src":    true,
	"lib":    true,
	"app":    true,
	"source": true,
}

// testMarkers are substrings of a lowercased path that mark test code.
var testMarkers = []string{
	".test.", ".spec.", "_test.", "_spec.", "__tests__", "__mocks__", "__test__", "__mock__",
}

// testDirs and buildDirs are whole path segments that exclude a file.
var testDirs = map[string]bool{"test": true, "tests": true, "spec": true, "specs": true}

var buildDirs = map[string]bool{
	"dist": true, "build": true, "out": true, "target": true, "coverage": true,
	".next": true, "node_modules": true, "vendor": true,
}

// SourceExtensions lists file extensions treated as source code.
var SourceExtensions = []string{
	".go", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".rb", ".rs",
	".java", ".kt", ".cs", ".php", ".swift", ".c", ".h", ".cpp", ".hpp",
}

// Mapping is the inferred placement of one source file.
type Mapping struct {
	Path      string // repository-relative source path
	Directory string // first segment after the stripped root, "" for top level
	Known     bool   // Directory matched the module table
	Module    Module // zero when Directory is ""
	ID        string // sub-module id, "{prefix}-{file}"
	Title     string // label for a virtual node
}

// HasModule reports whether the file belongs under a module.
func (m Mapping) HasModule() bool { return m.Module.ID != "" }

// Excluded reports whether p is test code or build output.
func Excluded(p string) bool {
	lower := strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	for _, marker := range testMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	segs := strings.Split(lower, "/")
	for i, seg := range segs {
		if buildDirs[seg] {
			return true
		}
		if i < len(segs)-1 && testDirs[seg] {
			return true
		}
	}
	return strings.HasPrefix(segs[len(segs)-1], "test_")
}

// Map infers the module placement of a source file. It reports false when
// the file is excluded or yields no usable id.
func Map(p string) (Mapping, bool) {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if Excluded(p) {
		return Mapping{}, false
	}

	segs := strings.Split(p, "/")
	if len(segs) > 1 && SourceRoots[strings.ToLower(segs[0])] {
		segs = segs[1:]
	}

	file := segs[len(segs)-1]
	name := strings.TrimSuffix(file, path.Ext(file))
	slug := doctree.Slug(name)
	if slug == "" {
		return Mapping{}, false
	}

	m := Mapping{
		Path:  p,
		Title: doctree.TitleFromFilename(file),
		ID:    slug,
	}
	if len(segs) == 1 {
		return m, true
	}

	m.Directory = segs[0]
	m.Module, m.Known = lookup(m.Directory)
	if m.Module.ID == "" {
		return Mapping{Path: p, Title: m.Title, ID: slug}, true
	}
	m.ID = m.Module.Prefix + "-" + slug
	return m, true
}

func lookup(dir string) (Module, bool) {
	key := strings.ToLower(dir)
	if mod, ok := Modules[key]; ok {
		return mod, true
	}
	id := doctree.Slug(dir)
	return Module{ID: id, Title: doctree.TitleFromFilename(dir), Prefix: singular(id)}, false
}

// singular strips a simple English plural suffix.
func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}
