// Package graph merges explicit documents, referenced documents and inferred
// source-file nodes into a single tree keyed by unique id.
package graph

import (
	"fmt"
	"sort"

	"github.com/dgallion1/docgraph/internal/codemap"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/resolver"
)

const (
	// ModuleOrder places synthesized module nodes after documented siblings.
	ModuleOrder = 800
	// VirtualOrder places virtual source-file nodes after modules.
	VirtualOrder = 900
)

// Options are the independent stage switches.
type Options struct {
	// RootID is the id virtual nodes attach to. When no node carries it,
	// they become root-level nodes instead.
	RootID string

	// AnalyzeCode enables the source-file stage.
	AnalyzeCode bool
	// SuggestOnly records suggestions without applying any.
	SuggestOnly bool
	// AutoLink synthesizes virtual nodes for unmatched source files.
	AutoLink bool
}

// Input is everything the assembler merges, in precedence order.
type Input struct {
	Explicit   []*parser.Document // documents with a usable header
	Referenced []*parser.Document // headerless documents reached via links
	Links      map[string][]string
	Sources    []codemap.Mapping
}

// Stats counts nodes by origin.
type Stats struct {
	Explicit   int `json:"explicit"`
	Referenced int `json:"referenced"`
	Virtual    int `json:"virtual"`
	Modules    int `json:"modules"`
	Collisions int `json:"collisions"`
}

// Result is the assembled tree plus everything learned while merging.
type Result struct {
	Tree        doctree.Tree
	IDs         map[string]string // document or source path -> final id
	Suggestions []Suggestion
	Warnings    []string
	Stats       Stats
}

// Assembler merges inputs into a tree. It is safe to reuse; all merge state
// lives in a per-call value.
type Assembler struct {
	opts Options
	res  *resolver.Resolver
}

// New returns an assembler. res synthesizes referenced nodes.
func New(opts Options, res *resolver.Resolver) *Assembler {
	return &Assembler{opts: opts, res: res}
}

type merge struct {
	opts Options
	res  *Result
	seq  int

	// preexisting holds ids present before the source stage.
	preexisting map[string]bool
	groups      map[string]int
}

// Assemble runs the merge: explicit, then referenced, then virtual.
func (a *Assembler) Assemble(in Input) *Result {
	m := &merge{
		opts: a.opts,
		res: &Result{
			Tree:        doctree.Tree{},
			IDs:         make(map[string]string),
			Suggestions: []Suggestion{},
		},
	}

	for _, doc := range in.Explicit {
		m.addExplicit(doc)
	}
	for _, doc := range in.Referenced {
		m.addReferenced(a.res.Synthesize(doc), doc)
	}
	if a.opts.AnalyzeCode {
		m.addSources(in.Sources)
	}

	m.linkReferences(in.Links)
	m.res.Tree.LinkChildren()
	return m.res
}

func (m *merge) next() int {
	m.seq++
	return m.seq
}

func (m *merge) warnf(format string, args ...any) {
	m.res.Warnings = append(m.res.Warnings, fmt.Sprintf(format, args...))
}

// free returns the first "{base}-N" not yet taken.
func (m *merge) free(base string) string {
	for i := 1; ; i++ {
		id := fmt.Sprintf("%s-%d", base, i)
		if _, taken := m.res.Tree[id]; !taken {
			return id
		}
	}
}

func (m *merge) addExplicit(doc *parser.Document) {
	meta := doc.Meta
	n := &doctree.Node{
		ID:         meta.ID,
		Title:      meta.Title,
		Parent:     meta.Parent,
		Order:      meta.Order,
		Path:       doc.Path,
		SourceFile: meta.SourceFile,
		Seq:        m.next(),
	}
	for _, sf := range meta.SourceFiles {
		n.AddSourceFile(sf)
	}
	if n.Title == "" {
		n.Title = parser.FirstHeading([]byte(doc.Body))
	}
	if n.Title == "" {
		n.Title = doctree.TitleFromFilename(doc.Path)
	}

	// Later documents win the id; the earlier holder moves to a suffix.
	if prev, ok := m.res.Tree[n.ID]; ok {
		moved := m.free(n.ID)
		prev.ID = moved
		m.res.Tree[moved] = prev
		m.res.IDs[prev.Path] = moved
		m.res.Stats.Collisions++
		m.warnf("duplicate id %q: %s takes the id, %s renamed to %q", n.ID, doc.Path, prev.Path, moved)
	}
	m.res.Tree[n.ID] = n
	m.res.IDs[doc.Path] = n.ID
	m.res.Stats.Explicit++
}

func (m *merge) addReferenced(n *doctree.Node, doc *parser.Document) {
	if doc.Meta.State == parser.MetaPresent && doc.Meta.Title != "" {
		n.Title = doc.Meta.Title
	}
	n.Seq = m.next()
	if _, taken := m.res.Tree[n.ID]; taken {
		id := m.free(n.ID)
		m.warnf("id %q derived from %s already taken, using %q", n.ID, doc.Path, id)
		m.res.Stats.Collisions++
		n.ID = id
	}
	m.res.Tree[n.ID] = n
	m.res.IDs[doc.Path] = n.ID
	m.res.Stats.Referenced++
}

// rootParent is the parent for nodes attached "under root".
func (m *merge) rootParent() string {
	if _, ok := m.res.Tree[m.opts.RootID]; ok && m.opts.RootID != "" {
		return m.opts.RootID
	}
	return ""
}

// atRoot reports whether n still sits at root level.
func (m *merge) atRoot(n *doctree.Node) bool {
	if n.ID == m.opts.RootID {
		return false
	}
	p := n.ParentID()
	return p == "" || p == m.opts.RootID
}

func (m *merge) addSources(sources []codemap.Mapping) {
	m.preexisting = make(map[string]bool, len(m.res.Tree))
	for id := range m.res.Tree {
		m.preexisting[id] = true
	}
	m.groups = make(map[string]int)
	for _, src := range sources {
		if src.HasModule() {
			m.groups[src.Module.ID]++
		}
	}

	// Nodes that declare their own source files claim them first.
	claims := make(map[string]*doctree.Node)
	nodes := make([]*doctree.Node, 0, len(m.res.Tree))
	for _, n := range m.res.Tree {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })
	for _, n := range nodes {
		for _, sf := range append([]string{n.SourceFile}, n.SourceFiles...) {
			if _, ok := claims[sf]; sf != "" && !ok {
				claims[sf] = n
			}
		}
	}

	for _, src := range sources {
		owner := claims[src.Path]
		if owner == nil && src.HasModule() && m.preexisting[src.ID] {
			// Only document nodes claim by id; virtual ids collide and get suffixed.
			if n := m.res.Tree[src.ID]; n != nil && !n.IsSourceFile {
				owner = n
			}
		}
		if owner != nil {
			owner.AddSourceFile(src.Path)
			m.res.IDs[src.Path] = owner.ID
			if !owner.IsSourceFile && src.HasModule() && src.Module.ID != owner.ID {
				m.suggest(owner, src)
			}
			continue
		}
		if m.opts.AutoLink {
			m.addVirtual(src)
		}
	}
}

func (m *merge) addVirtual(src codemap.Mapping) {
	parent := m.rootParent()
	if src.HasModule() {
		if _, ok := m.res.Tree[src.Module.ID]; ok {
			parent = src.Module.ID
		} else if m.groups[src.Module.ID] >= 2 {
			parent = m.ensureModule(src.Module)
		}
	}

	n := &doctree.Node{
		ID:           src.ID,
		Title:        src.Title,
		Order:        VirtualOrder,
		SourceFile:   src.Path,
		IsSourceFile: true,
		Seq:          m.next(),
	}
	n.SetParent(parent)
	if _, taken := m.res.Tree[n.ID]; taken {
		id := m.free(n.ID)
		m.warnf("id %q inferred from %s already taken, using %q", n.ID, src.Path, id)
		m.res.Stats.Collisions++
		n.ID = id
	}
	m.res.Tree[n.ID] = n
	m.res.IDs[src.Path] = n.ID
	m.res.Stats.Virtual++
}

// ensureModule returns the module node id, synthesizing the node if needed.
func (m *merge) ensureModule(mod codemap.Module) string {
	if _, ok := m.res.Tree[mod.ID]; ok {
		return mod.ID
	}
	n := &doctree.Node{
		ID:           mod.ID,
		Title:        mod.Title,
		Order:        ModuleOrder,
		IsSourceFile: true,
		Seq:          m.next(),
	}
	n.SetParent(m.rootParent())
	m.res.Tree[n.ID] = n
	m.res.Stats.Modules++
	return n.ID
}

// linkReferences rewrites resolved link targets into final node ids.
func (m *merge) linkReferences(links map[string][]string) {
	for _, n := range m.res.Tree {
		if n.Path == "" {
			continue
		}
		seen := make(map[string]bool)
		var refs []string
		for _, target := range links[n.Path] {
			id, ok := m.res.IDs[target]
			if !ok || id == n.ID || seen[id] {
				continue
			}
			seen[id] = true
			refs = append(refs, id)
		}
		sort.Strings(refs)
		n.References = refs
	}
}
