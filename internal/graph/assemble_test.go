package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/codemap"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/resolver"
)

func doc(path, raw string) *parser.Document {
	return parser.Parse(path, []byte(raw))
}

func sources(t *testing.T, paths ...string) []codemap.Mapping {
	t.Helper()
	var out []codemap.Mapping
	for _, p := range paths {
		m, ok := codemap.Map(p)
		if !ok {
			t.Fatalf("expected mapping for %s", p)
		}
		out = append(out, m)
	}
	return out
}

func newAssembler(opts Options) *Assembler {
	if opts.RootID == "" {
		opts.RootID = "root"
	}
	return New(opts, resolver.New([]string{"docs"}))
}

var rootDoc = doc("docs/ai-index.md", "---\nid: root\ntitle: Project Overview\nparent: null\n---\n")

func TestAssemble_TwoDocuments(t *testing.T) {
	res := newAssembler(Options{}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/modules/billing.md", "---\nid: billing\ntitle: Billing Module\nparent: root\norder: 20\n---\n"),
		},
	})

	if len(res.Tree) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(res.Tree))
	}
	if got := res.Tree["root"].Children; !reflect.DeepEqual(got, []string{"billing"}) {
		t.Errorf("expected root children [billing], got %v", got)
	}
	billing := res.Tree["billing"]
	if billing.Children == nil || len(billing.Children) != 0 {
		t.Errorf("expected empty non-nil children, got %#v", billing.Children)
	}
	if billing.Order != 20 || billing.Path != "docs/modules/billing.md" || billing.ParentID() != "root" {
		t.Errorf("unexpected billing node %+v", billing)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestAssemble_ReferencedHeaderless(t *testing.T) {
	a := doc("docs/a.md", "---\nid: a\ntitle: A\n---\nSee [b](./b.md).")
	b := doc("docs/b.md", "plain body")
	res := newAssembler(Options{}).Assemble(Input{
		Explicit:   []*parser.Document{a},
		Referenced: []*parser.Document{b},
		Links:      map[string][]string{"docs/a.md": {"docs/b.md"}},
	})

	n, ok := res.Tree["b"]
	if !ok {
		t.Fatalf("expected synthesized node b, got ids %v", res.Tree.IDs())
	}
	if !n.IsReferenced || n.Parent != nil || n.Title != "B" {
		t.Errorf("unexpected referenced node %+v", n)
	}
	if got := res.Tree["a"].References; !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected a.references [b], got %v", got)
	}
	if res.Stats.Referenced != 1 || res.Stats.Explicit != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestAssemble_DuplicateExplicitLaterWins(t *testing.T) {
	first := doc("docs/one.md", "---\nid: dup\ntitle: First\n---\n")
	second := doc("docs/two.md", "---\nid: dup\ntitle: Second\n---\n")
	res := newAssembler(Options{}).Assemble(Input{Explicit: []*parser.Document{first, second}})

	if len(res.Tree) != 2 {
		t.Fatalf("expected 2 nodes, got %v", res.Tree.IDs())
	}
	if res.Tree["dup"].Title != "Second" || res.Tree["dup"].Path != "docs/two.md" {
		t.Errorf("expected later document to hold dup, got %+v", res.Tree["dup"])
	}
	if res.Tree["dup-1"].Title != "First" {
		t.Errorf("expected earlier document at dup-1, got %+v", res.Tree["dup-1"])
	}
	if res.IDs["docs/one.md"] != "dup-1" || res.IDs["docs/two.md"] != "dup" {
		t.Errorf("unexpected id map %v", res.IDs)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "duplicate id") {
		t.Errorf("expected one duplicate warning, got %v", res.Warnings)
	}
}

func TestAssemble_ReferencedCollisionSuffixedAndBackReferenced(t *testing.T) {
	a := doc("docs/a.md", "---\nid: a\n---\n[b](guides/b.md)")
	b := doc("docs/b-doc.md", "---\nid: b\n---\n")
	gb := doc("docs/guides/b.md", "headerless")
	r := resolver.New([]string{"docs"})
	// guides/b.md derives "guides-b"; force a collision through an explicit id.
	taken := doc("docs/taken.md", "---\nid: guides-b\n---\n")

	res := New(Options{RootID: "root"}, r).Assemble(Input{
		Explicit:   []*parser.Document{a, b, taken},
		Referenced: []*parser.Document{gb},
		Links:      map[string][]string{"docs/a.md": {"docs/guides/b.md"}},
	})

	if n := res.Tree["guides-b-1"]; n == nil || n.Path != "docs/guides/b.md" {
		t.Fatalf("expected suffixed referenced node, got ids %v", res.Tree.IDs())
	}
	if got := res.Tree["a"].References; !reflect.DeepEqual(got, []string{"guides-b-1"}) {
		t.Errorf("expected references to use final id, got %v", got)
	}
	if res.Stats.Collisions != 1 {
		t.Errorf("expected 1 collision, got %d", res.Stats.Collisions)
	}
}

func TestAssemble_TitleFallbacks(t *testing.T) {
	res := newAssembler(Options{}).Assemble(Input{
		Explicit: []*parser.Document{
			doc("docs/heading.md", "---\nid: h\n---\n# From Heading\n"),
			doc("docs/file-name.md", "---\nid: f\n---\nno heading\n"),
		},
	})
	if res.Tree["h"].Title != "From Heading" {
		t.Errorf("expected heading title, got %q", res.Tree["h"].Title)
	}
	if res.Tree["f"].Title != "File Name" {
		t.Errorf("expected filename title, got %q", res.Tree["f"].Title)
	}
}

func TestAssemble_ChildrenSortedByOrderThenDiscovery(t *testing.T) {
	res := newAssembler(Options{}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/z.md", "---\nid: z\nparent: root\norder: 1\n---\n"),
			doc("docs/y.md", "---\nid: y\nparent: root\norder: 2\n---\n"),
			doc("docs/x.md", "---\nid: x\nparent: root\norder: 1\n---\n"),
		},
		Referenced: []*parser.Document{doc("docs/w.md", "")},
	})
	want := []string{"z", "x", "y"}
	if got := res.Tree["root"].Children; !reflect.DeepEqual(got, want) {
		t.Errorf("expected children %v, got %v", want, got)
	}
}

func TestAssemble_SourcesIgnoredWithoutAnalysis(t *testing.T) {
	res := newAssembler(Options{AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{rootDoc},
		Sources:  sources(t, "src/services/billing.ts", "src/services/auth.ts"),
	})
	if len(res.Tree) != 1 {
		t.Errorf("expected only the root node, got %v", res.Tree.IDs())
	}
}

func TestAssemble_AutoLinkSynthesizesModuleForGroups(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{rootDoc},
		Sources:  sources(t, "src/services/billing.ts", "src/services/auth.ts", "src/models/user.ts"),
	})

	mod := res.Tree["services"]
	if mod == nil {
		t.Fatalf("expected synthesized services module, got %v", res.Tree.IDs())
	}
	if mod.ParentID() != "root" || mod.Path != "" || !mod.IsSourceFile {
		t.Errorf("unexpected module node %+v", mod)
	}
	if got := mod.Children; !reflect.DeepEqual(got, []string{"service-billing", "service-auth"}) {
		t.Errorf("expected module children in discovery order, got %v", got)
	}

	billing := res.Tree["service-billing"]
	if billing.SourceFile != "src/services/billing.ts" || !billing.IsSourceFile || billing.Path != "" {
		t.Errorf("unexpected virtual node %+v", billing)
	}

	// A lone file gets no module; it hangs directly under root.
	if _, ok := res.Tree["models"]; ok {
		t.Error("did not expect a models module for a single file")
	}
	if res.Tree["model-user"].ParentID() != "root" {
		t.Errorf("expected model-user under root, got %q", res.Tree["model-user"].ParentID())
	}
	if res.Stats.Virtual != 3 || res.Stats.Modules != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestAssemble_AutoLinkUsesExistingModule(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/handlers.md", "---\nid: handlers\ntitle: HTTP Handlers\nparent: root\n---\n"),
		},
		Sources: sources(t, "src/handlers/orders.go"),
	})
	if got := res.Tree["handler-orders"].ParentID(); got != "handlers" {
		t.Errorf("expected parent handlers, got %q", got)
	}
	if res.Stats.Modules != 0 {
		t.Errorf("expected no synthesized modules, got %d", res.Stats.Modules)
	}
}

func TestAssemble_NoRootNodeMeansNullParents(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Sources: sources(t, "src/services/a.ts", "src/services/b.ts", "main.go"),
	})
	if res.Tree["services"].Parent != nil {
		t.Errorf("expected root-level module, got parent %q", res.Tree["services"].ParentID())
	}
	if res.Tree["main"].Parent != nil {
		t.Errorf("expected root-level main, got parent %q", res.Tree["main"].ParentID())
	}
}

func TestAssemble_TopLevelSourceCollisionIsSuffixed(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{rootDoc, doc("docs/index.md", "---\nid: index\nparent: root\n---\n")},
		Sources:  sources(t, "src/index.ts"),
	})
	n := res.Tree["index-1"]
	if n == nil || n.SourceFile != "src/index.ts" {
		t.Fatalf("expected suffixed virtual node, got %v", res.Tree.IDs())
	}
	if res.Tree["index"].IsSourceFile {
		t.Error("explicit node must not be replaced")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 collision warning, got %v", res.Warnings)
	}
}

func TestAssemble_VirtualSourceCollisionIsSuffixed(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{rootDoc},
		Sources:  sources(t, "src/services/billing/index.ts", "src/services/auth/index.ts"),
	})
	first, second := res.Tree["service-index"], res.Tree["service-index-1"]
	if first == nil || second == nil {
		t.Fatalf("expected service-index and service-index-1, got %v", res.Tree.IDs())
	}
	if first.SourceFile != "src/services/billing/index.ts" || second.SourceFile != "src/services/auth/index.ts" {
		t.Errorf("unexpected source files %q and %q", first.SourceFile, second.SourceFile)
	}
	if len(first.SourceFiles) != 0 {
		t.Errorf("virtual nodes must not absorb other files, got %v", first.SourceFiles)
	}
	if res.IDs["src/services/auth/index.ts"] != "service-index-1" {
		t.Errorf("expected auth mapped to service-index-1, got %q", res.IDs["src/services/auth/index.ts"])
	}
	if res.Stats.Virtual != 2 || res.Stats.Collisions != 1 || len(res.Warnings) != 1 {
		t.Errorf("expected 2 virtual nodes and 1 collision, got %+v warnings=%v", res.Stats, res.Warnings)
	}
}

func TestAssemble_DeclaredSourceFileIsClaimed(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/billing.md", "---\nid: billing\nparent: root\nsourceFile: src/services/billing.ts\n---\n"),
		},
		Sources: sources(t, "src/services/billing.ts"),
	})
	if _, ok := res.Tree["service-billing"]; ok {
		t.Error("a claimed source file must not produce a virtual node")
	}
	if res.IDs["src/services/billing.ts"] != "billing" {
		t.Errorf("expected source mapped to billing, got %q", res.IDs["src/services/billing.ts"])
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Confidence != Medium || res.Suggestions[0].Applied {
		t.Fatalf("expected one pending medium suggestion, got %+v", res.Suggestions)
	}
	if res.Tree["billing"].ParentID() != "root" || res.Tree["billing"].SuggestedParent != "services" {
		t.Errorf("expected billing left under root with suggestedParent services, got %+v", res.Tree["billing"])
	}
	if _, ok := res.Tree["services"]; ok {
		t.Error("a single-file module must not be synthesized")
	}
}

func TestAssemble_HighConfidenceSuggestOnly(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, SuggestOnly: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/billing.md", "---\nid: service-billing\nparent: root\n---\n"),
		},
		Sources: sources(t, "src/services/billing.ts", "src/services/auth.ts"),
	})

	n := res.Tree["service-billing"]
	if n.ParentID() != "root" {
		t.Errorf("suggest-only must not move the node, parent is %q", n.ParentID())
	}
	if n.SuggestedParent != "services" {
		t.Errorf("expected suggestedParent services, got %q", n.SuggestedParent)
	}
	if !reflect.DeepEqual(n.SourceFiles, []string{"src/services/billing.ts"}) {
		t.Errorf("expected source file attached, got %v", n.SourceFiles)
	}
	if _, ok := res.Tree["services"]; ok {
		t.Error("suggest-only without auto-link must not synthesize modules")
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Confidence != High || res.Suggestions[0].Applied {
		t.Errorf("expected one pending high suggestion, got %+v", res.Suggestions)
	}
	if len(res.Pending()) != 1 {
		t.Errorf("expected 1 pending suggestion, got %d", len(res.Pending()))
	}
}

func TestAssemble_HighConfidenceApplied(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/billing.md", "---\nid: service-billing\nparent: root\n---\n"),
		},
		Sources: sources(t, "src/services/billing.ts", "src/services/auth.ts"),
	})

	if got := res.Tree["service-billing"].ParentID(); got != "services" {
		t.Errorf("expected applied parent services, got %q", got)
	}
	mod := res.Tree["services"]
	if mod == nil || mod.ParentID() != "root" {
		t.Fatalf("expected synthesized services module under root, got %+v", mod)
	}
	if !reflect.DeepEqual(mod.Children, []string{"service-billing"}) {
		t.Errorf("unexpected module children %v", mod.Children)
	}
	if !res.Suggestions[0].Applied {
		t.Error("expected suggestion marked applied")
	}
	// auth.ts is unmatched and auto-link is off: no virtual node.
	if _, ok := res.Tree["service-auth"]; ok {
		t.Error("did not expect a virtual node without auto-link")
	}
}

func TestAssemble_MediumConfidenceNeverApplied(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/models.md", "---\nid: models\nparent: root\n---\n"),
			doc("docs/user.md", "---\nid: model-user\n---\n"),
		},
		Sources: sources(t, "src/models/user.ts"),
	})
	n := res.Tree["model-user"]
	if n.Parent != nil {
		t.Errorf("medium suggestions must not be applied, parent is %q", n.ParentID())
	}
	if n.SuggestedParent != "models" {
		t.Errorf("expected suggestedParent models, got %q", n.SuggestedParent)
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Confidence != Medium {
		t.Errorf("expected one medium suggestion, got %+v", res.Suggestions)
	}
}

func TestAssemble_CustomParentNeverOverridden(t *testing.T) {
	res := newAssembler(Options{AnalyzeCode: true, AutoLink: true}).Assemble(Input{
		Explicit: []*parser.Document{
			rootDoc,
			doc("docs/billing.md", "---\nid: billing\nparent: root\n---\n"),
			doc("docs/svc.md", "---\nid: service-billing\nparent: billing\n---\n"),
		},
		Sources: sources(t, "src/services/billing.ts", "src/services/auth.ts"),
	})
	n := res.Tree["service-billing"]
	if n.ParentID() != "billing" || n.SuggestedParent != "" {
		t.Errorf("explicit non-root parent must be untouched, got parent=%q suggested=%q", n.ParentID(), n.SuggestedParent)
	}
	if len(res.Suggestions) != 0 {
		t.Errorf("expected no suggestions, got %+v", res.Suggestions)
	}
	// auth.ts still becomes a virtual node under the synthesized module.
	if got := res.Tree["service-auth"].ParentID(); got != "services" {
		t.Errorf("expected service-auth under services, got %q", got)
	}
}

func TestAssemble_IDsUnique(t *testing.T) {
	var docs []*parser.Document
	for _, p := range []string{"docs/a.md", "docs/b.md", "docs/c.md"} {
		docs = append(docs, doc(p, "---\nid: same\n---\n"))
	}
	res := newAssembler(Options{}).Assemble(Input{Explicit: docs})
	if len(res.Tree) != 3 {
		t.Fatalf("expected 3 nodes, got %v", res.Tree.IDs())
	}
	seen := map[string]bool{}
	for id, n := range res.Tree {
		if id != n.ID {
			t.Errorf("map key %q disagrees with node id %q", id, n.ID)
		}
		if seen[n.Path] {
			t.Errorf("path %s appears twice", n.Path)
		}
		seen[n.Path] = true
	}
	if res.Tree["same"].Path != "docs/c.md" {
		t.Errorf("expected last document to hold the id, got %s", res.Tree["same"].Path)
	}
}
