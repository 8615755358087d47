package resolver

import (
	"errors"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/hbollon/go-edlib"
)

// ReferencedOrder sorts headerless referenced nodes after explicit siblings.
const ReferencedOrder = 999

// Resolver maps Markdown link destinations onto managed documents.
type Resolver struct {
	roots []string
}

// New creates a resolver for the given documentation roots, each relative
// to the repository root.
func New(roots []string) *Resolver {
	r := &Resolver{}
	for _, root := range roots {
		root = path.Clean(strings.Trim(strings.ReplaceAll(root, "\\", "/"), "/"))
		if root != "" {
			r.roots = append(r.roots, root)
		}
	}
	return r
}

// RootOf returns the documentation root containing p.
func (r *Resolver) RootOf(p string) (string, bool) {
	for _, root := range r.roots {
		if root == "." {
			return root, !strings.HasPrefix(p, "../")
		}
		if strings.HasPrefix(p, root+"/") {
			return root, true
		}
	}
	return "", false
}

// Resolve turns a link destination found in docPath into a
// repository-relative document path. It reports false for external links,
// non-Markdown targets and targets outside every documentation root.
func (r *Resolver) Resolve(docPath, dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if dest == "" || hasScheme(dest) {
		return "", false
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}
	if !parser.IsSupportedExtension(dest) {
		return "", false
	}

	var target string
	if strings.HasPrefix(dest, "/") {
		target = path.Clean(strings.TrimLeft(dest, "/"))
		if _, ok := r.RootOf(target); !ok && len(r.roots) > 0 {
			// Absolute links may also be written relative to the docs root.
			target = path.Join(r.roots[0], target)
		}
	} else {
		target = path.Join(path.Dir(docPath), dest)
	}
	if target == ".." || strings.HasPrefix(target, "../") {
		return "", false
	}
	if _, ok := r.RootOf(target); !ok {
		return "", false
	}
	return target, true
}

// Links returns the resolved managed-document targets of doc, deduplicated,
// in first-seen order. Self links are dropped.
func (r *Resolver) Links(doc *parser.Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, dest := range doc.Links {
		target, ok := r.Resolve(doc.Path, dest)
		if !ok || target == doc.Path || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

func hasScheme(dest string) bool {
	lower := strings.ToLower(dest)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "//") {
		return true
	}
	u, err := url.Parse(dest)
	return err == nil && u.Scheme != "" && len(u.Scheme) > 1
}

// NodeID derives the id of a headerless document from its path below its
// documentation root: "docs/guides/Set Up.md" becomes "guides-set-up".
func (r *Resolver) NodeID(p string) string {
	rel := p
	if root, ok := r.RootOf(p); ok && root != "." {
		rel = strings.TrimPrefix(p, root+"/")
	}
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	id := doctree.Slug(rel)
	if id == "" {
		id = "doc"
	}
	return id
}

// Synthesize builds the node for a referenced document without a usable
// header.
func (r *Resolver) Synthesize(doc *parser.Document) *doctree.Node {
	n := &doctree.Node{
		ID:           r.NodeID(doc.Path),
		Title:        doctree.TitleFromFilename(doc.Path),
		Order:        ReferencedOrder,
		Path:         doc.Path,
		IsReferenced: true,
	}
	if n.Title == "" {
		n.Title = n.ID
	}
	return n
}

// Loader returns the parsed document stored at a repository path.
type Loader interface {
	Load(path string) (*parser.Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (*parser.Document, error)

func (f LoaderFunc) Load(path string) (*parser.Document, error) { return f(path) }

// Dangling is a link whose target could not be loaded.
type Dangling struct {
	From       string
	Target     string
	Err        error
	Suggestion string // closest known document path, if any
}

// Missing reports whether the target simply does not exist.
func (d Dangling) Missing() bool {
	return errors.Is(d.Err, fs.ErrNotExist)
}

// Closure is the result of a transitive link traversal.
type Closure struct {
	// Reached holds documents discovered only through links, in depth-first
	// preorder. Start documents are never repeated here.
	Reached []*parser.Document

	// Links maps every visited document path to its resolved targets.
	Links map[string][]string

	Dangling []Dangling
}

// Closure follows links depth-first from start. The visited set belongs to
// this call, so cyclic links terminate and separate calls never interfere.
// known feeds the "closest match" hint for dangling links.
func (r *Resolver) Closure(start []*parser.Document, load Loader, known []string) *Closure {
	c := &Closure{Links: make(map[string][]string)}
	visited := make(map[string]bool, len(start))
	for _, doc := range start {
		visited[doc.Path] = true
	}

	var visit func(doc *parser.Document)
	visit = func(doc *parser.Document) {
		targets := r.Links(doc)
		c.Links[doc.Path] = targets
		for _, target := range targets {
			if visited[target] {
				continue
			}
			visited[target] = true
			next, err := load.Load(target)
			if err != nil {
				c.Dangling = append(c.Dangling, Dangling{
					From:       doc.Path,
					Target:     target,
					Err:        err,
					Suggestion: closest(target, known),
				})
				continue
			}
			c.Reached = append(c.Reached, next)
			visit(next)
		}
	}
	for _, doc := range start {
		visit(doc)
	}
	return c
}

// closest returns the known path nearest to target by edit distance, or ""
// when nothing is reasonably close.
func closest(target string, known []string) string {
	best, bestDist := "", -1
	for _, k := range known {
		if k == target {
			continue
		}
		d := edlib.LevenshteinDistance(target, k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	limit := len(target) / 3
	if limit < 3 {
		limit = 3
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}
