package doctree

import "sort"

// Node is one entry in the documentation graph.
type Node struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Parent   *string  `json:"parent"`   // nil for root-level nodes
	Order    float64  `json:"order"`    // sibling sort key
	Path     string   `json:"path"`     // backing document, "" for virtual nodes
	Children []string `json:"children"` // materialized at assembly, never ground truth

	References      []string `json:"references,omitempty"`
	IsReferenced    bool     `json:"isReferenced,omitempty"`
	SourceFile      string   `json:"sourceFile,omitempty"`
	SourceFiles     []string `json:"sourceFiles,omitempty"`
	IsSourceFile    bool     `json:"isSourceFile,omitempty"`
	SuggestedParent string   `json:"suggestedParent,omitempty"`

	// Seq is the discovery position, used to break order ties.
	Seq int `json:"-"`
}

// Tree is the assembled node set keyed by id.
type Tree map[string]*Node

// ParentID returns the parent id or "" for root-level nodes.
func (n *Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return *n.Parent
}

// SetParent sets the parent; an empty id clears it.
func (n *Node) SetParent(id string) {
	if id == "" {
		n.Parent = nil
		return
	}
	n.Parent = &id
}

// AddSourceFile attaches a code file, ignoring duplicates.
func (n *Node) AddSourceFile(path string) {
	if path == "" || path == n.SourceFile {
		return
	}
	for _, p := range n.SourceFiles {
		if p == path {
			return
		}
	}
	n.SourceFiles = append(n.SourceFiles, path)
}

// IDs returns the node ids in sorted order.
func (t Tree) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortNodes orders nodes by Order, then by discovery position.
func SortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		if nodes[i].Seq != nodes[j].Seq {
			return nodes[i].Seq < nodes[j].Seq
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// LinkChildren recomputes every node's Children from the parent relation.
func (t Tree) LinkChildren() {
	grouped := make(map[string][]*Node, len(t))
	for _, n := range t {
		if p := n.ParentID(); p != "" {
			grouped[p] = append(grouped[p], n)
		}
	}
	for id, n := range t {
		kids := grouped[id]
		SortNodes(kids)
		n.Children = make([]string, 0, len(kids))
		for _, k := range kids {
			n.Children = append(n.Children, k.ID)
		}
	}
}

// Roots returns the root-level nodes in sibling order.
func (t Tree) Roots() []*Node {
	var roots []*Node
	for _, n := range t {
		if n.Parent == nil {
			roots = append(roots, n)
		}
	}
	SortNodes(roots)
	return roots
}
