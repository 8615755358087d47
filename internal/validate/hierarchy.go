package validate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Orphan is a node whose declared parent does not exist.
type Orphan struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
}

// Cycle is the id sequence from a repeated node back to itself, e.g. [a b a].
type Cycle []string

func (c Cycle) String() string { return strings.Join(c, " -> ") }

// Report lists the structural defects found in a tree.
type Report struct {
	Cycles  []Cycle  `json:"cycles"`
	Orphans []Orphan `json:"orphans"`
}

// Clean reports whether no defects were found.
func (r Report) Clean() bool { return len(r.Cycles) == 0 && len(r.Orphans) == 0 }

const (
	white = iota // unvisited
	grey         // on the current parent chain
	black        // fully explored
)

// Hierarchy checks every node for parent cycles and missing parents. It never
// modifies the tree. Nodes are visited in sorted id order so the report is
// deterministic.
func Hierarchy(tree doctree.Tree) Report {
	rep := Report{Cycles: []Cycle{}, Orphans: []Orphan{}}
	ids := tree.IDs()

	color := make(map[string]int, len(tree))
	for _, id := range ids {
		if color[id] != white {
			continue
		}
		var chain []string
		cur := id
		for {
			n, ok := tree[cur]
			if !ok || color[cur] == black {
				break
			}
			if color[cur] == grey {
				rep.Cycles = append(rep.Cycles, cycleFrom(chain, cur))
				break
			}
			color[cur] = grey
			chain = append(chain, cur)
			cur = n.ParentID()
			if cur == "" {
				break
			}
		}
		for _, c := range chain {
			color[c] = black
		}
	}

	for _, id := range ids {
		p := tree[id].ParentID()
		if p == "" {
			continue
		}
		if _, ok := tree[p]; !ok {
			rep.Orphans = append(rep.Orphans, Orphan{ID: id, Parent: p})
		}
	}
	return rep
}

func cycleFrom(chain []string, repeated string) Cycle {
	start := 0
	for i, id := range chain {
		if id == repeated {
			start = i
			break
		}
	}
	c := make(Cycle, 0, len(chain)-start+1)
	c = append(c, chain[start:]...)
	return append(c, repeated)
}

// Describe renders defects as human-readable lines.
func (r Report) Describe() []string {
	var lines []string
	for _, c := range r.Cycles {
		lines = append(lines, fmt.Sprintf("parent cycle: %s", c))
	}
	for _, o := range r.Orphans {
		lines = append(lines, fmt.Sprintf("orphan: %s has missing parent %q", o.ID, o.Parent))
	}
	return lines
}
