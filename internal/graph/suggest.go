package graph

import (
	"fmt"

	"github.com/dgallion1/docgraph/internal/codemap"
	"github.com/dgallion1/docgraph/internal/doctree"
)

// Confidence grades a parent suggestion by its corroborating evidence.
type Confidence string

const (
	// High: two or more source files group under a module that had no node.
	High Confidence = "high"
	// Medium: a root-level node would move under an existing module, or
	// under a new module only one source file points at.
	Medium Confidence = "medium"
)

// Suggestion proposes a new parent for a node based on code structure.
type Suggestion struct {
	NodeID          string     `json:"nodeId"`
	SourceFile      string     `json:"sourceFile"`
	CurrentParent   string     `json:"currentParent,omitempty"`
	SuggestedParent string     `json:"suggestedParent"`
	Confidence      Confidence `json:"confidence"`
	Applied         bool       `json:"applied"`
	Reason          string     `json:"reason"`
}

// suggest records a relocation proposal for a root-level node documenting
// src. Explicit parents other than the root are never touched.
func (m *merge) suggest(n *doctree.Node, src codemap.Mapping) {
	if !m.atRoot(n) || n.SuggestedParent != "" {
		return
	}
	mod := src.Module

	var conf Confidence
	var reason string
	switch {
	case m.preexisting[mod.ID]:
		conf = Medium
		reason = fmt.Sprintf("module %q already exists and %s maps to it", mod.ID, src.Path)
	case m.groups[mod.ID] >= 2:
		conf = High
		reason = fmt.Sprintf("%d source files in %s/ map to new module %q", m.groups[mod.ID], src.Directory, mod.ID)
	default:
		conf = Medium
		reason = fmt.Sprintf("only %s maps to new module %q", src.Path, mod.ID)
	}

	s := Suggestion{
		NodeID:          n.ID,
		SourceFile:      src.Path,
		CurrentParent:   n.ParentID(),
		SuggestedParent: mod.ID,
		Confidence:      conf,
		Reason:          reason,
	}
	n.SuggestedParent = mod.ID

	if conf == High && !m.opts.SuggestOnly {
		n.SetParent(m.ensureModule(mod))
		s.Applied = true
	}
	m.res.Suggestions = append(m.res.Suggestions, s)
}

// Pending returns the suggestions that were not applied.
func (r *Result) Pending() []Suggestion {
	var out []Suggestion
	for _, s := range r.Suggestions {
		if !s.Applied {
			out = append(out, s)
		}
	}
	return out
}
