package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgallion1/docgraph/internal/graph"
	"github.com/dgallion1/docgraph/internal/treefile"
	"github.com/dgallion1/docgraph/internal/validate"
)

// Report is everything a run learned, surfaced together at the end.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Documents int         `json:"documents"`
	Sources   int         `json:"sources"`
	Nodes     int         `json:"nodes"`
	Roots     []string    `json:"roots"`
	Stats     graph.Stats `json:"stats"`

	Output treefile.WriteResult `json:"output"`

	// Warnings are recoverable per-item problems.
	Warnings []string `json:"warnings"`
	// Collisions are id collisions resolved by suffixing.
	Collisions  []string           `json:"collisions"`
	Cycles      []validate.Cycle   `json:"cycles"`
	Orphans     []validate.Orphan  `json:"orphans"`
	Dangling    []DanglingRef      `json:"dangling"`
	Suggestions []graph.Suggestion `json:"suggestions"`
}

// DanglingRef is a link whose target could not be loaded.
type DanglingRef struct {
	From       string `json:"from"`
	Target     string `json:"target"`
	Missing    bool   `json:"missing"`
	Suggestion string `json:"suggestion,omitempty"`
}

// HasDefects reports whether the tree has cycles or orphans.
func (r *Report) HasDefects() bool {
	return len(r.Cycles) > 0 || len(r.Orphans) > 0
}

// Defects renders every structural defect as a line.
func (r *Report) Defects() []string {
	lines := append([]string{}, r.Collisions...)
	return append(lines, validate.Report{Cycles: r.Cycles, Orphans: r.Orphans}.Describe()...)
}

// Encode renders the report as indented JSON.
func (r *Report) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

func newReport(run *Run) *Report {
	return &Report{
		RunID:       run.ID,
		StartedAt:   run.StartedAt,
		Roots:       []string{},
		Warnings:    []string{},
		Collisions:  []string{},
		Cycles:      []validate.Cycle{},
		Orphans:     []validate.Orphan{},
		Dangling:    []DanglingRef{},
		Suggestions: []graph.Suggestion{},
	}
}
