package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the stage a build run is in.
type Phase string

const (
	PhaseDiscovering Phase = "discovering"
	PhaseParsing     Phase = "parsing"
	PhaseResolving   Phase = "resolving"
	PhaseMapping     Phase = "mapping"
	PhaseAssembling  Phase = "assembling"
	PhaseValidating  Phase = "validating"
	PhaseWriting     Phase = "writing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Done reports whether the phase is terminal.
func (p Phase) Done() bool { return p == PhaseCompleted || p == PhaseFailed }

// Run is the context of one build invocation. Every stage receives it
// instead of sharing process-wide state; it is discarded when the run ends.
type Run struct {
	mu sync.Mutex

	ID        string
	Phase     Phase
	StartedAt time.Time
	UpdatedAt time.Time

	log      *slog.Logger
	warnings []string
	err      error
}

// NewRun starts a run with a fresh id and a logger scoped to it.
func NewRun(log *slog.Logger) *Run {
	now := time.Now()
	id := uuid.New().String()
	return &Run{
		ID:        id,
		Phase:     PhaseDiscovering,
		StartedAt: now,
		UpdatedAt: now,
		log:       log.With("run_id", id),
	}
}

// Logger returns the run-scoped logger.
func (r *Run) Logger() *slog.Logger { return r.log }

// SetPhase moves the run to the next stage.
func (r *Run) SetPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phase = p
	r.UpdatedAt = time.Now()
}

// Warn records a recoverable per-item problem and keeps going.
func (r *Run) Warn(msg string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.UpdatedAt = time.Now()
	r.mu.Unlock()
	r.log.Warn(msg)
}

// Warnf is Warn with formatting.
func (r *Run) Warnf(format string, args ...any) {
	r.Warn(fmt.Sprintf(format, args...))
}

// Fail marks the run failed with err.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.Phase = PhaseFailed
	r.UpdatedAt = time.Now()
}

// Err returns the error that failed the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Warnings returns a copy of the recorded warnings, never nil.
func (r *Run) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID        string    `json:"runId"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Warnings  int       `json:"warnings"`
	Error     string    `json:"error,omitempty"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RunSnapshot{
		ID:        r.ID,
		Phase:     r.Phase,
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
		Warnings:  len(r.warnings),
	}
	if r.err != nil {
		s.Error = r.err.Error()
	}
	return s
}
