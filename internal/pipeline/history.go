package pipeline

import "sync"

// entry pairs a run with its report once the run completes.
type entry struct {
	run    *Run
	report *Report
}

// History is a thread-safe registry of recent runs, oldest evicted first.
type History struct {
	mu    sync.Mutex
	runs  map[string]*entry
	order []string
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{
		runs:  make(map[string]*entry),
		limit: limit,
	}
}

// Put registers a run, evicting the oldest when full.
func (h *History) Put(run *Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runs[run.ID]; ok {
		return
	}
	h.runs[run.ID] = &entry{run: run}
	h.order = append(h.order, run.ID)
	for len(h.order) > h.limit {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}
}

// Finish attaches the report of a completed run.
func (h *History) Finish(id string, rep *Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.runs[id]; ok {
		e.report = rep
	}
}

// Get returns a run and its report (nil until completed).
func (h *History) Get(id string) (*Run, *Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.runs[id]
	if !ok {
		return nil, nil
	}
	return e.run, e.report
}

// Latest returns the most recently started run.
func (h *History) Latest() (*Run, *Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) == 0 {
		return nil, nil
	}
	e := h.runs[h.order[len(h.order)-1]]
	return e.run, e.report
}

// Len returns the number of retained runs.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}
