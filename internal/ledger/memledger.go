package ledger

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemLedger implements Ledger in memory, for tests and dry runs.
type MemLedger struct {
	mu          sync.Mutex
	runs        map[string]*Run
	transitions map[string][]Transition
}

func NewMemLedger() *MemLedger {
	return &MemLedger{runs: make(map[string]*Run), transitions: make(map[string][]Transition)}
}

func (m *MemLedger) StartRun(id string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; ok {
		return fmt.Errorf("start run %s: already recorded", id)
	}
	m.runs[id] = &Run{ID: id, StartedAt: startedAt.UTC()}
	return nil
}

func (m *MemLedger) RecordTransition(t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[t.RunID]; !ok {
		return fmt.Errorf("record transition %s: %w", t.RunID, ErrNotFound)
	}
	t.At = t.At.UTC()
	m.transitions[t.RunID] = append(m.transitions[t.RunID], t)
	return nil
}

func (m *MemLedger) FinishRun(r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.runs[r.ID]
	if !ok {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	cp := *r
	cp.StartedAt = prev.StartedAt
	cp.FinishedAt = r.FinishedAt.UTC()
	m.runs[r.ID] = &cp
	return nil
}

func (m *MemLedger) GetRun(id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *MemLedger) ListRuns(limit int) ([]*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemLedger) Transitions(runID string) ([]Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.transitions[runID]), nil
}

func (m *MemLedger) Close() error { return nil }
