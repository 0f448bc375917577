package jobstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pagecast/pagecast/internal/structure"
)

// MemoryStore is the in-process Store used by tests and one-shot CLI runs
// that do not need persistence across restarts.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string][]Event
	snapshots map[string]map[structure.Step][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string]map[structure.Step][]byte),
	}
}

func (s *MemoryStore) Append(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[ev.JobID]
	if len(log) > 0 && Reduce(ev.JobID, log).Status.Terminal() {
		return ErrJobTerminal
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.Seq = int64(len(log) + 1)
	s.events[ev.JobID] = append(log, ev)
	return nil
}

func (s *MemoryStore) Events(ctx context.Context, jobID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[jobID]
	out := make([]Event, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryStore) Job(ctx context.Context, jobID string) (*structure.ConversionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.events[jobID]
	if !ok || len(log) == 0 {
		return nil, ErrNotFound
	}
	return Reduce(jobID, log), nil
}

func (s *MemoryStore) Jobs(ctx context.Context) ([]*structure.ConversionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*structure.ConversionJob, 0, len(s.events))
	for id, log := range s.events {
		if len(log) == 0 {
			continue
		}
		jobs = append(jobs, Reduce(id, log))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, jobID string, step structure.Step, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshots[jobID] == nil {
		s.snapshots[jobID] = make(map[structure.Step][]byte)
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	s.snapshots[jobID][step] = cp
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, jobID string, step structure.Step) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.snapshots[jobID][step]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
