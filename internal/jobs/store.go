package jobs

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultListLimit bounds List results when the filter does not say otherwise.
const DefaultListLimit = 50

type Filter struct {
	// State restricts results to one lifecycle state when non-empty.
	State State
	// Limit caps the number of results. Zero means DefaultListLimit,
	// negative means unbounded.
	Limit int
}

// Store is the single source of truth for job records. Implementations must
// apply Update mutations atomically per job id: a concurrent Get or List
// never observes a partially applied transition.
type Store interface {
	Create(j *Job) error
	Get(id string) (*Job, error)
	Update(id string, mutate func(*Job) error) (*Job, error)
	List(f Filter) []*Job
	Delete(id string) error
	Close() error
}

type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.Clone(), nil
}

// Update applies mutate to the stored record under the store lock and
// returns a copy of the result. If mutate returns an error the record is
// left untouched.
func (s *MemoryStore) Update(id string, mutate func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	next := j.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) List(f Filter) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.State != "" && j.State != f.State {
			continue
		}
		out = append(out, j.Clone())
	}
	sortAndBound(&out, f.Limit)
	return out
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// sortAndBound orders jobs most recently submitted first and applies the
// filter's limit semantics.
func sortAndBound(jobsp *[]*Job, limit int) {
	out := *jobsp
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	*jobsp = out
}
