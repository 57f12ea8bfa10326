package jobs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

var jobKeyPrefix = []byte("job/")

// BadgerStore keeps the authoritative records in memory like MemoryStore and
// checkpoints every mutation to a badger database, so job history survives a
// restart. Jobs that were still pending or running when the process died are
// marked failed on reopen; the queue and any in-flight work are not
// reconstructed.
type BadgerStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	db   *badger.DB
}

func OpenBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	s := &BadgerStore{jobs: make(map[string]*Job), db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) load() error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = jobKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var j Job
				if err := json.Unmarshal(val, &j); err != nil {
					return fmt.Errorf("corrupt job record %s: %w", it.Item().Key(), err)
				}
				s.jobs[j.ID] = &j
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Interrupted jobs cannot be resumed; record the outcome honestly.
	now := time.Now().UTC()
	for _, j := range s.jobs {
		if j.State.Terminal() {
			continue
		}
		j.State = StateFailed
		j.FinishedAt = &now
		j.Error = &ExecError{
			Kind:    ErrKindInterrupted,
			Message: "job interrupted by server restart",
		}
		if err := s.persist(j); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) persist(j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(jobKeyPrefix, j.ID...), data)
	})
}

func (s *BadgerStore) Create(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	c := j.Clone()
	if err := s.persist(c); err != nil {
		return err
	}
	s.jobs[j.ID] = c
	return nil
}

func (s *BadgerStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.Clone(), nil
}

func (s *BadgerStore) Update(id string, mutate func(*Job) error) (*Job, error) {
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
	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *BadgerStore) List(f Filter) []*Job {
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

func (s *BadgerStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(append(jobKeyPrefix, id...))
	})
	if err != nil {
		return err
	}
	delete(s.jobs, id)
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
