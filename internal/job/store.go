package job

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a job id has no record in the store
var ErrNotFound = errors.New("job not found")

// Store is a concurrency-safe in-memory job registry. All reads hand
// out copies; mutations go through WithLock so that read-modify-write
// sequences are atomic with respect to concurrent updaters.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
	}
}

// Create registers a new job record. The store takes ownership of j;
// callers must not retain the pointer.
func (s *Store) Create(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// Get returns a copy of the job record, or ErrNotFound
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// WithLock runs fn against the live job record while holding the
// store lock. fn must not block or call back into the store.
func (s *Store) WithLock(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	return nil
}

// Delete removes a job record. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// SnapshotIDs returns the ids of all current jobs
func (s *Store) SnapshotIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of jobs currently tracked
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
