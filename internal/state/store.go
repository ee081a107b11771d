package state

import (
	"sync"

	"github.com/kapu/blockext-go/internal/domain"
)

// Store attaches one private record of type T to each target. Records are
// created from newDefault on first access and deep-copied with clone when a
// target is duplicated, so two targets never share a record.
type Store[T any] struct {
	records    map[domain.TargetID]*T
	newDefault func() T
	clone      func(T) T
	mu         sync.Mutex
}

// NewStore builds a store. A nil clone copies the record by value, which is
// only safe for records without reference fields.
func NewStore[T any](newDefault func() T, clone func(T) T) *Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Store[T]{
		records:    make(map[domain.TargetID]*T),
		newDefault: newDefault,
		clone:      clone,
	}
}

// Get returns the record for target, creating the default one if absent.
// Repeated calls for the same target return the same pointer.
func (s *Store[T]) Get(target domain.TargetID) *T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[target]; ok {
		return record
	}
	record := s.newDefault()
	s.records[target] = &record
	return &record
}

// Lookup returns the record without creating one.
func (s *Store[T]) Lookup(target domain.TargetID) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[target]
	return record, ok
}

// Update runs fn on the target's record under the store lock.
func (s *Store[T]) Update(target domain.TargetID, fn func(*T)) {
	record := s.Get(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(record)
}

// Snapshot returns a copy of the target's record, created if absent.
func (s *Store[T]) Snapshot(target domain.TargetID) T {
	record := s.Get(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(*record)
}

// OnTargetCreated copies the source record onto newTarget. Without a source
// record nothing is attached and Get creates the default lazily.
func (s *Store[T]) OnTargetCreated(newTarget domain.TargetID, source *domain.TargetID) {
	if source == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[*source]
	if !ok {
		return
	}
	copied := s.clone(*record)
	s.records[newTarget] = &copied
}

func (s *Store[T]) Forget(target domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, target)
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
