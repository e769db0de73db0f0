package identity

import (
	"fmt"
	"sync"
)

// Store persists index entries beyond the process. Save receives only the
// entries added by one commit together with the new sequence high mark.
type Store interface {
	Load(fn func(identity string, id int64) error) (last int64, err error)
	Save(entries map[string]int64, last int64) error
	Close() error
}

// Index maps node identities to local ids. Entries are never removed; an
// identity gets at most one id for the lifetime of the index.
type Index struct {
	mu    sync.RWMutex
	ids   map[string]int64
	last  int64
	store Store
}

func NewIndex() *Index {
	return &Index{ids: make(map[string]int64)}
}

// OpenIndex seeds an index from store and writes every later commit through to it.
func OpenIndex(store Store) (*Index, error) {
	x := NewIndex()
	if store == nil {
		return x, nil
	}
	last, err := store.Load(func(identity string, id int64) error {
		x.ids[identity] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load identity index: %w", err)
	}
	x.last = last
	x.store = store
	return x, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

func (x *Index) Lookup(identity string) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.ids[identity]
	return id, ok
}

// Resolve returns the id of identity, assigning and committing the next one
// when the identity is new.
func (x *Index) Resolve(identity string) (int64, bool, error) {
	s := x.Stage()
	id, created := s.Resolve(identity)
	err := s.Commit()
	return id, created, err
}

// Stage opens a pending view over the index. Assignments made through it
// become visible to the index only on Commit.
func (x *Index) Stage() *Stage {
	x.mu.RLock()
	last := x.last
	x.mu.RUnlock()
	return &Stage{index: x, pending: make(map[string]int64), last: last}
}

func (x *Index) Close() error {
	if x.store == nil {
		return nil
	}
	return x.store.Close()
}

type Stage struct {
	index   *Index
	pending map[string]int64
	last    int64
	closed  bool
}

func (s *Stage) Lookup(identity string) (int64, bool) {
	if id, ok := s.pending[identity]; ok {
		return id, true
	}
	return s.index.Lookup(identity)
}

// Resolve reports created=true only the first time identity is seen by
// either the index or this stage.
func (s *Stage) Resolve(identity string) (int64, bool) {
	if id, ok := s.Lookup(identity); ok {
		return id, false
	}
	s.last++
	s.pending[identity] = s.last
	return s.last, true
}

// Pending is the number of identities assigned by this stage.
func (s *Stage) Pending() int {
	return len(s.pending)
}

// Commit merges the pending assignments. The in-memory index is updated even
// when persisting to the store fails; the store error is returned.
func (s *Stage) Commit() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.pending) == 0 {
		return nil
	}

	x := s.index
	x.mu.Lock()
	for k, v := range s.pending {
		x.ids[k] = v
	}
	if s.last > x.last {
		x.last = s.last
	}
	last := x.last
	x.mu.Unlock()

	if x.store != nil {
		if err := x.store.Save(s.pending, last); err != nil {
			return fmt.Errorf("failed to persist %d identities: %w", len(s.pending), err)
		}
	}
	return nil
}

func (s *Stage) Discard() {
	s.closed = true
	s.pending = nil
}
