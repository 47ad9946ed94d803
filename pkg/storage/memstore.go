package storage

import (
	"sort"
	"sync"
)

// MemStore keeps everything in memory. Used in test mode and tests.
type MemStore struct {
	mu        sync.Mutex
	entries   []Entry
	byOrderID map[uint64]int
	snapshots map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		byOrderID: make(map[uint64]int),
		snapshots: make(map[string][]byte),
	}
}

func (s *MemStore) Append(e *Entry) error {
	ensureID(e)
	s.mu.Lock()
	defer s.mu.Unlock()

	// keep time order, ties in append order
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Time > e.Time })
	s.entries = append(s.entries, Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = *e
	for oid, idx := range s.byOrderID {
		if idx >= i {
			s.byOrderID[oid] = idx + 1
		}
	}
	if oid, ok := e.AssignedOrderID(); ok && e.Kind == KindPlace {
		s.byOrderID[oid] = i
	}
	return nil
}

func (s *MemStore) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *MemStore) ByOrderID(oid uint64) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byOrderID[oid]
	if !ok {
		return Entry{}, false, nil
	}
	return s.entries[idx], true, nil
}

func (s *MemStore) SaveSnapshot(name string, v any) error {
	data, err := encodeGob(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[name] = data
	return nil
}

func (s *MemStore) LoadSnapshot(name string, v any) (bool, error) {
	s.mu.Lock()
	data, ok := s.snapshots[name]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, decodeGob(data, v)
}

func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
