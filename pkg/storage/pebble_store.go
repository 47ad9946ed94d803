package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Append writes the entry and, when it carries an order id, the id index,
// in one synced batch.
func (s *PebbleStore) Append(e *Entry) error {
	ensureID(e)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	key := journalKey(e.Time, e.ID)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to stage entry: %w", err)
	}
	if oid, ok := e.AssignedOrderID(); ok && e.Kind == KindPlace {
		if err := b.Set(orderIDKey(oid), key, nil); err != nil {
			return fmt.Errorf("failed to stage order index: %w", err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *PebbleStore) Recent(limit int) ([]Entry, error) {
	prefix := []byte(prefixJournal)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for iter.Last(); iter.Valid() && (limit <= 0 || len(entries) < limit); iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue // skip entries written by an incompatible version
		}
		entries = append(entries, e)
	}
	return entries, iter.Error()
}

func (s *PebbleStore) ByOrderID(oid uint64) (Entry, bool, error) {
	key, ok, err := s.get(orderIDKey(oid))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	data, ok, err := s.get(key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, true, nil
}

func (s *PebbleStore) SaveSnapshot(name string, v any) error {
	data, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	if err := s.db.Set(snapshotKey(name), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

func (s *PebbleStore) LoadSnapshot(name string, v any) (bool, error) {
	data, ok, err := s.get(snapshotKey(name))
	if err != nil || !ok {
		return false, err
	}
	if err := decodeGob(data, v); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return true, nil
}

// get copies the value out so it outlives the closer.
func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

var _ Store = (*PebbleStore)(nil)
