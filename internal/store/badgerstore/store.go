// Package badgerstore implements activity.CounterStore on an embedded
// BadgerDB. Keys are ordered byte strings, so the per-entity event log
// is stored with big-endian timestamps in the key and windowed queries
// become bounded prefix scans.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/agorabot/agora/internal/core/activity"
)

// Key layout, all ids and timestamps big-endian 8 bytes:
//
//	cnt:<entity>              -> JSON activity.Counters
//	log:<entity><ts><event>   -> empty (key order is time order)
//	evt:<entity><event>       -> <ts> (event-id membership index)
var (
	prefixCounters = []byte("cnt:")
	prefixLog      = []byte("log:")
	prefixEvent    = []byte("evt:")
)

// Store is a badger-backed counter store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no disk persistence. Used by tests
// and the one-shot CLI dry runs.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func be64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func counterKey(entityID int64) []byte {
	return append(append([]byte{}, prefixCounters...), be64(entityID)...)
}

func logPrefix(entityID int64) []byte {
	return append(append([]byte{}, prefixLog...), be64(entityID)...)
}

func logKey(entityID, ts, eventID int64) []byte {
	return append(append(logPrefix(entityID), be64(ts)...), be64(eventID)...)
}

func eventPrefix(entityID int64) []byte {
	return append(append([]byte{}, prefixEvent...), be64(entityID)...)
}

func eventKey(entityID, eventID int64) []byte {
	return append(eventPrefix(entityID), be64(eventID)...)
}

// wrap marks backend failures as ErrStoreUnavailable so callers can
// distinguish connectivity problems from domain outcomes.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(activity.ErrStoreUnavailable, err))
}

// RecordEvent increments the entity's lifetime total, overwrites its
// last-event timestamp (last write wins, not max) and appends the event
// to the time-ordered log. A replayed event id is a no-op for both the
// counter and the log. The compound write runs in one transaction.
func (s *Store) RecordEvent(ctx context.Context, entityID, eventID, timestamp int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		// Membership check keeps replays from double-counting.
		_, err := txn.Get(eventKey(entityID, eventID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		counters, err := readCounters(txn, entityID)
		if err != nil {
			return err
		}
		counters.Total++
		counters.LastEventAt = timestamp

		raw, err := json.Marshal(counters)
		if err != nil {
			return err
		}
		if err := txn.Set(counterKey(entityID), raw); err != nil {
			return err
		}
		if err := txn.Set(logKey(entityID, timestamp, eventID), nil); err != nil {
			return err
		}
		return txn.Set(eventKey(entityID, eventID), be64(timestamp))
	})
	if err != nil {
		return wrap("record event", err)
	}
	return nil
}

// Counters returns the raw aggregates. Unknown entities yield zeros.
func (s *Store) Counters(ctx context.Context, entityID int64) (activity.Counters, error) {
	if err := ctx.Err(); err != nil {
		return activity.Counters{}, err
	}

	var counters activity.Counters
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		counters, err = readCounters(txn, entityID)
		return err
	})
	if err != nil {
		return activity.Counters{}, wrap("get counters", err)
	}
	return counters, nil
}

// CountSince counts log entries with timestamp >= cutoff.
func (s *Store) CountSince(ctx context.Context, entityID, cutoff int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := logPrefix(entityID)
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seeking to <prefix><cutoff> lands on the first entry with
		// timestamp >= cutoff; everything after shares the prefix.
		seek := append(append([]byte{}, prefix...), be64(cutoff)...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, wrap("count since", err)
	}
	return count, nil
}

// PurgeBefore deletes log entries with timestamp <= cutoff and their
// membership index entries, returning the number of log entries
// removed. The lifetime total is intentionally untouched. Because the
// index is pruned with the log, the replay guarantee is bounded by the
// retention window.
func (s *Store) PurgeBefore(ctx context.Context, entityID, cutoff int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := logPrefix(entityID)
	var doomed [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts := int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
			if ts > cutoff {
				break
			}
			eventID := int64(binary.BigEndian.Uint64(key[len(prefix)+8:]))
			doomed = append(doomed, key, eventKey(entityID, eventID))
		}
		return nil
	})
	if err != nil {
		return 0, wrap("purge scan", err)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return 0, wrap("purge delete", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, wrap("purge flush", err)
	}

	// Every log key was paired with one index key.
	return int64(len(doomed) / 2), nil
}

// Clear atomically removes the counters row, the event log and the
// membership index for an entity.
func (s *Store) Clear(ctx context.Context, entityID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(counterKey(entityID)); err != nil {
			return err
		}
		for _, prefix := range [][]byte{logPrefix(entityID), eventPrefix(entityID)} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix

			var keys [][]byte
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()

			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return wrap("clear", err)
	}
	return nil
}

// ListTracked enumerates every entity with a counter record.
func (s *Store) ListTracked(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixCounters
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixCounters); it.ValidForPrefix(prefixCounters); it.Next() {
			key := it.Item().Key()
			ids = append(ids, int64(binary.BigEndian.Uint64(key[len(prefixCounters):])))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list tracked", err)
	}
	return ids, nil
}

func readCounters(txn *badger.Txn, entityID int64) (activity.Counters, error) {
	var counters activity.Counters

	item, err := txn.Get(counterKey(entityID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return counters, nil
	}
	if err != nil {
		return counters, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &counters)
	})
	return counters, err
}
