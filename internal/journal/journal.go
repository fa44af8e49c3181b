// ABOUTME: BadgerDB-backed journal of dispatched events and profile syncs
// ABOUTME: Implements the tracking client contract so it composes with other sinks

package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/percept-io/percept/internal/analytics"
)

// Record kinds stored in the journal.
const (
	KindEvent   = "event"
	KindProfile = "profile"
)

// recordPrefix keys every journal entry. Keys embed a zero-padded
// nanosecond timestamp so lexicographic order is chronological order.
const recordPrefix = "rec:"

// Config holds configuration for the journal.
type Config struct {
	// Path to the database directory. Required unless InMemory is true.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites enables synchronous writes (slower but safer).
	SyncWrites bool

	// Logger for BadgerDB operations.
	Logger badger.Logger
}

// Record is one journaled tracking call.
type Record struct {
	Kind       string         `json:"kind"`
	Event      string         `json:"event,omitempty"`
	DistinctID any            `json:"distinct_id,omitempty"`
	Properties map[string]any `json:"properties"`
	Options    map[string]any `json:"options,omitempty"`
	At         time.Time      `json:"at"`
}

// Stats contains statistics about the journal.
type Stats struct {
	// Number of records in the journal.
	Records int64 `json:"records"`

	// On-disk size in bytes (LSM plus value log).
	SizeBytes int64 `json:"size_bytes"`
}

// Journal is an append-only local record of everything dispatched to
// the tracking backend, for operator inspection and batch export.
type Journal struct {
	db *badger.DB
}

// Open creates or opens a journal at the configured path.
func Open(cfg Config) (*Journal, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	if cfg.SyncWrites {
		opts = opts.WithSyncWrites(true)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// TrackEvent journals an event dispatch.
func (j *Journal) TrackEvent(ctx context.Context, name string, props analytics.Properties, opts analytics.Options) error {
	return j.append(Record{
		Kind:       KindEvent,
		Event:      name,
		DistinctID: opts["distinct_id"],
		Properties: props,
		Options:    opts,
		At:         time.Now().UTC(),
	})
}

// SetProfile journals a profile sync.
func (j *Journal) SetProfile(ctx context.Context, distinctID any, props analytics.Properties, opts analytics.Options) error {
	return j.append(Record{
		Kind:       KindProfile,
		DistinctID: distinctID,
		Properties: props,
		Options:    opts,
		At:         time.Now().UTC(),
	})
}

// append stores a record under a chronologically sortable key. The
// uuid suffix keeps same-nanosecond records from colliding.
func (j *Journal) append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	key := fmt.Sprintf("%s%020d:%s", recordPrefix, rec.At.UnixNano(), uuid.New().String())
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	return nil
}

// Recent returns up to n records, most recent first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	records := make([]Record, 0, n)
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordPrefix)
		// Seek past the last possible record key, then walk backwards.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < n; it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// All streams every record in chronological order to fn. Export uses
// this to walk the journal without loading it into memory.
func (j *Journal) All(ctx context.Context, fn func(Record) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats returns journal statistics.
func (j *Journal) Stats() Stats {
	var count int64
	j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	lsm, vlog := j.db.Size()
	return Stats{Records: count, SizeBytes: lsm + vlog}
}
