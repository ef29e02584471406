// Package store persists engine snapshots in badger. A snapshot is the whole
// core.State, JSON encoded inside a versioned envelope.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	g "github.com/pandodao/generic"

	"usdo-ledger/core"
	"usdo-ledger/core/model"
)

// SchemaVersion is the snapshot layout written by Save.
const SchemaVersion = 2

var (
	snapshotKey = []byte("s:latest")
	historyKey  = []byte("h:")
)

type envelope struct {
	Version        int             `json:"version"`
	MultiplierBase string          `json:"multiplier_base"`
	SavedAt        int64           `json:"saved_at"`
	State          json.RawMessage `json:"state"`
}

type Store struct {
	db      *badger.DB
	history int
}

// Open opens the database in dir, or an in-memory one when dir is empty.
// history is how many previous snapshots are kept next to the latest one.
func Open(dir string, history int) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Store{db: db, history: history}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes st as the latest snapshot.
func (s *Store) Save(st core.State) error {
	now := time.Now()
	env := envelope{
		Version:        SchemaVersion,
		MultiplierBase: model.Base.String(),
		SavedAt:        now.Unix(),
		State:          g.Must(json.Marshal(st)),
	}
	return s.put(env, now.UnixNano())
}

func (s *Store) put(env envelope, seq int64) error {
	value := g.Must(json.Marshal(env))
	return s.db.Update(func(txn *badger.Txn) error {
		if s.history > 0 {
			if err := txn.Set(historyIndexKey(seq), value); err != nil {
				return err
			}
			if err := s.trimHistory(txn); err != nil {
				return err
			}
		}
		return txn.SetEntry(badger.NewEntry(snapshotKey, value))
	})
}

func historyIndexKey(seq int64) []byte {
	key := append([]byte(nil), historyKey...)
	return append(key, []byte(fmt.Sprintf("%020d", seq))...)
}

func (s *Store) trimHistory(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var stale [][]byte
	n := 0
	seek := append(append([]byte(nil), historyKey...), 0xff)
	for it.Seek(seek); it.ValidForPrefix(historyKey); it.Next() {
		n++
		if n > s.history {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// History returns the number of retained previous snapshots.
func (s *Store) History() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(historyKey); it.ValidForPrefix(historyKey); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) latest() (envelope, bool, error) {
	var (
		env   envelope
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		return envelope{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	return env, found, nil
}

// Version reports the schema version of the stored snapshot, 0 when there
// is none.
func (s *Store) Version() (int, error) {
	env, found, err := s.latest()
	if err != nil || !found {
		return 0, err
	}
	return env.Version, nil
}

// Load returns the latest snapshot upgraded to the current schema. found is
// false on an empty database.
func (s *Store) Load() (st core.State, found bool, err error) {
	env, found, err := s.latest()
	if err != nil || !found {
		return core.State{}, found, err
	}
	st, err = decode(env)
	if err != nil {
		return core.State{}, true, err
	}
	return st, true, nil
}

// Migrate rewrites an older snapshot in the current schema and returns the
// version it started from.
func (s *Store) Migrate() (int, error) {
	env, found, err := s.latest()
	if err != nil || !found {
		return 0, err
	}
	if env.Version == SchemaVersion {
		return env.Version, nil
	}
	st, err := decode(env)
	if err != nil {
		return env.Version, err
	}
	if err := s.Save(st); err != nil {
		return env.Version, err
	}
	return env.Version, nil
}
