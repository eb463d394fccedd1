// Package badgerstore is a key-value writer backend on BadgerDB. Each content
// is stored under content:<id>; finalize records the content count and the
// commit order.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

const (
	contentKeyPrefix = "content:"
	orderKeyPrefix   = "order:"
	countKey         = "meta:count"
)

// Store implements memory.Backend and memory.Reader.
//
// With an empty path the database lives in memory; it then stays open after
// Close so it can still be read, until Shutdown.
type Store struct {
	path string

	mu      sync.Mutex
	db      *badger.DB
	writing bool
	seq     uint64
}

// New returns a store for the badger directory at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Name implements memory.Backend.
func (s *Store) Name() string {
	if s.path == "" {
		return "badger:memory"
	}
	return "badger:" + s.path
}

func (s *Store) openDB() (*badger.DB, error) {
	opts := badger.DefaultOptions(s.path)
	if s.path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger db: %v", internalerr.ErrStoreUnavailable, err)
	}
	return db, nil
}

// Open opens the database and drops the previous pass.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writing {
		return fmt.Errorf("%w: %s already open", internalerr.ErrStoreUnavailable, s.Name())
	}
	if s.db == nil {
		db, err := s.openDB()
		if err != nil {
			return err
		}
		s.db = db
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("reset badger db: %w", err)
	}
	s.writing = true
	s.seq = 0
	return nil
}

// Commit stores one content and its position in the commit order.
func (s *Store) Commit(ctx context.Context, c *content.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.writing {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, s.Name())
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(contentKeyPrefix + c.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		if err := txn.Set(orderKey(s.seq), []byte(c.ID)); err != nil {
			return fmt.Errorf("set order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.seq++
	return nil
}

// Finalize records the number of contents written in the pass.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, s.seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(countKey), buf)
	})
}

// Close ends the pass. On-disk databases are closed; in-memory ones stay
// readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writing = false
	if s.db == nil || s.path == "" {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown closes the database regardless of mode.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing = false
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get implements memory.Reader. A closed on-disk store is reopened for the
// lookup.
func (s *Store) Get(ctx context.Context, id string) (*content.Content, error) {
	var out *content.Content
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(contentKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get content: %w", err)
		}
		return item.Value(func(val []byte) error {
			out = &content.Content{}
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the content count recorded by the last finalize.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(countKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content count: %w", internalerr.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("%w: corrupt count", internalerr.ErrInvalidInput)
			}
			n = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return n, err
}

// IDs returns the committed ids in commit order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(orderKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		if s.path == "" {
			return fmt.Errorf("%w: in-memory badger db was shut down", internalerr.ErrStoreUnavailable)
		}
		reopened, err := s.openDB()
		if err != nil {
			return err
		}
		defer reopened.Close()
		db = reopened
	}
	return db.View(fn)
}

func orderKey(seq uint64) []byte {
	key := make([]byte, len(orderKeyPrefix)+8)
	copy(key, orderKeyPrefix)
	binary.BigEndian.PutUint64(key[len(orderKeyPrefix):], seq)
	return key
}
