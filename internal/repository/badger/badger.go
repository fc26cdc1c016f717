// Package badger implements the ledger store on BadgerDB.
//
// Entries are stored under "entry/<seq>" with the sequence number zero-padded
// so key order is sequence order. A "head" key records the highest committed
// sequence number; entries above it belong to an interrupted batch and are
// ignored by Load. This keeps a batch atomic even when it does not fit in a
// single badger transaction.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"nvdiff/internal/domain"
	"nvdiff/internal/repository"
)

const (
	entryPrefix = "entry/"
	metaPrefix  = "meta/"
	headKey     = "head"
)

// Config configures the store
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in memory. Intended for tests.
	InMemory bool

	// SyncWrites fsyncs every commit
	SyncWrites bool

	// Logger receives badger's internal log output. Nil disables it.
	Logger *zap.Logger
}

// DefaultConfig returns production defaults for a database at path
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts zap to badger's Logger interface
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.s.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Store implements repository.LedgerStore using BadgerDB
type Store struct {
	db *badger.DB
}

var _ repository.LedgerStore = (*Store)(nil)

// Open opens or creates a store
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{s: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func entryKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryPrefix, seq))
}

func (s *Store) head(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(headKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head int64
	err = item.Value(func(val []byte) error {
		head, err = strconv.ParseInt(string(val), 10, 64)
		return err
	})
	return head, err
}

// Load returns every committed entry in sequence order
func (s *Store) Load(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		head, err := s.head(txn)
		if err != nil {
			return fmt.Errorf("read head: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e domain.Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if e.Seq > head {
				break
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Append stores a batch of entries. The head is advanced only after every
// entry is written.
func (s *Store) Append(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	var head int64
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		head, err = s.head(txn)
		return err
	}); err != nil {
		return fmt.Errorf("read head: %w", err)
	}

	last := head
	for _, e := range entries {
		if e.Seq <= head {
			return fmt.Errorf("entry %d already stored", e.Seq)
		}
		if e.Seq > last {
			last = e.Seq
		}
	}

	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", e.Seq, err)
		}
		err = txn.Set(entryKey(e.Seq), data)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return fmt.Errorf("commit partial batch: %w", err)
			}
			txn = s.db.NewTransaction(true)
			err = txn.Set(entryKey(e.Seq), data)
		}
		if err != nil {
			return fmt.Errorf("write entry %d: %w", e.Seq, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headKey), []byte(strconv.FormatInt(last, 10)))
	})
}

// GetMeta returns a metadata value
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		value = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", key, err)
	}
	return value, nil
}

// PutMeta sets a metadata value
func (s *Store) PutMeta(ctx context.Context, key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+key), []byte(value))
	})
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
