package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStore implements Store on an embedded badger database
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

// badgerLogger routes badger's own logging through zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}

// OpenBadger opens (or creates) a badger database in dir.
// A nil logger silences badger.
func OpenBadger(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Get(key string) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrStoreClosed
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (b *BadgerStore) Put(key string, value []byte) error {
	if b.closed.Load() {
		return ErrStoreClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerStore) Delete(key string) error {
	if b.closed.Load() {
		return ErrStoreClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// List returns keys in badger's byte order, which is ascending
func (b *BadgerStore) List() ([]string, error) {
	if b.closed.Load() {
		return nil, ErrStoreClosed
	}
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerStore) Stats() (StoreStats, error) {
	if b.closed.Load() {
		return StoreStats{}, ErrStoreClosed
	}
	var stats StoreStats
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			stats.Keys++
			stats.Bytes += int(it.Item().ValueSize())
		}
		return nil
	})
	return stats, err
}

// Close flushes and closes the database; closing twice is a no-op
func (b *BadgerStore) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}

// Open returns the store configured for path: MemoryPath or "" select a
// MemoryStore, anything else is a badger directory.
func Open(path string, logger *zap.Logger) (Store, error) {
	if path == "" || path == MemoryPath {
		return NewMemoryStore(), nil
	}
	s, err := OpenBadger(path, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
