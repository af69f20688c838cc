// Package storage provides the key-value handle that the flights service
// provisions for its configured database.
//
// # Overview
//
// The service opens exactly one store at startup, from the path of the first
// configured database, and hands it to the worker that owns the shared
// state. Consolidation results are not persisted; the store is read only by
// the health endpoint, which reports its statistics.
//
// # Implementations
//
// MemoryStore: map guarded by sync.RWMutex
//   - Selected by the path ":memory:" or an empty path
//   - No persistence (data lost on restart)
//   - Suitable for tests and throwaway instances
//
// BadgerStore: embedded LSM database (github.com/dgraph-io/badger/v4)
//   - Selected by any other path, which names a directory
//   - Persistent and crash-safe
//   - Badger's internal logging is routed through zap
//
// # Concurrency and Thread Safety
//
// Both implementations are safe for concurrent use. Values are copied on the
// way in and out, so callers may reuse their buffers. After Close every
// operation returns ErrStoreClosed, and a second Close is a no-op.
//
// # Usage Examples
//
//	store, err := storage.Open("db.kv", logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	stats, err := store.Stats()
package storage
