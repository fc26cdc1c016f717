// Package repository defines the persistence interface of the lifecycle
// ledger.
//
// The ledger itself lives in memory and is the only writer. A LedgerStore
// receives whole committed batches and hands every entry back, in sequence
// order, when the ledger is reopened.
//
// # Implementations
//
//   - sqlite: a single-file database (modernc.org/sqlite, pure Go) with WAL
//     journaling. The default backend.
//   - badger: an embedded key-value store (dgraph-io/badger) keyed by entry
//     sequence number.
//   - Memory: a process-local store for tests and dry runs.
//
// # Testing
//
// The sqlite store is tested against in-memory databases and the badger store
// against badger's in-memory mode, so no test touches the filesystem.
package repository
