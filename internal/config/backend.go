package config

import "strings"

// Backend selects the ledger store implementation
type Backend string

const (
	BackendSQLite Backend = "sqlite" // single-file database, the default
	BackendBadger Backend = "badger" // embedded key-value store directory
	BackendMemory Backend = "memory" // nothing persisted; for tests and dry runs
)

// ParseBackend converts a case-insensitive name to a Backend
func ParseBackend(s string) (Backend, bool) {
	switch strings.ToLower(s) {
	case "sqlite":
		return BackendSQLite, true
	case "badger":
		return BackendBadger, true
	case "memory":
		return BackendMemory, true
	default:
		return "", false
	}
}

// Persistent reports whether the backend survives a restart
func (b Backend) Persistent() bool {
	return b == BackendSQLite || b == BackendBadger
}
