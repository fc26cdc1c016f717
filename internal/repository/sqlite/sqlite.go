package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nvdiff/internal/domain"
	"nvdiff/internal/repository"

	_ "modernc.org/sqlite"
)

// Store implements repository.LedgerStore using SQLite
type Store struct {
	db *sql.DB
}

var _ repository.LedgerStore = (*Store)(nil)

// New creates a new SQLite ledger store. Use ":memory:" for a throwaway
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps an in-memory
	// database alive for the life of the store
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY,
		nid TEXT NOT NULL,
		kind TEXT NOT NULL,
		effect TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		cycle_id TEXT,
		state JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_nid ON entries(nid);
	CREATE INDEX IF NOT EXISTS idx_entries_cycle ON entries(cycle_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load returns every entry in sequence order
func (s *Store) Load(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, nid, kind, effect, timestamp, cycle_id, state
		FROM entries
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			e                 domain.Entry
			nid, kind, effect string
			ts                string
			cycleID, state    sql.NullString
		)

		if err := rows.Scan(&e.Seq, &nid, &kind, &effect, &ts, &cycleID, &state); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		e.NID = domain.NID(nid)
		e.Kind = domain.FeatureKind(kind)
		e.Effect = domain.Effect(effect)
		e.CycleID = nullToString(cycleID)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		if e.State, err = decodeState(state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state of entry %d: %w", e.Seq, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// Append inserts a batch of entries in one transaction
func (s *Store) Append(ctx context.Context, entries []domain.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (seq, nid, kind, effect, timestamp, cycle_id, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		state, err := encodeState(e.State)
		if err != nil {
			return fmt.Errorf("failed to marshal state of %s: %w", e.NID, err)
		}

		_, err = stmt.ExecContext(ctx,
			e.Seq, string(e.NID), string(e.Kind), string(e.Effect),
			formatTime(e.Timestamp), stringToNull(e.CycleID), state,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %d for %s: %w", e.Seq, e.NID, err)
		}
	}

	return tx.Commit()
}

// GetMeta returns a metadata value
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query metadata %s: %w", key, err)
	}
	return value, nil
}

// PutMeta sets a metadata value
func (s *Store) PutMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
