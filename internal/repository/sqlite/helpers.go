package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nvdiff/internal/domain"
)

func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// encodeState stores a feature state as a JSON column. Retirements carry
// no state and are stored as NULL.
func encodeState(f *domain.Feature) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeState is the inverse of encodeState
func decodeState(ns sql.NullString) (*domain.Feature, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var f domain.Feature
	if err := json.Unmarshal([]byte(ns.String), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Timestamps are stored as UTC RFC 3339 text with nanoseconds so that
// lexical order in the column matches time order.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
