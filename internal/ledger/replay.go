package ledger

import (
	"fmt"
	"time"

	"nvdiff/internal/domain"
)

// Replay folds the entries of one NID up to and including asOf and returns
// the resulting state. It returns nil when asOf precedes the Addition or
// falls at or after the Retirement. Entries must be in timestamp order.
func Replay(entries []domain.Entry, asOf time.Time) *domain.Feature {
	var state *domain.Feature
	for _, e := range entries {
		if e.Timestamp.After(asOf) {
			break
		}
		switch {
		case e.Effect == domain.EffectRetirement:
			state = nil
		case e.State != nil:
			s := e.State.Clone()
			state = &s
		}
	}
	return state
}

// check validates appending e to the history of its NID
func check(history []domain.Entry, e domain.Entry) error {
	violation := func(format string, args ...any) error {
		return &domain.LifecycleError{NID: e.NID, Effect: e.Effect, Reason: fmt.Sprintf(format, args...)}
	}

	if e.NID == "" {
		return violation("empty nid")
	}
	if !e.Effect.Valid() {
		return violation("unknown effect")
	}
	if e.Timestamp.IsZero() {
		return violation("missing timestamp")
	}

	if len(history) == 0 {
		if e.Effect != domain.EffectAddition {
			return violation("no prior entry")
		}
		if e.State == nil {
			return violation("addition without state")
		}
		return nil
	}

	last := history[len(history)-1]
	switch {
	case last.Effect == domain.EffectRetirement:
		return violation("already retired at %s", last.Timestamp.Format(time.RFC3339))
	case e.Effect == domain.EffectAddition:
		return violation("already added at %s", history[0].Timestamp.Format(time.RFC3339))
	case e.Kind != last.Kind:
		return violation("kind %s differs from %s", e.Kind, last.Kind)
	case !e.Timestamp.After(last.Timestamp):
		return violation("timestamp %s not after %s", e.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano))
	}
	return nil
}
