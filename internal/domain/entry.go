package domain

import "time"

// Entry is one record of the lifecycle ledger. Entries are append-only and
// ordered by timestamp per NID.
type Entry struct {
	Seq       int64       `json:"seq"`
	NID       NID         `json:"nid"`
	Kind      FeatureKind `json:"kind"`
	Effect    Effect      `json:"effect"`
	Timestamp time.Time   `json:"timestamp"`
	CycleID   string      `json:"cycle_id,omitempty"`

	// State is the object's state after the effect; nil for Retirement
	State *Feature `json:"state,omitempty"`
}

// Clone returns a deep copy
func (e Entry) Clone() Entry {
	if e.State != nil {
		s := e.State.Clone()
		e.State = &s
	}
	return e
}
