package service

import (
	"sync"

	"nvdiff/internal/domain"
)

// EventType names a cycle event. The values double as SSE event names.
type EventType string

const (
	EventCycleCommitted   EventType = "cycle_committed"
	EventCycleFlagged     EventType = "cycle_flagged"
	EventBaselineImported EventType = "baseline_imported"
	EventConflictDetected EventType = "conflict_detected"
)

// Event is published on the bus after the ledger state it describes is
// committed (or discarded, for flagged cycles)
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// CyclePayload accompanies EventCycleCommitted and EventBaselineImported
type CyclePayload struct {
	CycleID   string                  `json:"cycle_id"`
	Dataset   string                  `json:"dataset"`
	Method    domain.ComparisonMethod `json:"method,omitempty"`
	Entries   int                     `json:"entries"`
	Elements  map[domain.Effect]int   `json:"elements"`
	Junctions map[domain.Effect]int   `json:"junctions"`
}

// ConflictPayload accompanies EventConflictDetected, one per failed object
type ConflictPayload struct {
	CycleID string             `json:"cycle_id"`
	Kind    domain.FeatureKind `json:"kind"`
	Key     string             `json:"key"`
	Error   string             `json:"error"`
}

// FlagPayload accompanies EventCycleFlagged
type FlagPayload struct {
	CycleID string `json:"cycle_id"`
	Dataset string `json:"dataset"`
	Reason  string `json:"reason"`
}

// EventBus fans events out to subscriber channels
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates an event bus with no subscribers
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds ch to the bus. The bus never closes it.
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes ch from the bus
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. Slow subscribers miss events
// rather than block the cycle. Publishing on a nil bus is a no-op.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
