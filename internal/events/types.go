// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Allocation events
	AllocationsRefreshed EventType = "allocations.refreshed"

	// Submission events
	SubmissionBroadcast EventType = "submission.broadcast"
	SubmissionConfirmed EventType = "submission.confirmed"
	SubmissionFailed    EventType = "submission.failed"

	// Market events
	PriceUpdated  EventType = "price.updated"
	WhaleDetected EventType = "whale.detected"

	// Monitoring events
	MonitoringStarted EventType = "monitoring.started"
	MonitoringStopped EventType = "monitoring.stopped"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// AllocationsRefreshedEvent is emitted when the store picks up a new
// authoritative snapshot (optimistic apply, rollback or chain refresh).
type AllocationsRefreshedEvent struct {
	BaseEvent
	Categories  []string
	Percentages []int64
	Source      string // "optimistic", "rollback", "chain"
}

// SubmissionBroadcastEvent is emitted after an allocation update was sent.
type SubmissionBroadcastEvent struct {
	BaseEvent
	RecordID string
	Hash     string
}

// SubmissionConfirmedEvent is emitted when the chain confirmed an update.
type SubmissionConfirmedEvent struct {
	BaseEvent
	RecordID string
	Hash     string
}

// SubmissionFailedEvent is emitted when an update failed or was cancelled.
type SubmissionFailedEvent struct {
	BaseEvent
	RecordID  string
	Hash      string
	Cancelled bool
	Error     string
}

// PriceUpdatedEvent is emitted when a tracked token price changes.
type PriceUpdatedEvent struct {
	BaseEvent
	Symbol        string
	PriceUSD      float64
	Change24hPct  float64
	PreviousPrice float64
}

// WhaleDetectedEvent is emitted for every newly observed whale transaction.
type WhaleDetectedEvent struct {
	BaseEvent
	Hash     string
	From     string
	To       string
	ValueUSD float64
	Size     string
}

// MonitoringStartedEvent is emitted when a tracker loop begins.
type MonitoringStartedEvent struct {
	BaseEvent
	Component string
}

// MonitoringStoppedEvent is emitted when a tracker loop ends.
type MonitoringStoppedEvent struct {
	BaseEvent
	Component string
	Reason    string
}
