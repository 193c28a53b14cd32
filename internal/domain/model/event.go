package model

import "time"

// EventKind is the kind of status update pushed to presentation sinks.
type EventKind string

const (
	EventScanning   EventKind = "scanning"
	EventProcessing EventKind = "processing"
	EventApproved   EventKind = "approved"
	EventInvalid    EventKind = "invalid"
	EventError      EventKind = "error"
	EventCancelled  EventKind = "cancelled"
)

// Terminal reports whether the event concludes a session.
func (k EventKind) Terminal() bool {
	switch k {
	case EventApproved, EventInvalid, EventError, EventCancelled:
		return true
	}
	return false
}

// Event is a discrete status update for one session.
// Success drives the binary green/red flash; it is false for non-terminal events.
type Event struct {
	SessionID string
	Kind      EventKind
	Message   string
	Success   bool
	Record    *TicketRecord
	At        time.Time
}

// OutcomeEvent maps a concluded outcome to its terminal event.
func OutcomeEvent(sessionID string, o Outcome) Event {
	kind := EventError
	switch o.Kind {
	case OutcomeApproved:
		kind = EventApproved
	case OutcomeInvalid:
		kind = EventInvalid
	case OutcomeCancelled:
		kind = EventCancelled
	}
	return Event{
		SessionID: sessionID,
		Kind:      kind,
		Message:   o.Message,
		Success:   o.Success(),
		Record:    o.Record,
		At:        time.Now(),
	}
}
