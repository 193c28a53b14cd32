package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ScanState is a node of the scanning state machine.
type ScanState string

const (
	ScanStateIdle          ScanState = "idle"
	ScanStateStarting      ScanState = "starting"
	ScanStateScanning      ScanState = "scanning"
	ScanStateDecoding      ScanState = "decoding"
	ScanStateTransitioning ScanState = "transitioning"
	ScanStateConcluded     ScanState = "concluded"
)

// OutcomeKind classifies how a session ended.
type OutcomeKind string

const (
	OutcomePending   OutcomeKind = "pending"
	OutcomeApproved  OutcomeKind = "approved"
	OutcomeInvalid   OutcomeKind = "invalid"
	OutcomeError     OutcomeKind = "error"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// User-facing messages.
const (
	MsgScanning      = "Scanning…"
	MsgProcessing    = "Processing…"
	MsgApproved      = "Ticket Approved"
	MsgInvalidOrUsed = "Ticket Invalid or Used"
	MsgScanError     = "Scan Error"
	MsgCameraError   = "Cannot access camera"
	MsgCancelled     = "Scan cancelled"
)

// Outcome is the terminal classification of a session.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Record  *TicketRecord
	Err     error
}

// Success reports whether the outcome should drive a positive flash.
func (o Outcome) Success() bool { return o.Kind == OutcomeApproved }

func Approved(rec *TicketRecord) Outcome {
	return Outcome{Kind: OutcomeApproved, Message: MsgApproved, Record: rec}
}

func Invalid(err error) Outcome {
	return Outcome{Kind: OutcomeInvalid, Message: MsgInvalidOrUsed, Err: err}
}

func Failed(msg string, err error) Outcome {
	return Outcome{Kind: OutcomeError, Message: msg, Err: err}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled, Message: MsgCancelled}
}

// ScanSession is one redemption attempt, from camera start to conclusion.
type ScanSession struct {
	ID         string
	State      ScanState
	RawDecoded string
	Record     *TicketRecord
	Outcome    Outcome

	StartedAt   time.Time
	ConcludedAt time.Time
}

func NewScanSession() *ScanSession {
	return &ScanSession{
		ID:        ulid.Make().String(),
		State:     ScanStateStarting,
		Outcome:   Outcome{Kind: OutcomePending},
		StartedAt: time.Now(),
	}
}
