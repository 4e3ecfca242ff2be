package progress

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the event union on the wire.
type EventKind string

const (
	// EventTransferStarted is emitted once when a session begins.
	EventTransferStarted EventKind = "transferStarted"
	// EventTransferProgress carries a session-level progress snapshot.
	EventTransferProgress EventKind = "transferProgress"
	// EventFileProgress carries one file's progress record.
	EventFileProgress EventKind = "fileProgress"
	// EventStageChanged signals a session stage transition.
	EventStageChanged EventKind = "stageChanged"
	// EventTransferCompleted is emitted once when a session completes.
	EventTransferCompleted EventKind = "transferCompleted"
	// EventTransferFailed is emitted once when a session fails.
	EventTransferFailed EventKind = "transferFailed"
)

// Event is one entry in the structured event stream delivered to the
// consumer. Exactly the fields relevant to its Kind are populated; the wire
// shape is {"event": <kind>, "data": {...}}.
type Event struct {
	Kind       EventKind
	Transfer   *Transfer
	TransferID TransferID
	File       *FileProgress
	Stage      TransferStage
	Message    string
	Error      string
}

// Critical reports whether the event is exempt from rate limiting. Session
// start, session terminal events, per-file terminal transitions, and stage
// changes must reach the consumer promptly and exactly once.
func (e Event) Critical() bool {
	switch e.Kind {
	case EventTransferStarted, EventTransferCompleted, EventTransferFailed, EventStageChanged:
		return true
	case EventFileProgress:
		return e.File != nil && e.File.Status.IsTerminal()
	default:
		return false
	}
}

// TransferStarted builds the session-start event.
func TransferStarted(t Transfer) Event {
	return Event{Kind: EventTransferStarted, Transfer: &t}
}

// TransferProgressed builds a session-level progress event.
func TransferProgressed(t Transfer) Event {
	return Event{Kind: EventTransferProgress, Transfer: &t}
}

// FileProgressed builds a per-file progress event.
func FileProgressed(transferID TransferID, f FileProgress) Event {
	return Event{Kind: EventFileProgress, TransferID: transferID, File: &f}
}

// StageChanged builds a stage transition event. Message may be empty.
func StageChanged(transferID TransferID, stage TransferStage, message string) Event {
	return Event{Kind: EventStageChanged, TransferID: transferID, Stage: stage, Message: message}
}

// TransferCompleted builds the successful terminal event.
func TransferCompleted(t Transfer) Event {
	return Event{Kind: EventTransferCompleted, Transfer: &t}
}

// TransferFailed builds the failure terminal event.
func TransferFailed(t Transfer, errMsg string) Event {
	return Event{Kind: EventTransferFailed, Transfer: &t, Error: errMsg}
}

type eventEnvelope struct {
	Event EventKind `json:"event"`
	Data  any       `json:"data"`
}

type transferPayload struct {
	Transfer *Transfer `json:"transfer"`
}

type transferErrorPayload struct {
	Transfer *Transfer `json:"transfer"`
	Error    string    `json:"error"`
}

type filePayload struct {
	TransferID TransferID    `json:"transferId"`
	File       *FileProgress `json:"file"`
}

type stagePayload struct {
	TransferID TransferID    `json:"transferId"`
	Stage      TransferStage `json:"stage"`
	Message    string        `json:"message,omitempty"`
}

// MarshalJSON renders the tagged-union wire shape with an explicit
// discriminator field.
func (e Event) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Kind {
	case EventTransferStarted, EventTransferProgress, EventTransferCompleted:
		data = transferPayload{Transfer: e.Transfer}
	case EventTransferFailed:
		data = transferErrorPayload{Transfer: e.Transfer, Error: e.Error}
	case EventFileProgress:
		data = filePayload{TransferID: e.TransferID, File: e.File}
	case EventStageChanged:
		data = stagePayload{TransferID: e.TransferID, Stage: e.Stage, Message: e.Message}
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return json.Marshal(eventEnvelope{Event: e.Kind, Data: data})
}
