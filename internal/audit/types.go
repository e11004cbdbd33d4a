package audit

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ActionRecordCreate = "record.create"
	ActionRecordUpdate = "record.update"
	ActionRecordDelete = "record.delete"

	ActionStoreImport  = "store.import"
	ActionStoreExport  = "store.export"
	ActionStoreRestore = "store.restore"

	ActionServerStart = "server.start"
	ActionServerStop  = "server.stop"
)

var AllActionTypes = []string{
	ActionRecordCreate,
	ActionRecordUpdate,
	ActionRecordDelete,
	ActionStoreImport,
	ActionStoreExport,
	ActionStoreRestore,
	ActionServerStart,
	ActionServerStop,
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder is what the application layer needs from the audit trail.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards every event. It stands in when auditing is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Event describes one mutation or lifecycle step. TargetType is a record type
// for record events, "store" for file operations and "server" for the API.
type Event struct {
	Timestamp  time.Time
	Action     string
	TargetType string
	TargetID   string
	Result     string
	Details    any
}

type Filter struct {
	Action     string
	TargetType string
	TargetID   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

type RecordedEvent struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Result     string          `json:"result"`
	Details    json.RawMessage `json:"details"`
	PrevHash   string          `json:"prev_hash"`
	EventHash  string          `json:"event_hash"`
}

type VerifyResult struct {
	Valid      bool   `json:"valid"`
	EventCount int    `json:"event_count"`
	ChainTip   string `json:"chain_tip"`
	Error      string `json:"error,omitempty"`
}
