package storage

import (
	"context"
	"errors"
	"time"

	"github.com/amanthanvi/tripbook/internal/record"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
	ErrDuplicateID  = errors.New("storage: duplicate record id")
	ErrInvalidID    = errors.New("storage: invalid record id")
	ErrIDExhausted  = errors.New("storage: record ids exhausted")
)

// Persister loads and saves the whole record collection at once.
type Persister interface {
	Load(ctx context.Context) ([]*record.Record, LoadReport, error)
	Save(ctx context.Context, records []*record.Record) error
}

type LoadReport struct {
	Path        string
	Missing     bool
	Unparseable bool
	Loaded      int
	Skipped     []SkippedEntry
}

type SkippedEntry struct {
	Index  int
	Reason string
}

type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
)

// AllFields as a query field matches against every field of a record.
const AllFields = "all"

type Query struct {
	Type  string
	Field string
	Value string
	Match MatchMode
}

// AuditEvent is one journal row. Seq is assigned on append and orders the
// hash chain; SubjectType/SubjectID name what the event is about (a record
// type and ID, "store" or "server").
type AuditEvent struct {
	Seq         int64
	ID          string
	Action      string
	SubjectType string
	SubjectID   string
	Result      string
	DetailsJSON string
	PrevHash    string
	EventHash   string
	CreatedAt   time.Time
}

// AuditFilter narrows List. AfterSeq pages through the journal in chain order.
type AuditFilter struct {
	Action      string
	SubjectType string
	SubjectID   string
	Since       *time.Time
	Until       *time.Time
	AfterSeq    int64
	Limit       int
}

type AuditRepository interface {
	// Append stores the event and makes its EventHash the chain tip.
	Append(ctx context.Context, event *AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
	ChainTip(ctx context.Context) (string, error)
	Count(ctx context.Context) (int, error)
}
