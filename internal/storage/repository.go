package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/amanthanvi/tripbook/internal/record"
)

// Repository is the in-memory record collection. Nothing reaches disk until
// Save is called. Records handed in or out are copies.
type Repository struct {
	mu        sync.Mutex
	store     Persister
	records   []*record.Record
	highWater int64
	logger    *slog.Logger
}

func NewRepository(store Persister, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		store:   store,
		records: []*record.Record{},
		logger:  logger,
	}
}

// Load replaces the in-memory collection with the persisted one. On error
// the current collection is left untouched.
func (r *Repository) Load(ctx context.Context) (LoadReport, error) {
	if r.store == nil {
		return LoadReport{}, fmt.Errorf("load repository: no persistent store")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, report, err := r.store.Load(ctx)
	if err != nil {
		return report, err
	}
	r.records = records
	if max := maxID(records); max > r.highWater {
		r.highWater = max
	}
	r.logger.Debug("records loaded", "count", len(records), "skipped", len(report.Skipped))
	return report, nil
}

func (r *Repository) Save(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("save repository: no persistent store")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Save(ctx, r.records); err != nil {
		return err
	}
	r.logger.Debug("records saved", "count", len(r.records))
	return nil
}

// Create assigns the next ID, appends the record and returns a copy of it.
// The ID is written first; a caller-supplied ID is discarded.
func (r *Repository) Create(fields *record.Record) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.nextIDLocked()
	if err != nil {
		return nil, err
	}
	rec := record.New(record.F(record.FieldID, record.Int(id)))
	rec.Merge(fields)

	r.records = append(r.records, rec)
	r.highWater = id
	return rec.Clone(), nil
}

func (r *Repository) Read(id int64) (*record.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return r.records[idx].Clone(), true
}

// ReadTyped is Read restricted to records of the given type.
func (r *Repository) ReadTyped(id int64, recordType string) (*record.Record, bool) {
	rec, ok := r.Read(id)
	if !ok || rec.Type() != recordType {
		return nil, false
	}
	return rec, true
}

// Update merges fields into the record with the given ID. Missing IDs are
// reported, never inserted.
func (r *Repository) Update(id int64, fields *record.Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	r.records[idx].Merge(fields)
	return true
}

func (r *Repository) Delete(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	r.records = append(r.records[:idx], r.records[idx+1:]...)
	return true
}

// Search returns, in collection order, every record whose field equals value
// when both are compared case-insensitively. Records missing the field or
// holding null there never match.
func (r *Repository) Search(field, value string) []*record.Record {
	return r.Query(Query{Field: field, Value: value, Match: MatchExact})
}

func (r *Repository) Query(q Query) []*record.Record {
	fold := cases.Fold()
	needle := fold.String(q.Value)
	match := func(v record.Value) bool {
		if v.IsNull() {
			return false
		}
		hay := fold.String(v.Text())
		if q.Match == MatchContains {
			return strings.Contains(hay, needle)
		}
		return hay == needle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*record.Record{}
	for _, rec := range r.records {
		if q.Type != "" && rec.Type() != q.Type {
			continue
		}
		if matchRecord(rec, q.Field, match) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func matchRecord(rec *record.Record, field string, match func(record.Value) bool) bool {
	if field == "" || field == AllFields {
		for _, f := range rec.Fields() {
			if match(f.Value) {
				return true
			}
		}
		return false
	}
	v, ok := rec.Get(field)
	return ok && match(v)
}

// NextID is one more than the largest ID ever seen by this repository.
func (r *Repository) NextID() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextIDLocked()
}

func (r *Repository) List() []*record.Record {
	return r.ListByType("")
}

func (r *Repository) ListByType(recordType string) []*record.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*record.Record, 0, len(r.records))
	for _, rec := range r.records {
		if recordType != "" && rec.Type() != recordType {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Replace swaps the whole collection. Every record must carry a valid,
// unique ID.
func (r *Repository) Replace(records []*record.Record) error {
	seen := make(map[int64]struct{}, len(records))
	next := make([]*record.Record, 0, len(records))
	for i, rec := range records {
		id, ok := rec.ID()
		if !ok {
			return fmt.Errorf("replace records: entry %d: %w", i, ErrInvalidID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("replace records: id %d: %w", id, ErrDuplicateID)
		}
		seen[id] = struct{}{}
		next = append(next, rec.Clone())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = next
	if max := maxID(next); max > r.highWater {
		r.highWater = max
	}
	return nil
}

func (r *Repository) nextIDLocked() (int64, error) {
	max := r.highWater
	if scanned := maxID(r.records); scanned > max {
		max = scanned
	}
	if max == math.MaxInt64 {
		return 0, ErrIDExhausted
	}
	return max + 1, nil
}

func (r *Repository) indexLocked(id int64) int {
	for i, rec := range r.records {
		if recID, ok := rec.ID(); ok && recID == id {
			return i
		}
	}
	return -1
}

func maxID(records []*record.Record) int64 {
	var max int64
	for _, rec := range records {
		if id, ok := rec.ID(); ok && id > max {
			max = id
		}
	}
	return max
}
