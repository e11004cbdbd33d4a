package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/amanthanvi/tripbook/internal/audit"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

// RecordService manages the records of one kind (client, airline or flight).
// Every successful mutation is saved to the persistent store before it
// returns.
type RecordService struct {
	kind     string
	repo     *storage.Repository
	recorder audit.Recorder
	logger   *slog.Logger
}

func NewRecordService(kind string, repo *storage.Repository, recorder audit.Recorder, logger *slog.Logger) *RecordService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RecordService{
		kind:     kind,
		repo:     repo,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *RecordService) Kind() string {
	return s.kind
}

func (s *RecordService) Create(ctx context.Context, fields *record.Record) (*record.Record, error) {
	if !isKnownType(s.kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, s.kind)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: no fields provided", ErrValidation)
	}
	if t := fields.Type(); fields.Has(record.FieldType) && t != s.kind {
		return nil, fmt.Errorf("%w: type must be %q, got %q", ErrValidation, s.kind, t)
	}

	candidate := record.New(record.F(record.FieldType, record.String(s.kind)))
	candidate.Merge(fields)
	if err := validateRecord(s.kind, candidate); err != nil {
		return nil, err
	}
	if err := s.checkReferences(candidate); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(candidate)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.kind, err)
	}
	id, _ := created.ID()
	if err := s.persist(ctx, audit.ActionRecordCreate, id, candidate.Keys()); err != nil {
		return created, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.logger.Debug("record created", "type", s.kind, "id", id)
	return created, nil
}

func (s *RecordService) Get(_ context.Context, id int64) (*record.Record, error) {
	rec, ok := s.repo.ReadTyped(id, s.kind)
	if !ok {
		return nil, s.notFound(id)
	}
	return rec, nil
}

func (s *RecordService) List(_ context.Context) ([]*record.Record, error) {
	return s.repo.ListByType(s.kind), nil
}

// Update merges patch into the stored record. The merged record must still
// be valid; the ID is never rewritten. Only the patched fields are written
// back, so concurrent updates of different fields both survive.
func (s *RecordService) Update(ctx context.Context, id int64, patch *record.Record) (*record.Record, error) {
	if patch == nil || patch.Len() == 0 {
		return nil, fmt.Errorf("%w: no update data provided", ErrValidation)
	}
	if t := patch.Type(); patch.Has(record.FieldType) && t != s.kind {
		return nil, fmt.Errorf("%w: type cannot change from %q to %q", ErrValidation, s.kind, t)
	}

	existing, ok := s.repo.ReadTyped(id, s.kind)
	if !ok {
		return nil, s.notFound(id)
	}
	merged := existing.Clone()
	merged.Merge(patch)
	if err := validateRecord(s.kind, merged); err != nil {
		return nil, err
	}
	if err := s.checkReferences(merged); err != nil {
		return nil, err
	}

	applied := record.New()
	for _, key := range patch.Keys() {
		if key == record.FieldID {
			continue
		}
		value, _ := merged.Get(key)
		applied.Set(key, value)
	}
	if !s.repo.Update(id, applied) {
		return nil, s.notFound(id)
	}
	updated, _ := s.repo.Read(id)
	if err := s.persist(ctx, audit.ActionRecordUpdate, id, changedFields(patch)); err != nil {
		return updated, fmt.Errorf("update %s %d: %w", s.kind, id, err)
	}
	s.logger.Debug("record updated", "type", s.kind, "id", id)
	return updated, nil
}

func (s *RecordService) Delete(ctx context.Context, id int64) error {
	if _, ok := s.repo.ReadTyped(id, s.kind); !ok {
		return s.notFound(id)
	}
	if !s.repo.Delete(id) {
		return s.notFound(id)
	}
	if err := s.persist(ctx, audit.ActionRecordDelete, id, nil); err != nil {
		return fmt.Errorf("delete %s %d: %w", s.kind, id, err)
	}
	s.logger.Debug("record deleted", "type", s.kind, "id", id)
	return nil
}

// persist saves the collection and records the outcome. A failed save
// leaves the change in memory.
func (s *RecordService) persist(ctx context.Context, action string, id int64, fields []string) error {
	saveErr := s.repo.Save(ctx)
	result := audit.ResultSuccess
	if saveErr != nil {
		result = audit.ResultFailure
	}

	auditErr := s.recorder.Record(ctx, audit.Event{
		Action:     action,
		TargetType: s.kind,
		TargetID:   strconv.FormatInt(id, 10),
		Result:     result,
		Details:    mutationDetails{Type: s.kind, Fields: fields},
	})
	if auditErr != nil {
		s.logger.Warn("audit event not recorded", "action", action, "id", id, "error", auditErr)
	}

	if saveErr != nil {
		return fmt.Errorf("save records: %w", saveErr)
	}
	return nil
}

func (s *RecordService) checkReferences(rec *record.Record) error {
	if s.kind != record.TypeFlight {
		return nil
	}
	return checkFlightReferences(s.repo, rec)
}

// checkFlightReferences requires the flight's client and airline to exist.
func checkFlightReferences(repo *storage.Repository, rec *record.Record) error {
	for _, ref := range []struct {
		field string
		kind  string
	}{
		{field: FieldClientID, kind: record.TypeClient},
		{field: FieldAirlineID, kind: record.TypeAirline},
	} {
		value, _ := rec.Get(ref.field)
		id, _ := value.Int64()
		if _, ok := repo.ReadTyped(id, ref.kind); !ok {
			return fmt.Errorf("%w: %w: %s with ID %d not found", ErrValidation, ErrMissingReference, ref.kind, id)
		}
	}
	return nil
}

func (s *RecordService) notFound(id int64) error {
	return fmt.Errorf("%w: %s with ID %d", storage.ErrNotFound, s.kind, id)
}

type mutationDetails struct {
	Type   string   `json:"type"`
	Fields []string `json:"fields,omitempty"`
}

func changedFields(patch *record.Record) []string {
	fields := make([]string, 0, patch.Len())
	for _, key := range patch.Keys() {
		if key == record.FieldID || key == record.FieldType {
			continue
		}
		fields = append(fields, key)
	}
	return fields
}
