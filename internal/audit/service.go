package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amanthanvi/tripbook/internal/storage"
)

// Verify walks the journal this many events at a time.
const verifyPageSize = 500

// Service appends events as a SHA-256 hash chain. Each event hash covers the
// previous hash and the canonical form of the event, so editing, reordering
// or dropping a stored event breaks verification.
type Service struct {
	repo storage.AuditRepository

	mu  sync.Mutex
	tip string
}

func NewService(ctx context.Context, repo storage.AuditRepository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("new audit service: repository is nil")
	}
	tip, err := repo.ChainTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("new audit service: %w", err)
	}
	return &Service{repo: repo, tip: tip}, nil
}

func (s *Service) Record(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Action) == "" {
		return errors.New("record audit event: action is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Result == "" {
		event.Result = ResultSuccess
	}
	details, err := canonicalDetails(event.Details)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	stored := &storage.AuditEvent{
		Action:      event.Action,
		SubjectType: event.TargetType,
		SubjectID:   event.TargetID,
		Result:      event.Result,
		DetailsJSON: string(details),
		CreatedAt:   event.Timestamp.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored.PrevHash = s.tip
	stored.EventHash, err = eventHash(*stored)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	if err := s.repo.Append(ctx, stored); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	s.tip = stored.EventHash
	return nil
}

// Verify recomputes every hash in chain order. A broken chain is reported in
// the result; the error return is for journal read failures only.
func (s *Service) Verify(ctx context.Context) (*VerifyResult, error) {
	result := &VerifyResult{Valid: true}
	var after int64
	for {
		page, err := s.repo.List(ctx, storage.AuditFilter{AfterSeq: after, Limit: verifyPageSize})
		if err != nil {
			return nil, fmt.Errorf("verify audit chain: %w", err)
		}
		for _, event := range page {
			result.EventCount++
			after = event.Seq
			if !result.Valid {
				continue
			}
			if problem := checkLink(event, result.ChainTip); problem != "" {
				result.Valid = false
				result.Error = problem
				continue
			}
			result.ChainTip = event.EventHash
		}
		if len(page) < verifyPageSize {
			break
		}
	}
	if !result.Valid {
		return result, nil
	}

	stored, err := s.repo.ChainTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify audit chain: %w", err)
	}
	if stored != result.ChainTip {
		result.Valid = false
		result.Error = "hash mismatch at chain tip"
	}
	return result, nil
}

func checkLink(event storage.AuditEvent, prev string) string {
	if event.PrevHash != prev {
		return "hash mismatch at event " + strconv.FormatInt(event.Seq, 10) + ": previous hash does not link"
	}
	want, err := eventHash(event)
	if err != nil {
		return fmt.Sprintf("event %d: %v", event.Seq, err)
	}
	if event.EventHash != want {
		return "hash mismatch at event " + strconv.FormatInt(event.Seq, 10)
	}
	return ""
}

func (s *Service) List(ctx context.Context, filter Filter) ([]RecordedEvent, error) {
	events, err := s.repo.List(ctx, storage.AuditFilter{
		Action:      filter.Action,
		SubjectType: filter.TargetType,
		SubjectID:   filter.TargetID,
		Since:       filter.Since,
		Until:       filter.Until,
		Limit:       filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	out := make([]RecordedEvent, len(events))
	for i, event := range events {
		out[i] = RecordedEvent{
			Seq:        event.Seq,
			ID:         event.ID,
			Timestamp:  event.CreatedAt,
			Action:     event.Action,
			TargetType: event.SubjectType,
			TargetID:   event.SubjectID,
			Result:     event.Result,
			Details:    json.RawMessage(event.DetailsJSON),
			PrevHash:   event.PrevHash,
			EventHash:  event.EventHash,
		}
	}
	return out, nil
}

// hashedFields is what an event hash covers besides the previous hash.
type hashedFields struct {
	Timestamp  string          `json:"ts"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Result     string          `json:"result"`
	Details    json.RawMessage `json:"details"`
}

func eventHash(event storage.AuditEvent) (string, error) {
	details := json.RawMessage(event.DetailsJSON)
	if !json.Valid(details) {
		return "", errors.New("stored details are not valid JSON")
	}
	payload, err := canonicalJSON(hashedFields{
		Timestamp:  event.CreatedAt.UTC().Format(time.RFC3339Nano),
		Action:     event.Action,
		TargetType: event.SubjectType,
		TargetID:   event.SubjectID,
		Result:     event.Result,
		Details:    details,
	})
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(event.PrevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
