package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultAuditListLimit = 1000

const auditColumns = `seq, id, action, subject_type, subject_id, result, details_json, prev_hash, event_hash, created_at`

type auditRepository struct {
	db *sql.DB
}

func (r *auditRepository) Append(ctx context.Context, event *AuditEvent) error {
	switch {
	case event == nil:
		return errors.New("append audit event: event is nil")
	case event.Action == "":
		return errors.New("append audit event: action is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.DetailsJSON == "" {
		event.DetailsJSON = "{}"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append audit event: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO audit_events(id, action, subject_type, subject_id, result, details_json, prev_hash, event_hash, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Action, event.SubjectType, event.SubjectID, event.Result,
		event.DetailsJSON, event.PrevHash, event.EventHash, formatJournalTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append audit event: read seq: %w", err)
	}
	if err := setMeta(ctx, tx, metaChainTip, event.EventHash); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append audit event: commit: %w", err)
	}
	event.Seq = seq
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if filter.Action != "" {
		add("action = ?", filter.Action)
	}
	if filter.SubjectType != "" {
		add("subject_type = ?", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		add("subject_id = ?", filter.SubjectID)
	}
	if filter.Since != nil {
		add("created_at >= ?", formatJournalTime(*filter.Since))
	}
	if filter.Until != nil {
		add("created_at <= ?", formatJournalTime(*filter.Until))
	}
	if filter.AfterSeq > 0 {
		add("seq > ?", filter.AfterSeq)
	}

	query := "SELECT " + auditColumns + " FROM audit_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	query += " ORDER BY seq LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

func (r *auditRepository) ChainTip(ctx context.Context) (string, error) {
	tip, err := getMeta(ctx, r.db, metaChainTip)
	if err != nil {
		return "", fmt.Errorf("read audit chain tip: %w", err)
	}
	return tip, nil
}

func (r *auditRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

func scanAuditEvent(rows *sql.Rows) (AuditEvent, error) {
	var (
		event   AuditEvent
		created string
	)
	err := rows.Scan(
		&event.Seq, &event.ID, &event.Action, &event.SubjectType, &event.SubjectID,
		&event.Result, &event.DetailsJSON, &event.PrevHash, &event.EventHash, &created,
	)
	if err != nil {
		return event, fmt.Errorf("scan row: %w", err)
	}
	event.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return event, fmt.Errorf("event %d: bad timestamp %q: %w", event.Seq, created, err)
	}
	return event, nil
}

// Journal timestamps are stored as fixed-width UTC text so that string
// comparison in SQL matches time order.
func formatJournalTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
