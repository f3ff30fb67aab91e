package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
)

const rawEventColumns = `id, external_id, sender, received_at, body_preview,
	matched, excluded, intent, pattern_name, amount, currency, confidence,
	should_create_transaction, resolution_status, resolved_at, created_at`

// RecordRawEvent writes the ingestion audit record for one message. Like
// the ledger insert it is idempotent on external_id; a re-run never
// overwrites the recorded classification.
func (s *SQLiteStorage) RecordRawEvent(ctx context.Context, ev *model.RawEvent) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(ev.ExternalID, "externalID"); err != nil {
		return false, err
	}
	if err := validateString(ev.Sender, "sender"); err != nil {
		return false, err
	}

	status := ev.ResolutionStatus
	if status == "" {
		status = model.ResolutionPending
	}

	// created_at is written explicitly so its format matches the RFC3339
	// cutoff strings the resolver compares against.
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO raw_events
			(external_id, sender, received_at, body_preview, matched, excluded,
			 intent, pattern_name, amount, currency, confidence,
			 should_create_transaction, resolution_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ExternalID,
		ev.Sender,
		ev.ReceivedAt.UTC().Format(time.RFC3339),
		nullable(ev.BodyPreview),
		ev.Matched,
		ev.Excluded,
		nullable(string(ev.Intent)),
		nullable(ev.PatternName),
		ev.Amount,
		nullable(ev.Currency),
		ev.Confidence,
		ev.ShouldCreateTransaction,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record raw event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get insert id: %w", err)
	}
	ev.ID = id

	return true, nil
}

// GetRawEventByExternalID fetches one audit record by its idempotency key.
func (s *SQLiteStorage) GetRawEventByExternalID(ctx context.Context, externalID string) (*model.RawEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+rawEventColumns+` FROM raw_events WHERE external_id = ?`, externalID)

	ev, err := scanRawEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: raw event %s", common.ErrNotFound, externalID)
		}
		return nil, fmt.Errorf("failed to get raw event: %w", err)
	}
	return ev, nil
}

// ResolveRawEvents performs one sweep of the pending queue. Transitions
// are forward-only and the sweep is idempotent: every update targets only
// pending rows, so terminal rows are never touched again.
//
//	pending -> linked   a ledger row with the same external_id exists
//	pending -> ignored  the event was never expected to post a row
//	pending -> failed   expected a row, none appeared within staleness
func (s *SQLiteStorage) ResolveRawEvents(ctx context.Context, staleness time.Duration) (*service.ResolveStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)
	cutoff := now.Add(-staleness).Format(time.RFC3339)
	stats := &service.ResolveStats{}

	result, err := s.db.ExecContext(ctx, `
		UPDATE raw_events
		SET resolution_status = 'linked', resolved_at = ?
		WHERE resolution_status = 'pending'
		  AND EXISTS (SELECT 1 FROM transactions t WHERE t.external_id = raw_events.external_id)`,
		nowStr)
	if err != nil {
		return nil, fmt.Errorf("failed to link raw events: %w", err)
	}
	if stats.Linked, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	result, err = s.db.ExecContext(ctx, `
		UPDATE raw_events
		SET resolution_status = 'ignored', resolved_at = ?
		WHERE resolution_status = 'pending'
		  AND should_create_transaction = 0`,
		nowStr)
	if err != nil {
		return nil, fmt.Errorf("failed to ignore raw events: %w", err)
	}
	if stats.Ignored, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	result, err = s.db.ExecContext(ctx, `
		UPDATE raw_events
		SET resolution_status = 'failed', resolved_at = ?
		WHERE resolution_status = 'pending'
		  AND should_create_transaction = 1
		  AND created_at < ?`,
		nowStr, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to mark stale raw events: %w", err)
	}
	if stats.Failed, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return stats, nil
}

// StalePending reports how many events have sat pending longer than the
// given age, and the age of the oldest one.
func (s *SQLiteStorage) StalePending(ctx context.Context, olderThan time.Duration) (int, *time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return 0, nil, err
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	var (
		count  int
		oldest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM raw_events
		WHERE resolution_status = 'pending' AND created_at < ?`, cutoff,
	).Scan(&count, &oldest)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count stale pending events: %w", err)
	}

	if !oldest.Valid {
		return count, nil, nil
	}
	t, err := parseTimestamp(oldest.String)
	if err != nil {
		return 0, nil, err
	}
	return count, &t, nil
}

// RawEventHealth summarizes the audit trail per resolution status.
func (s *SQLiteStorage) RawEventHealth(ctx context.Context) ([]service.StatusCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT resolution_status, COUNT(*), MIN(received_at), MAX(received_at)
		FROM raw_events
		GROUP BY resolution_status
		ORDER BY resolution_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw event health: %w", err)
	}
	defer rows.Close()

	var health []service.StatusCount
	for rows.Next() {
		var (
			sc     service.StatusCount
			oldest sql.NullString
			newest sql.NullString
		)
		if err := rows.Scan(&sc.Status, &sc.Count, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan raw event health: %w", err)
		}
		if oldest.Valid {
			t, err := parseTimestamp(oldest.String)
			if err != nil {
				return nil, err
			}
			sc.Oldest = &t
		}
		if newest.Valid {
			t, err := parseTimestamp(newest.String)
			if err != nil {
				return nil, err
			}
			sc.Newest = &t
		}
		health = append(health, sc)
	}

	return health, rows.Err()
}

func scanRawEvent(row rowScanner) (*model.RawEvent, error) {
	var (
		ev          model.RawEvent
		receivedAt  string
		createdAt   string
		bodyPreview sql.NullString
		intent      sql.NullString
		patternName sql.NullString
		currency    sql.NullString
		resolvedAt  sql.NullString
	)

	err := row.Scan(
		&ev.ID, &ev.ExternalID, &ev.Sender, &receivedAt, &bodyPreview,
		&ev.Matched, &ev.Excluded, &intent, &patternName, &ev.Amount,
		&currency, &ev.Confidence, &ev.ShouldCreateTransaction,
		&ev.ResolutionStatus, &resolvedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	ev.BodyPreview = bodyPreview.String
	ev.Intent = model.Intent(intent.String)
	ev.PatternName = patternName.String
	ev.Currency = currency.String

	if ev.ReceivedAt, err = parseTimestamp(receivedAt); err != nil {
		return nil, err
	}
	if ev.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t, err := parseTimestamp(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		ev.ResolvedAt = &t
	}

	return &ev, nil
}
