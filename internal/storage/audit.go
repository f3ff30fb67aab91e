package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/obeidat/ledgerline/internal/service"
)

// CoverageByDay compares, per day, how many financial messages were seen
// against how many produced ledger rows. Only events recorded as expected
// to post a row count as financial.
func (s *SQLiteStorage) CoverageByDay(ctx context.Context, days int) ([]service.CoverageDay, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	coverage, err := queryCoverageDays(ctx, s.db, `
		SELECT date(e.received_at) AS day,
		       COUNT(*) AS financial,
		       SUM(EXISTS (SELECT 1 FROM transactions t WHERE t.external_id = e.external_id)) AS captured
		FROM raw_events e
		WHERE e.should_create_transaction = 1
		  AND e.received_at >= ?
		GROUP BY day
		ORDER BY day DESC`, windowStart(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}

	for i := range coverage {
		switch {
		case coverage[i].Missing == 0:
			coverage[i].Status = "OK"
		case coverage[i].Missing == 1:
			coverage[i].Status = "MINOR_GAP"
		default:
			coverage[i].Status = "GAP"
		}
	}

	return coverage, nil
}

// queryCoverageDays runs a day/financial/captured aggregation over either
// the live connection or a replay transaction.
func queryCoverageDays(ctx context.Context, q queryable, query string, args ...any) ([]service.CoverageDay, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []service.CoverageDay
	for rows.Next() {
		var day service.CoverageDay
		if err := rows.Scan(&day.Date, &day.FinancialSMS, &day.WithTransaction); err != nil {
			return nil, fmt.Errorf("failed to scan coverage day: %w", err)
		}
		day.Missing = day.FinancialSMS - day.WithTransaction
		days = append(days, day)
	}

	return days, rows.Err()
}

// PatternPerformance summarizes match volume per classifier pattern over
// the trailing window.
func (s *SQLiteStorage) PatternPerformance(ctx context.Context, days int) ([]service.PatternStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.pattern_name,
		       COUNT(*),
		       SUM(EXISTS (SELECT 1 FROM transactions t WHERE t.external_id = e.external_id)),
		       AVG(e.confidence)
		FROM raw_events e
		WHERE e.matched = 1
		  AND e.pattern_name IS NOT NULL
		  AND e.received_at >= ?
		GROUP BY e.pattern_name
		ORDER BY COUNT(*) DESC`, windowStart(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern performance: %w", err)
	}
	defer rows.Close()

	var stats []service.PatternStat
	for rows.Next() {
		var stat service.PatternStat
		if err := rows.Scan(&stat.PatternName, &stat.Count, &stat.CreatedTx, &stat.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan pattern stat: %w", err)
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// SenderBreakdown summarizes per-sender volume and capture rate over the
// trailing window.
func (s *SQLiteStorage) SenderBreakdown(ctx context.Context, days int) ([]service.SenderStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.sender,
		       COUNT(*),
		       SUM(e.should_create_transaction),
		       SUM(e.should_create_transaction
		           AND EXISTS (SELECT 1 FROM transactions t WHERE t.external_id = e.external_id))
		FROM raw_events e
		WHERE e.received_at >= ?
		GROUP BY e.sender
		ORDER BY COUNT(*) DESC`, windowStart(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query sender breakdown: %w", err)
	}
	defer rows.Close()

	var stats []service.SenderStat
	for rows.Next() {
		var stat service.SenderStat
		if err := rows.Scan(&stat.Sender, &stat.Total, &stat.Financial, &stat.Captured); err != nil {
			return nil, fmt.Errorf("failed to scan sender stat: %w", err)
		}
		if stat.Financial > 0 {
			stat.CaptureRate = float64(stat.Captured) / float64(stat.Financial)
		} else {
			stat.CaptureRate = 1
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// ledgerSnapshotQuery aggregates the message-sourced ledger rows in the
// trailing window. Both pairing legs count: the replay comparison is
// against raw-event expectations, which also include both legs.
const ledgerSnapshotQuery = `
	SELECT COUNT(*),
	       COUNT(DISTINCT date),
	       COALESCE(MIN(date), ''),
	       COALESCE(MAX(date), ''),
	       COALESCE(SUM(ABS(amount)), 0),
	       COALESCE(SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)
	FROM transactions
	WHERE external_id LIKE 'sms:%'
	  AND transaction_at >= ?`

// LedgerSnapshot aggregates message-sourced ledger rows inside the transaction.
func (t *sqliteTx) LedgerSnapshot(ctx context.Context, days int) (*service.LedgerSnapshot, error) {
	return scanSnapshot(t.tx.QueryRowContext(ctx, ledgerSnapshotQuery, windowStart(days)))
}

// DeleteLedgerWindow deletes the message-sourced ledger rows in the window.
// Only meaningful inside a transaction the caller intends to roll back, or
// to commit after a passed replay.
func (t *sqliteTx) DeleteLedgerWindow(ctx context.Context, days int) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE external_id LIKE 'sms:%'
		  AND transaction_at >= ?`, windowStart(days))
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger window: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return deleted, nil
}

// ExpectedFromRawEvents recomputes the expected ledger aggregate from the
// classifications recorded at ingestion time, without re-reading the
// message store.
func (t *sqliteTx) ExpectedFromRawEvents(ctx context.Context, days int) (*service.LedgerSnapshot, error) {
	return scanSnapshot(t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT date(received_at)),
		       COALESCE(MIN(date(received_at)), ''),
		       COALESCE(MAX(date(received_at)), ''),
		       COALESCE(SUM(ABS(amount)), 0),
		       COALESCE(SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)
		FROM raw_events
		WHERE should_create_transaction = 1
		  AND received_at >= ?`, windowStart(days)))
}

// MissingByDay lists, per day, recorded-financial events with no matching
// ledger row. Used to narrow down where a failed replay diverged.
func (t *sqliteTx) MissingByDay(ctx context.Context, days, limit int) ([]service.CoverageDay, error) {
	missing, err := queryCoverageDays(ctx, t.tx, `
		SELECT date(e.received_at) AS day,
		       COUNT(*) AS financial,
		       SUM(EXISTS (SELECT 1 FROM transactions t WHERE t.external_id = e.external_id)) AS captured
		FROM raw_events e
		WHERE e.should_create_transaction = 1
		  AND e.received_at >= ?
		GROUP BY day
		HAVING financial > captured
		ORDER BY financial - captured DESC
		LIMIT ?`, windowStart(days), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing by day: %w", err)
	}

	for i := range missing {
		missing[i].Status = "GAP"
	}

	return missing, nil
}

func scanSnapshot(row *sql.Row) (*service.LedgerSnapshot, error) {
	var snap service.LedgerSnapshot
	err := row.Scan(
		&snap.Count, &snap.DaysCovered, &snap.Earliest, &snap.Latest,
		&snap.TotalAbsolute, &snap.TotalExpenses, &snap.TotalIncome,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger snapshot: %w", err)
	}
	return &snap, nil
}
