package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/model"
)

const scheduleColumns = `id, source, merchant, total_amount, currency,
	installments_total, installments_paid, installment_amount,
	purchase_date, next_due_date, final_due_date,
	linked_transaction_ids, status, created_at, updated_at`

// CreateScheduledPayment inserts an installment plan. Creation is guarded
// against duplicates on {source, merchant, total amount, purchase date}:
// a re-run over the same confirmation message returns the existing plan's
// id with created=false.
func (s *SQLiteStorage) CreateScheduledPayment(ctx context.Context, sp *model.ScheduledPayment) (int64, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}
	if err := validateSchedule(sp); err != nil {
		return 0, false, err
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM scheduled_payments
		WHERE source = ? AND LOWER(merchant) = LOWER(?) AND total_amount = ? AND purchase_date = ?`,
		sp.Source, sp.Merchant, sp.TotalAmount, sp.PurchaseDate,
	).Scan(&existingID)
	if err == nil {
		return existingID, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to check for existing schedule: %w", err)
	}

	linked, err := json.Marshal(linkedOrEmpty(sp.LinkedTransactionIDs))
	if err != nil {
		return 0, false, fmt.Errorf("failed to marshal linked ids: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_payments
			(source, merchant, total_amount, currency, installments_total, installments_paid,
			 installment_amount, purchase_date, next_due_date, final_due_date,
			 linked_transaction_ids, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.Source,
		sp.Merchant,
		sp.TotalAmount,
		sp.Currency,
		sp.InstallmentsTotal,
		sp.InstallmentsPaid,
		sp.InstallmentAmount,
		sp.PurchaseDate,
		sp.NextDueDate,
		nullable(sp.FinalDueDate),
		string(linked),
		string(defaultStatus(sp.Status)),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create scheduled payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get insert id: %w", err)
	}
	sp.ID = id

	return id, true, nil
}

// GetScheduledPayment fetches one plan by id.
func (s *SQLiteStorage) GetScheduledPayment(ctx context.Context, id int64) (*model.ScheduledPayment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_payments WHERE id = ?`, id)

	sp, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: scheduled payment %d", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scheduled payment: %w", err)
	}
	return sp, nil
}

// GetOpenSchedules returns active plans for one provider, nearest due
// date first so the settlement matcher prefers the most imminent plan.
func (s *SQLiteStorage) GetOpenSchedules(ctx context.Context, source string) ([]model.ScheduledPayment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_payments
		WHERE source = ? AND status = 'active'
		ORDER BY next_due_date IS NULL, next_due_date ASC, id ASC`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query open schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.ScheduledPayment
	for rows.Next() {
		sp, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *sp)
	}

	return schedules, rows.Err()
}

// LinkedSettlementIDs returns every transaction id already attached to any
// schedule. The settlement matcher excludes these up front, which is what
// makes repeated matching passes idempotent.
func (s *SQLiteStorage) LinkedSettlementIDs(ctx context.Context) (map[int64]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT linked_transaction_ids FROM scheduled_payments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked ids: %w", err)
	}
	defer rows.Close()

	linked := make(map[int64]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan linked ids: %w", err)
		}
		var ids []int64
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("failed to parse linked ids %q: %w", raw, err)
		}
		for _, id := range ids {
			linked[id] = struct{}{}
		}
	}

	return linked, rows.Err()
}

// ProviderDebits returns posted debit rows whose merchant matches the
// provider hint, oldest first. These are the settlement candidates.
func (s *SQLiteStorage) ProviderDebits(ctx context.Context, merchantHint string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchantHint, "merchantHint"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE amount < 0
		  AND UPPER(COALESCE(merchant_name_clean, merchant_name, '')) LIKE UPPER(?)
		  AND (pairing_role IS NULL OR pairing_role != 'fx_metadata')
		ORDER BY transaction_at ASC`, "%"+merchantHint+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query provider debits: %w", err)
	}
	defer rows.Close()

	var debits []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider debit: %w", err)
		}
		debits = append(debits, *txn)
	}

	return debits, rows.Err()
}

// UpdateSchedulePayment records one settled installment: the paid counter,
// the advanced (or cleared) due date, the status, and the settlement's
// transaction id appended to the linked list. The append is a no-op if the
// id is already linked.
func (s *SQLiteStorage) UpdateSchedulePayment(ctx context.Context, scheduleID int64, installmentsPaid int, status model.ScheduleStatus, nextDueDate *string, linkTransactionID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	sp, err := s.GetScheduledPayment(ctx, scheduleID)
	if err != nil {
		return err
	}

	ids := sp.LinkedTransactionIDs
	if !slices.Contains(ids, linkTransactionID) {
		ids = append(ids, linkTransactionID)
	}
	linked, err := json.Marshal(linkedOrEmpty(ids))
	if err != nil {
		return fmt.Errorf("failed to marshal linked ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE scheduled_payments
		SET installments_paid = ?,
		    status = ?,
		    next_due_date = ?,
		    linked_transaction_ids = ?,
		    updated_at = ?
		WHERE id = ?`,
		installmentsPaid,
		string(status),
		nextDueDate,
		string(linked),
		time.Now().UTC().Format(time.RFC3339),
		scheduleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled payment: %w", err)
	}

	return nil
}

func scanSchedule(row rowScanner) (*model.ScheduledPayment, error) {
	var (
		sp           model.ScheduledPayment
		finalDueDate sql.NullString
		linkedRaw    string
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&sp.ID, &sp.Source, &sp.Merchant, &sp.TotalAmount, &sp.Currency,
		&sp.InstallmentsTotal, &sp.InstallmentsPaid, &sp.InstallmentAmount,
		&sp.PurchaseDate, &sp.NextDueDate, &finalDueDate,
		&linkedRaw, &sp.Status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sp.FinalDueDate = finalDueDate.String
	if err := json.Unmarshal([]byte(linkedRaw), &sp.LinkedTransactionIDs); err != nil {
		return nil, fmt.Errorf("failed to parse linked ids %q: %w", linkedRaw, err)
	}
	if sp.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if sp.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &sp, nil
}

// linkedOrEmpty keeps the stored JSON an array, never null.
func linkedOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func defaultStatus(status model.ScheduleStatus) model.ScheduleStatus {
	if status == "" {
		return model.ScheduleActive
	}
	return status
}
