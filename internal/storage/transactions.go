package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
)

// likeEscaper neutralizes LIKE metacharacters in caller-supplied fragments.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const transactionColumns = `id, external_id, account_id, transaction_at, date,
	merchant_name, merchant_name_clean, amount, currency, category, subcategory,
	store_name, is_grocery, is_restaurant, is_food_related, source,
	match_rule_id, match_reason, match_confidence,
	paired_transaction_id, pairing_role, raw_data, created_at`

// InsertTransaction posts one ledger row. The insert is idempotent on
// external_id: a conflicting row is skipped, not updated, and the second
// return value reports whether a row was actually created. On a skip the
// returned id is the existing row's id.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (int64, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}
	if err := validateTransaction(txn); err != nil {
		return 0, false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(external_id, account_id, transaction_at, date, merchant_name, merchant_name_clean,
			 amount, currency, category, subcategory, store_name, source, pairing_role, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		txn.ExternalID,
		txn.AccountID,
		txn.TransactionAt.UTC().Format(time.RFC3339),
		txn.Date,
		nullable(txn.MerchantName),
		nullable(txn.MerchantNameClean),
		txn.Amount,
		txn.Currency,
		defaultString(txn.Category, "Uncategorized"),
		nullable(txn.Subcategory),
		nullable(txn.StoreName),
		defaultString(txn.Source, "sms"),
		nullable(string(txn.PairingRole)),
		defaultString(txn.RawData, "{}"),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		existing, getErr := s.GetTransactionByExternalID(ctx, txn.ExternalID)
		if getErr != nil {
			return 0, false, getErr
		}
		return existing.ID, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get insert id: %w", err)
	}
	txn.ID = id

	return id, true, nil
}

// GetTransactionByExternalID fetches one transaction by its idempotency key.
func (s *SQLiteStorage) GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE external_id = ?`, externalID)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, externalID)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ApplyMerchantRule categorizes one transaction using the highest-priority
// active rule whose pattern matches the merchant (case-insensitive SQL
// wildcard match). Returns the applied rule, or nil when no rule matches.
func (s *SQLiteStorage) ApplyMerchantRule(ctx context.Context, transactionID int64, merchant string) (*model.MerchantRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, merchant_pattern, category, subcategory, store_name,
		       is_grocery, is_restaurant, is_food_related, priority, confidence, is_active, created_at
		FROM merchant_rules
		WHERE is_active = 1 AND UPPER(?) LIKE UPPER(merchant_pattern)
		ORDER BY priority DESC
		LIMIT 1`, merchant)

	rule, err := scanMerchantRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find merchant rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?,
		    subcategory = COALESCE(?, subcategory),
		    store_name = COALESCE(?, store_name),
		    is_grocery = ?,
		    is_restaurant = ?,
		    is_food_related = ?,
		    match_rule_id = ?,
		    match_reason = ?,
		    match_confidence = ?
		WHERE id = ?`,
		rule.Category,
		nullable(rule.Subcategory),
		nullable(rule.StoreName),
		rule.IsGrocery,
		rule.IsRestaurant,
		rule.IsFoodRelated,
		rule.ID,
		fmt.Sprintf("rule:%d", rule.ID),
		rule.Confidence,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply merchant rule: %w", err)
	}

	return rule, nil
}

// ExpenseTotal sums negative amounts in [start, end). Metadata-only FX legs
// are excluded: their economic effect lives on the primary leg.
func (s *SQLiteStorage) ExpenseTotal(ctx context.Context, start, end time.Time) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if !start.Before(end) {
		return 0, ErrInvalidDateRange
	}

	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE amount < 0
		  AND (pairing_role IS NULL OR pairing_role != 'fx_metadata')
		  AND transaction_at >= ? AND transaction_at < ?`,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum expenses: %w", err)
	}

	return total, nil
}

// AccountSummary aggregates posted amounts per ledger account, FX metadata
// legs excluded.
func (s *SQLiteStorage) AccountSummary(ctx context.Context) ([]service.AccountActivity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE pairing_role IS NULL OR pairing_role != 'fx_metadata'
		GROUP BY account_id
		ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query account summary: %w", err)
	}
	defer rows.Close()

	var summary []service.AccountActivity
	for rows.Next() {
		var activity service.AccountActivity
		if err := rows.Scan(&activity.AccountID, &activity.Count, &activity.Spent, &activity.Received); err != nil {
			return nil, fmt.Errorf("failed to scan account summary: %w", err)
		}
		summary = append(summary, activity)
	}

	return summary, rows.Err()
}

// FindPairCandidate searches for the opposite leg of an FX pair: same
// sender, same cleaned merchant, pattern name carrying the opposite
// suffix, not yet paired, within the tolerance window. The row closest in
// time wins. Returns nil when nothing qualifies.
func (s *SQLiteStorage) FindPairCandidate(ctx context.Context, q service.PairQuery) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(q.PatternSuffix, "patternSuffix"); err != nil {
		return nil, err
	}

	at := q.At.UTC().Format(time.RFC3339)

	// The suffix is matched literally: LIKE treats _ as a wildcard, so an
	// unescaped "_confirmed" would also accept names like "autoconfirmed".
	suffix := likeEscaper.Replace(q.PatternSuffix)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE json_extract(raw_data, '$.sender') = ?
		  AND LOWER(merchant_name_clean) = LOWER(?)
		  AND json_extract(raw_data, '$.pattern') LIKE ? ESCAPE '\'
		  AND paired_transaction_id IS NULL
		  AND pairing_role IS NULL
		  AND ABS(unixepoch(transaction_at) - unixepoch(?)) < ?
		ORDER BY ABS(unixepoch(transaction_at) - unixepoch(?)) ASC
		LIMIT 1`,
		q.Sender, q.MerchantClean, "%"+suffix, at, int64(q.Tolerance.Seconds()), at)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pair candidate: %w", err)
	}
	return txn, nil
}

// LinkFXPair marks the confirmed leg as primary and the notification leg
// as fx_metadata, folding the notification's foreign-currency amount into
// the primary's audit payload. Both updates are guarded by pairing_role IS
// NULL so concurrent pairing attempts cannot double-claim a leg; the
// return value reports whether this call won the race.
func (s *SQLiteStorage) LinkFXPair(ctx context.Context, primaryID, metadataID int64, fxAmount float64, fxCurrency string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET paired_transaction_id = ?, pairing_role = 'fx_metadata'
		WHERE id = ? AND pairing_role IS NULL AND paired_transaction_id IS NULL`,
		primaryID, metadataID)
	if err != nil {
		return false, fmt.Errorf("failed to mark fx metadata leg: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET paired_transaction_id = ?,
		    pairing_role = 'primary',
		    raw_data = json_set(raw_data,
		        '$.fx_amount', ?,
		        '$.fx_currency', ?,
		        '$.fx_paired_id', ?)
		WHERE id = ? AND pairing_role IS NULL`,
		metadataID, fxAmount, fxCurrency, metadataID, primaryID)
	if err != nil {
		return false, fmt.Errorf("failed to mark primary leg: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit fx pairing: %w", err)
	}
	return true, nil
}

// SaveMerchantRule inserts a categorization rule.
func (s *SQLiteStorage) SaveMerchantRule(ctx context.Context, rule *model.MerchantRule) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := rule.Validate(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_rules
			(merchant_pattern, category, subcategory, store_name,
			 is_grocery, is_restaurant, is_food_related, priority, confidence, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.MerchantPattern,
		rule.Category,
		nullable(rule.Subcategory),
		nullable(rule.StoreName),
		rule.IsGrocery,
		rule.IsRestaurant,
		rule.IsFoodRelated,
		rule.Priority,
		rule.Confidence,
		rule.IsActive,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save merchant rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	rule.ID = id
	return id, nil
}

// GetMerchantRules returns all active rules, highest priority first.
func (s *SQLiteStorage) GetMerchantRules(ctx context.Context) ([]model.MerchantRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_pattern, category, subcategory, store_name,
		       is_grocery, is_restaurant, is_food_related, priority, confidence, is_active, created_at
		FROM merchant_rules
		WHERE is_active = 1
		ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant rules: %w", err)
	}
	defer rows.Close()

	var rules []model.MerchantRule
	for rows.Next() {
		rule, err := scanMerchantRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// BuildRawPayload serializes the audit payload for a transaction row.
func BuildRawPayload(p model.RawPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal raw payload: %w", err)
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		transactionAt string
		createdAt     string
		merchantName  sql.NullString
		merchantClean sql.NullString
		subcategory   sql.NullString
		storeName     sql.NullString
		matchReason   sql.NullString
		pairingRole   sql.NullString
	)

	err := row.Scan(
		&txn.ID, &txn.ExternalID, &txn.AccountID, &transactionAt, &txn.Date,
		&merchantName, &merchantClean, &txn.Amount, &txn.Currency, &txn.Category,
		&subcategory, &storeName, &txn.IsGrocery, &txn.IsRestaurant, &txn.IsFoodRelated,
		&txn.Source, &txn.MatchRuleID, &matchReason, &txn.MatchConfidence,
		&txn.PairedTransactionID, &pairingRole, &txn.RawData, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	txn.MerchantName = merchantName.String
	txn.MerchantNameClean = merchantClean.String
	txn.Subcategory = subcategory.String
	txn.StoreName = storeName.String
	txn.MatchReason = matchReason.String
	txn.PairingRole = model.PairingRole(pairingRole.String)

	if txn.TransactionAt, err = parseTimestamp(transactionAt); err != nil {
		return nil, err
	}
	if txn.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}

	return &txn, nil
}

func scanMerchantRule(row rowScanner) (*model.MerchantRule, error) {
	var (
		rule        model.MerchantRule
		subcategory sql.NullString
		storeName   sql.NullString
		createdAt   string
	)

	err := row.Scan(
		&rule.ID, &rule.MerchantPattern, &rule.Category, &subcategory, &storeName,
		&rule.IsGrocery, &rule.IsRestaurant, &rule.IsFoodRelated,
		&rule.Priority, &rule.Confidence, &rule.IsActive, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Subcategory = subcategory.String
	rule.StoreName = storeName.String
	if rule.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}

	return &rule, nil
}

// parseTimestamp accepts both RFC3339 (our writes) and SQLite's
// CURRENT_TIMESTAMP format.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", s)
}

// nullable maps "" to NULL so optional text columns stay NULL in the schema.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
