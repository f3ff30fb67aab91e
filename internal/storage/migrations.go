package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ledger transactions and merchant rules",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					external_id TEXT UNIQUE NOT NULL,
					account_id INTEGER,
					transaction_at DATETIME NOT NULL,
					date TEXT NOT NULL,
					merchant_name TEXT,
					merchant_name_clean TEXT,
					amount REAL NOT NULL,
					currency TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT 'Uncategorized',
					subcategory TEXT,
					store_name TEXT,
					is_grocery BOOLEAN NOT NULL DEFAULT 0,
					is_restaurant BOOLEAN NOT NULL DEFAULT 0,
					is_food_related BOOLEAN NOT NULL DEFAULT 0,
					source TEXT NOT NULL DEFAULT 'sms',
					match_rule_id INTEGER,
					match_reason TEXT,
					match_confidence REAL NOT NULL DEFAULT 0,
					paired_transaction_id INTEGER,
					pairing_role TEXT,
					raw_data TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_at ON transactions(transaction_at)`,
				`CREATE INDEX idx_transactions_merchant_clean ON transactions(merchant_name_clean)`,
				`CREATE INDEX idx_transactions_pairing ON transactions(paired_transaction_id, pairing_role)`,

				`CREATE TABLE IF NOT EXISTS merchant_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_pattern TEXT NOT NULL,
					category TEXT NOT NULL,
					subcategory TEXT,
					store_name TEXT,
					is_grocery BOOLEAN NOT NULL DEFAULT 0,
					is_restaurant BOOLEAN NOT NULL DEFAULT 0,
					is_food_related BOOLEAN NOT NULL DEFAULT 0,
					priority INTEGER NOT NULL DEFAULT 0,
					confidence REAL NOT NULL DEFAULT 0.9,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_merchant_rules_priority ON merchant_rules(priority DESC)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Scheduled installment payments",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS scheduled_payments (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source TEXT NOT NULL,
					merchant TEXT NOT NULL,
					total_amount REAL NOT NULL,
					currency TEXT NOT NULL,
					installments_total INTEGER NOT NULL,
					installments_paid INTEGER NOT NULL DEFAULT 0,
					installment_amount REAL NOT NULL,
					purchase_date TEXT NOT NULL,
					next_due_date TEXT,
					final_due_date TEXT,
					linked_transaction_ids TEXT NOT NULL DEFAULT '[]',
					status TEXT NOT NULL DEFAULT 'active',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_scheduled_payments_open ON scheduled_payments(source, status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Raw events with recorded classifications for auditing",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS raw_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					external_id TEXT UNIQUE NOT NULL,
					sender TEXT NOT NULL,
					received_at DATETIME NOT NULL,
					body_preview TEXT,
					matched BOOLEAN NOT NULL DEFAULT 0,
					excluded BOOLEAN NOT NULL DEFAULT 0,
					intent TEXT,
					pattern_name TEXT,
					amount REAL,
					currency TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					should_create_transaction BOOLEAN NOT NULL DEFAULT 0,
					resolution_status TEXT NOT NULL DEFAULT 'pending',
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_raw_events_status ON raw_events(resolution_status)`,
				`CREATE INDEX idx_raw_events_received ON raw_events(received_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Seed starter merchant rules",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, store_name, is_grocery, is_food_related, priority, confidence)
					VALUES ('%CARREFOUR%', 'Groceries', 'Supermarket', 'Carrefour', 1, 1, 10, 0.95)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, store_name, is_grocery, is_food_related, priority, confidence)
					VALUES ('%LULU%', 'Groceries', 'Supermarket', 'Lulu Hypermarket', 1, 1, 10, 0.95)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, is_restaurant, is_food_related, priority, confidence)
					VALUES ('%TALABAT%', 'Dining', 'Delivery', 1, 1, 10, 0.9)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, is_restaurant, is_food_related, priority, confidence)
					VALUES ('%MCDONALD%', 'Dining', 'Fast Food', 1, 1, 10, 0.95)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, store_name, priority, confidence)
					VALUES ('%AMAZON%', 'Shopping', 'Online', 'Amazon', 5, 0.9)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, subcategory, priority, confidence)
					VALUES ('%CAREEM%', 'Transport', 'Ride Hailing', 5, 0.9)`,
				`INSERT INTO merchant_rules (merchant_pattern, category, priority, confidence)
					VALUES ('%ADNOC%', 'Transport', 5, 0.9)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
