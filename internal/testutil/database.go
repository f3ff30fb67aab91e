// Package testutil provides test utilities: in-memory databases with
// migrations applied and message fixtures for the ingestion pipeline.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
	"github.com/obeidat/ledgerline/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database with migrations
// applied and cleanup registered.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustInsertTransaction posts a ledger row or fails the test. Returns the
// row id and whether the insert actually created a row.
func (db *TestDB) MustInsertTransaction(txn *model.Transaction) (int64, bool) {
	db.t.Helper()

	id, created, err := db.Storage.InsertTransaction(context.Background(), txn)
	if err != nil {
		db.t.Fatalf("failed to insert transaction: %v", err)
	}
	return id, created
}

// MustRecordRawEvent writes an audit record or fails the test.
func (db *TestDB) MustRecordRawEvent(ev *model.RawEvent) bool {
	db.t.Helper()

	created, err := db.Storage.RecordRawEvent(context.Background(), ev)
	if err != nil {
		db.t.Fatalf("failed to record raw event: %v", err)
	}
	return created
}

// Message builds a RawMessage fixture for importer tests.
func Message(rowID int64, sender, text string, sentAt time.Time) model.RawMessage {
	return model.RawMessage{
		RowID:  rowID,
		Sender: sender,
		Text:   text,
		SentAt: sentAt,
	}
}
