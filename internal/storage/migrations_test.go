package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeidat/ledgerline/internal/storage"
	"github.com/obeidat/ledgerline/internal/testutil"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// SetupTestDB already migrated; a second run must be a no-op.
	require.NoError(t, db.Storage.Migrate(context.Background()))
}

func TestMigrate_SeedsMerchantRules(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rules, err := db.Storage.GetMerchantRules(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	patterns := make(map[string]bool)
	for _, rule := range rules {
		patterns[rule.MerchantPattern] = true
		assert.True(t, rule.IsActive)
	}
	assert.True(t, patterns["%CARREFOUR%"])
	assert.True(t, patterns["%TALABAT%"])
	assert.True(t, patterns["%ADNOC%"])
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))

	id, created, err := store.InsertTransaction(ctx, testTransaction("sms:1", -48.0))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Greater(t, id, int64(0))
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := storage.NewSQLiteStorage("")
	require.Error(t, err)
}
