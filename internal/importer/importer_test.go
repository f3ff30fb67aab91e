package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeidat/ledgerline/internal/classify"
	"github.com/obeidat/ledgerline/internal/importer"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/testutil"
)

type fakeSource struct {
	msgs []model.RawMessage
	err  error
}

func (f *fakeSource) Messages(_ context.Context, _ []string, _ time.Time) ([]model.RawMessage, error) {
	return f.msgs, f.err
}

func newImporter(t *testing.T, db *testutil.TestDB, source *fakeSource, opts importer.Options) *importer.Importer {
	t.Helper()

	classifier, err := classify.NewClassifier(classify.DefaultConfig())
	require.NoError(t, err)
	accounts := classify.NewAccountResolver(classify.DefaultConfig())

	return importer.New(db.Storage, classifier, accounts, source, opts)
}

func TestRun_MixedOutcomes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(1, "AlRajhiBank", "PoS\nBy:8308;mada\nAmount:SAR 48\nAt:KAKAT", at),
		testutil.Message(2, "EmiratesNBD", "OTP: 123456 is your verification code", at),
		testutil.Message(3, "EmiratesNBD", "تم رفض معاملة بقيمة 500.00AED على بطاقتك", at),
		testutil.Message(4, "CAREEM", "your order 12345 has been cancelled and AED 52.00 has been refunded to your wallet", at),
		testutil.Message(5, "AlRajhiBank", "hi", at),
		testutil.Message(6, "RandomShop", "You spent AED 100.00 at our store today, thanks!", at),
	}}

	stats, err := newImporter(t, db, source, importer.Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.Declined)
	assert.Equal(t, 1, stats.NoAccount)
	assert.Equal(t, 2, stats.NoMatch)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.ByIntent[model.IntentExpense])

	ctx := context.Background()

	txn, err := db.Storage.GetTransactionByExternalID(ctx, "sms:1")
	require.NoError(t, err)
	assert.Equal(t, -48.0, txn.Amount)
	assert.Equal(t, "SAR", txn.Currency)
	require.NotNil(t, txn.AccountID)
	assert.Equal(t, int64(1), *txn.AccountID)

	// The declined and no-account messages still left audit records.
	ev, err := db.Storage.GetRawEventByExternalID(ctx, "sms:3")
	require.NoError(t, err)
	assert.True(t, ev.Matched)
	assert.False(t, ev.ShouldCreateTransaction)

	ev, err = db.Storage.GetRawEventByExternalID(ctx, "sms:4")
	require.NoError(t, err)
	assert.True(t, ev.Matched)
	assert.False(t, ev.ShouldCreateTransaction)

	// The posted message's audit record expects a ledger row.
	ev, err = db.Storage.GetRawEventByExternalID(ctx, "sms:1")
	require.NoError(t, err)
	assert.True(t, ev.ShouldCreateTransaction)
}

func TestRun_RerunOnlyDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(10, "AlRajhiBank", "PoS\nBy:8308;mada\nAmount:SAR 48\nAt:KAKAT", at),
	}}
	imp := newImporter(t, db, source, importer.Options{})

	stats, err := imp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	stats, err = imp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestRun_PairsFXLegs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(20, "Tasheel Fin",
			"Purchase of USD 100.00 at Steam Games on your card ending 4821", at.Add(-3*time.Hour)),
		testutil.Message(21, "Tasheel Fin",
			"Your purchase at Steam Games for SAR 375.00 is confirmed", at),
	}}

	stats, err := newImporter(t, db, source, importer.Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imported)

	notification, err := db.Storage.GetTransactionByExternalID(ctx, "sms:20")
	require.NoError(t, err)
	assert.Equal(t, model.PairingRoleFXMetadata, notification.PairingRole)
	assert.Equal(t, "USD", notification.Currency)

	confirmed, err := db.Storage.GetTransactionByExternalID(ctx, "sms:21")
	require.NoError(t, err)
	assert.Equal(t, model.PairingRolePrimary, confirmed.PairingRole)
	assert.Equal(t, "SAR", confirmed.Currency)
	assert.Equal(t, -375.0, confirmed.Amount)
	require.NotNil(t, confirmed.PairedTransactionID)
	assert.Equal(t, notification.ID, *confirmed.PairedTransactionID)
	assert.Contains(t, confirmed.RawData, `"fx_currency":"USD"`)
	assert.Contains(t, confirmed.RawData, `"fx_amount":100`)
}

func TestRun_PairsWhenConfirmationArrivesFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(30, "Tasheel Fin",
			"Your purchase at Steam Games for SAR 375.00 is confirmed", at),
		testutil.Message(31, "Tasheel Fin",
			"Purchase of USD 100.00 at Steam Games on your card ending 4821", at.Add(time.Hour)),
	}}

	_, err := newImporter(t, db, source, importer.Options{}).Run(ctx)
	require.NoError(t, err)

	confirmed, err := db.Storage.GetTransactionByExternalID(ctx, "sms:30")
	require.NoError(t, err)
	assert.Equal(t, model.PairingRolePrimary, confirmed.PairingRole)

	notification, err := db.Storage.GetTransactionByExternalID(ctx, "sms:31")
	require.NoError(t, err)
	assert.Equal(t, model.PairingRoleFXMetadata, notification.PairingRole)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(40, "AlRajhiBank", "PoS\nBy:8308;mada\nAmount:SAR 48\nAt:KAKAT", at),
	}}

	stats, err := newImporter(t, db, source, importer.Options{DryRun: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	_, err = db.Storage.GetTransactionByExternalID(ctx, "sms:40")
	require.Error(t, err)
	_, err = db.Storage.GetRawEventByExternalID(ctx, "sms:40")
	require.Error(t, err)
}

func TestRun_BodyPreviewKeepsValidUTF8(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	// An Arabic body long enough that a byte-indexed cut would land inside
	// a two-byte rune.
	body := strings.Repeat("سجل النظام ملاحظة عامة ", 8)
	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(60, "EmiratesNBD", body, at),
	}}

	_, err := newImporter(t, db, source, importer.Options{}).Run(ctx)
	require.NoError(t, err)

	ev, err := db.Storage.GetRawEventByExternalID(ctx, "sms:60")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ev.BodyPreview), 120)
	assert.True(t, utf8.ValidString(ev.BodyPreview))
}

func TestRun_AppliesMerchantRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(50, "EmiratesNBD",
			"تمت عملية شراء بقيمة AED 120.00 لدى CARREFOUR MALL ,Dubai باستخدام بطاقة خصم", at),
	}}

	_, err := newImporter(t, db, source, importer.Options{}).Run(ctx)
	require.NoError(t, err)

	txn, err := db.Storage.GetTransactionByExternalID(ctx, "sms:50")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", txn.Category)
	assert.Equal(t, "Carrefour", txn.StoreName)
	assert.True(t, txn.IsGrocery)
}

func TestRun_SourceError(t *testing.T) {
	db := testutil.SetupTestDB(t)

	source := &fakeSource{err: errors.New("store locked")}
	_, err := newImporter(t, db, source, importer.Options{}).Run(context.Background())
	require.Error(t, err)
}

func TestRun_Cancellation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Now().UTC().Add(-24 * time.Hour)

	source := &fakeSource{msgs: []model.RawMessage{
		testutil.Message(60, "AlRajhiBank", "PoS\nBy:8308;mada\nAmount:SAR 48\nAt:KAKAT", at),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newImporter(t, db, source, importer.Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
