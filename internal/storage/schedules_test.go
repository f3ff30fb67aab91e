package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/testutil"
)

func stringRef(s string) *string { return &s }

func testSchedule(merchant string, total float64) *model.ScheduledPayment {
	return &model.ScheduledPayment{
		Source:            "tabby",
		Merchant:          merchant,
		TotalAmount:       total,
		Currency:          "AED",
		InstallmentsTotal: 4,
		InstallmentsPaid:  1,
		InstallmentAmount: total / 4,
		PurchaseDate:      "2026-08-10",
		NextDueDate:       stringRef("2026-08-24"),
		FinalDueDate:      "2026-09-21",
	}
}

func TestCreateScheduledPayment_DuplicateGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	id1, created, err := db.Storage.CreateScheduledPayment(ctx, testSchedule("IKEA", 999.0))
	require.NoError(t, err)
	assert.True(t, created)

	// Same purchase again, merchant case differs.
	dup := testSchedule("ikea", 999.0)
	id2, created, err := db.Storage.CreateScheduledPayment(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	// Different total is a different purchase.
	_, created, err = db.Storage.CreateScheduledPayment(ctx, testSchedule("IKEA", 500.0))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateScheduledPayment_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.ScheduledPayment)
	}{
		{"missing source", func(sp *model.ScheduledPayment) { sp.Source = "" }},
		{"missing merchant", func(sp *model.ScheduledPayment) { sp.Merchant = "" }},
		{"zero installments", func(sp *model.ScheduledPayment) { sp.InstallmentsTotal = 0 }},
		{"zero total", func(sp *model.ScheduledPayment) { sp.TotalAmount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := testSchedule("IKEA", 999.0)
			tt.mutate(sp)
			_, _, err := db.Storage.CreateScheduledPayment(ctx, sp)
			require.Error(t, err)
		})
	}
}

func TestGetScheduledPayment_Roundtrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	id, _, err := db.Storage.CreateScheduledPayment(ctx, testSchedule("IKEA", 999.0))
	require.NoError(t, err)

	sp, err := db.Storage.GetScheduledPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tabby", sp.Source)
	assert.Equal(t, "IKEA", sp.Merchant)
	assert.InDelta(t, 999.0, sp.TotalAmount, 0.001)
	assert.Equal(t, 4, sp.InstallmentsTotal)
	assert.Equal(t, 1, sp.InstallmentsPaid)
	assert.Equal(t, model.ScheduleActive, sp.Status)
	require.NotNil(t, sp.NextDueDate)
	assert.Equal(t, "2026-08-24", *sp.NextDueDate)
	assert.Empty(t, sp.LinkedTransactionIDs)
	assert.False(t, sp.Completed())
}

func TestGetOpenSchedules_Ordering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	later := testSchedule("NOON", 400.0)
	later.NextDueDate = stringRef("2026-09-15")
	_, _, err := db.Storage.CreateScheduledPayment(ctx, later)
	require.NoError(t, err)

	sooner := testSchedule("IKEA", 999.0)
	sooner.NextDueDate = stringRef("2026-08-24")
	_, _, err = db.Storage.CreateScheduledPayment(ctx, sooner)
	require.NoError(t, err)

	exhausted := testSchedule("SHEIN", 200.0)
	exhausted.NextDueDate = nil
	_, _, err = db.Storage.CreateScheduledPayment(ctx, exhausted)
	require.NoError(t, err)

	completed := testSchedule("ZARA", 300.0)
	completed.Status = model.ScheduleCompleted
	_, _, err = db.Storage.CreateScheduledPayment(ctx, completed)
	require.NoError(t, err)

	open, err := db.Storage.GetOpenSchedules(ctx, "tabby")
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "IKEA", open[0].Merchant)
	assert.Equal(t, "NOON", open[1].Merchant)
	assert.Equal(t, "SHEIN", open[2].Merchant)
}

func TestUpdateSchedulePayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	id, _, err := db.Storage.CreateScheduledPayment(ctx, testSchedule("IKEA", 999.0))
	require.NoError(t, err)

	err = db.Storage.UpdateSchedulePayment(ctx, id, 2, model.ScheduleActive, stringRef("2026-09-07"), 101)
	require.NoError(t, err)

	sp, err := db.Storage.GetScheduledPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sp.InstallmentsPaid)
	assert.Equal(t, []int64{101}, sp.LinkedTransactionIDs)
	require.NotNil(t, sp.NextDueDate)
	assert.Equal(t, "2026-09-07", *sp.NextDueDate)

	// Linking the same settlement again must not duplicate the id.
	err = db.Storage.UpdateSchedulePayment(ctx, id, 2, model.ScheduleActive, stringRef("2026-09-07"), 101)
	require.NoError(t, err)
	sp, err = db.Storage.GetScheduledPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, sp.LinkedTransactionIDs)

	// Final installment clears the due date and completes the plan.
	err = db.Storage.UpdateSchedulePayment(ctx, id, 4, model.ScheduleCompleted, nil, 102)
	require.NoError(t, err)
	sp, err = db.Storage.GetScheduledPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleCompleted, sp.Status)
	assert.Nil(t, sp.NextDueDate)
	assert.Equal(t, []int64{101, 102}, sp.LinkedTransactionIDs)
	assert.True(t, sp.Completed())
}

func TestLinkedSettlementIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	id1, _, err := db.Storage.CreateScheduledPayment(ctx, testSchedule("IKEA", 999.0))
	require.NoError(t, err)
	id2, _, err := db.Storage.CreateScheduledPayment(ctx, testSchedule("NOON", 400.0))
	require.NoError(t, err)

	linked, err := db.Storage.LinkedSettlementIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, linked)

	require.NoError(t, db.Storage.UpdateSchedulePayment(ctx, id1, 2, model.ScheduleActive, nil, 101))
	require.NoError(t, db.Storage.UpdateSchedulePayment(ctx, id2, 2, model.ScheduleActive, nil, 202))

	linked, err = db.Storage.LinkedSettlementIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
	assert.Contains(t, linked, int64(101))
	assert.Contains(t, linked, int64(202))
}

func TestProviderDebits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	older := testTransaction("sms:700", -249.75)
	older.MerchantName = "TABBY FZ LLC"
	older.MerchantNameClean = "TABBY FZ LLC"
	older.Currency = "AED"
	older.TransactionAt = time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	db.MustInsertTransaction(older)

	newer := testTransaction("sms:701", -249.75)
	newer.MerchantName = "Tabby"
	newer.MerchantNameClean = "Tabby"
	newer.Currency = "AED"
	newer.TransactionAt = time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	db.MustInsertTransaction(newer)

	// Unrelated debit and a credit must not appear.
	db.MustInsertTransaction(testTransaction("sms:702", -30.0))
	refund := testTransaction("sms:703", 249.75)
	refund.MerchantName = "TABBY FZ LLC"
	refund.MerchantNameClean = "TABBY FZ LLC"
	db.MustInsertTransaction(refund)

	debits, err := db.Storage.ProviderDebits(ctx, "tabby")
	require.NoError(t, err)
	require.Len(t, debits, 2)
	assert.Equal(t, "sms:700", debits[0].ExternalID)
	assert.Equal(t, "sms:701", debits[1].ExternalID)
}
