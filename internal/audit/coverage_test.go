package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeidat/ledgerline/internal/audit"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/testutil"
)

func TestBuildCoverageReport_FullCapture(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(time.Hour)

	seedCapturedMessage(db, 1, -48.0, at)
	seedCapturedMessage(db, 2, -165.0, at.Add(time.Hour))

	report, err := audit.BuildCoverageReport(ctx, db.Storage, 30, 0.99)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalFinancial)
	assert.Equal(t, 2, report.TotalCaptured)
	assert.InDelta(t, 1.0, report.CaptureRate, 0.001)
	assert.True(t, report.Passed())
	assert.Empty(t, report.GapDays())

	require.Len(t, report.ByDay, 1)
	assert.Equal(t, "OK", report.ByDay[0].Status)
}

func TestBuildCoverageReport_DetectsGaps(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(time.Hour)

	seedCapturedMessage(db, 10, -48.0, at)
	seedMissedMessage(db, 11, -20.0, at.Add(time.Hour))
	seedMissedMessage(db, 12, -30.0, at.Add(2*time.Hour))

	report, err := audit.BuildCoverageReport(ctx, db.Storage, 30, 0.99)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalFinancial)
	assert.Equal(t, 1, report.TotalCaptured)
	assert.False(t, report.Passed())

	require.Len(t, report.ByDay, 1)
	day := report.ByDay[0]
	assert.Equal(t, "GAP", day.Status)
	assert.Equal(t, 2, day.Missing)
	assert.Len(t, report.GapDays(), 1)
}

func TestBuildCoverageReport_MinorGap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(time.Hour)

	seedCapturedMessage(db, 20, -48.0, at)
	seedMissedMessage(db, 21, -20.0, at.Add(time.Hour))

	report, err := audit.BuildCoverageReport(ctx, db.Storage, 30, 0.99)
	require.NoError(t, err)

	require.Len(t, report.ByDay, 1)
	assert.Equal(t, "MINOR_GAP", report.ByDay[0].Status)
	// A minor gap is not a GAP day, but it still drags the rate down.
	assert.Empty(t, report.GapDays())
	assert.False(t, report.Passed())
}

func TestBuildCoverageReport_EmptyWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)

	report, err := audit.BuildCoverageReport(context.Background(), db.Storage, 30, 0.99)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalFinancial)
	assert.InDelta(t, 1.0, report.CaptureRate, 0.001)
	assert.True(t, report.Passed())
}

func TestBuildCoverageReport_SenderAndPatternStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(time.Hour)

	seedCapturedMessage(db, 30, -48.0, at)
	seedCapturedMessage(db, 31, -99.0, at.Add(time.Hour))

	// A non-financial message from another sender.
	db.MustRecordRawEvent(&model.RawEvent{
		ExternalID: "sms:32",
		Sender:     "EmiratesNBD",
		ReceivedAt: at,
		Excluded:   true,
		Confidence: 0.95,
	})

	report, err := audit.BuildCoverageReport(ctx, db.Storage, 30, 0.99)
	require.NoError(t, err)

	require.Len(t, report.Senders, 2)
	bySender := make(map[string]float64)
	for _, s := range report.Senders {
		bySender[s.Sender] = s.CaptureRate
	}
	assert.InDelta(t, 1.0, bySender["AlRajhiBank"], 0.001)
	// No financial messages means a perfect capture rate by definition.
	assert.InDelta(t, 1.0, bySender["EmiratesNBD"], 0.001)

	require.Len(t, report.Patterns, 1)
	assert.Equal(t, "alrajhi_pos", report.Patterns[0].PatternName)
	assert.Equal(t, 2, report.Patterns[0].Count)
	assert.Equal(t, 2, report.Patterns[0].CreatedTx)
	assert.InDelta(t, 0.9, report.Patterns[0].AvgConfidence, 0.001)
}

func TestRenderCoverage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(time.Hour)

	seedCapturedMessage(db, 40, -48.0, at)
	seedMissedMessage(db, 41, -20.0, at.Add(time.Hour))
	seedMissedMessage(db, 42, -30.0, at.Add(2*time.Hour))

	report, err := audit.BuildCoverageReport(context.Background(), db.Storage, 30, 0.99)
	require.NoError(t, err)

	out := audit.RenderCoverage(report)
	assert.Contains(t, out, "Ingestion Coverage")
	assert.Contains(t, out, "below")
}
