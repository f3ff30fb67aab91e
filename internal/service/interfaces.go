// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/obeidat/ledgerline/internal/model"
)

// PairQuery describes the search for the opposite leg of an FX pair:
// same sender, same cleaned merchant, opposite pattern suffix, unpaired,
// within Tolerance of At. The closest-in-time unpaired row wins.
type PairQuery struct {
	At            time.Time
	Sender        string
	MerchantClean string
	PatternSuffix string // "_confirmed" or "_notification"
	Tolerance     time.Duration
}

// ResolveStats counts raw-event transitions performed by one resolver sweep.
type ResolveStats struct {
	Linked  int64
	Ignored int64
	Failed  int64
}

// Total returns the number of events resolved by the sweep.
func (s ResolveStats) Total() int64 {
	return s.Linked + s.Ignored + s.Failed
}

// StatusCount is one row of the raw-event health summary.
type StatusCount struct {
	Oldest *time.Time
	Newest *time.Time
	Status model.ResolutionStatus
	Count  int
}

// CoverageDay compares financial messages to resulting ledger rows for one day.
type CoverageDay struct {
	Date            string
	Status          string // OK, MINOR_GAP, GAP
	FinancialSMS    int
	WithTransaction int
	Missing         int
}

// PatternStat summarizes match volume for one classifier pattern.
type PatternStat struct {
	PatternName   string
	Count         int
	CreatedTx     int
	AvgConfidence float64
}

// SenderStat summarizes capture rate for one sender.
type SenderStat struct {
	Sender      string
	Total       int
	Financial   int
	Captured    int
	CaptureRate float64
}

// LedgerSnapshot aggregates the sms-sourced ledger rows in a window,
// used by the replay auditor for before/after comparison.
type LedgerSnapshot struct {
	Earliest      string
	Latest        string
	Count         int
	DaysCovered   int
	TotalAbsolute float64
	TotalExpenses float64
	TotalIncome   float64
}

// AccountActivity aggregates posted amounts per ledger account.
type AccountActivity struct {
	AccountID *int64
	Count     int
	Spent     float64
	Received  float64
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Ledger operations
	InsertTransaction(ctx context.Context, txn *model.Transaction) (int64, bool, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	ApplyMerchantRule(ctx context.Context, transactionID int64, merchant string) (*model.MerchantRule, error)
	ExpenseTotal(ctx context.Context, start, end time.Time) (float64, error)
	AccountSummary(ctx context.Context) ([]AccountActivity, error)

	// Merchant rules
	SaveMerchantRule(ctx context.Context, rule *model.MerchantRule) (int64, error)
	GetMerchantRules(ctx context.Context) ([]model.MerchantRule, error)

	// FX pairing
	FindPairCandidate(ctx context.Context, q PairQuery) (*model.Transaction, error)
	LinkFXPair(ctx context.Context, primaryID, metadataID int64, fxAmount float64, fxCurrency string) (bool, error)

	// Scheduled payments
	CreateScheduledPayment(ctx context.Context, sp *model.ScheduledPayment) (int64, bool, error)
	GetScheduledPayment(ctx context.Context, id int64) (*model.ScheduledPayment, error)
	GetOpenSchedules(ctx context.Context, source string) ([]model.ScheduledPayment, error)
	LinkedSettlementIDs(ctx context.Context) (map[int64]struct{}, error)
	ProviderDebits(ctx context.Context, merchantHint string) ([]model.Transaction, error)
	UpdateSchedulePayment(ctx context.Context, scheduleID int64, installmentsPaid int, status model.ScheduleStatus, nextDueDate *string, linkTransactionID int64) error

	// Raw events
	RecordRawEvent(ctx context.Context, ev *model.RawEvent) (bool, error)
	GetRawEventByExternalID(ctx context.Context, externalID string) (*model.RawEvent, error)
	ResolveRawEvents(ctx context.Context, staleness time.Duration) (*ResolveStats, error)
	StalePending(ctx context.Context, olderThan time.Duration) (int, *time.Time, error)
	RawEventHealth(ctx context.Context) ([]StatusCount, error)

	// Audit queries
	CoverageByDay(ctx context.Context, days int) ([]CoverageDay, error)
	PatternPerformance(ctx context.Context, days int) ([]PatternStat, error)
	SenderBreakdown(ctx context.Context, days int) ([]SenderStat, error)

	BeginTx(ctx context.Context) (Tx, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is a database transaction scoped to the replay auditor's needs:
// snapshot, delete, recompute, and always the choice to roll back.
type Tx interface {
	LedgerSnapshot(ctx context.Context, days int) (*LedgerSnapshot, error)
	DeleteLedgerWindow(ctx context.Context, days int) (int64, error)
	ExpectedFromRawEvents(ctx context.Context, days int) (*LedgerSnapshot, error)
	MissingByDay(ctx context.Context, days, limit int) ([]CoverageDay, error)
	Commit() error
	Rollback() error
}
