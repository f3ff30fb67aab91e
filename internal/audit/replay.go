// Package audit contains the two ingestion auditors: the coverage report
// and the deterministic replay test.
package audit

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/obeidat/ledgerline/internal/cli"
	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/service"
)

// Replayed totals must agree to the cent; counts must agree exactly.
const totalTolerance = 0.01

// ReplayResult is the outcome of one replay test.
type ReplayResult struct {
	Before      *service.LedgerSnapshot
	Expected    *service.LedgerSnapshot
	MissingDays []service.CoverageDay
	Deleted     int64
	Days        int
	CountMatch  bool
	TotalMatch  bool
	Committed   bool
}

// Passed reports whether the ledger window matched the recorded
// classifications exactly.
func (r *ReplayResult) Passed() bool {
	return r.CountMatch && r.TotalMatch
}

// Replayer verifies that ingestion is deterministic: the ledger rows in a
// trailing window must be reproducible from the classifications recorded
// at ingestion time.
type Replayer struct {
	store service.Storage
	days  int
}

// NewReplayer creates a replayer over a trailing window of days.
func NewReplayer(store service.Storage, days int) *Replayer {
	if days <= 0 {
		days = 30
	}
	return &Replayer{store: store, days: days}
}

// Run executes the replay inside a single database transaction: snapshot
// the window, delete it, recompute the expectation from recorded raw
// events, compare. The transaction always rolls back unless the test
// passed AND commit was requested; a failed test never commits.
func (r *Replayer) Run(ctx context.Context, commit bool) (*ReplayResult, error) {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	before, err := tx.LedgerSnapshot(ctx, r.days)
	if err != nil {
		return nil, err
	}

	deleted, err := tx.DeleteLedgerWindow(ctx, r.days)
	if err != nil {
		return nil, err
	}

	expected, err := tx.ExpectedFromRawEvents(ctx, r.days)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{
		Before:     before,
		Expected:   expected,
		Deleted:    deleted,
		Days:       r.days,
		CountMatch: before.Count == expected.Count,
		TotalMatch: math.Abs(before.TotalAbsolute-expected.TotalAbsolute) < totalTolerance,
	}

	if !result.Passed() {
		// Read the divergence detail before the transaction goes away.
		missing, missErr := tx.MissingByDay(ctx, r.days, 5)
		if missErr != nil {
			return nil, missErr
		}
		result.MissingDays = missing
	}

	if result.Passed() && commit {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit replay: %w", err)
		}
		committed = true
		result.Committed = true
	}

	common.LogInfo("Replay test finished", common.Fields{
		"passed":    result.Passed(),
		"count":     before.Count,
		"expected":  expected.Count,
		"committed": result.Committed,
	})

	return result, nil
}

// RenderReplay formats a replay result for the terminal.
func RenderReplay(r *ReplayResult) string {
	var b strings.Builder

	mark := func(ok bool) string {
		if ok {
			return cli.FormatSuccess("MATCH")
		}
		return cli.FormatError("MISMATCH")
	}

	fmt.Fprintf(&b, "Window: last %d days (%s to %s)\n", r.Days, r.Before.Earliest, r.Before.Latest)
	fmt.Fprintf(&b, "Ledger rows deleted for replay: %d\n\n", r.Deleted)
	fmt.Fprintf(&b, "Count:  %d vs %d  %s\n", r.Before.Count, r.Expected.Count, mark(r.CountMatch))
	fmt.Fprintf(&b, "Total:  %.2f vs %.2f  %s\n", r.Before.TotalAbsolute, r.Expected.TotalAbsolute, mark(r.TotalMatch))
	fmt.Fprintf(&b, "Expenses: %.2f   Income: %.2f   Days covered: %d\n",
		r.Before.TotalExpenses, r.Before.TotalIncome, r.Before.DaysCovered)

	b.WriteString("\n")
	if r.Passed() {
		b.WriteString(cli.FormatSuccess("REPLAY TEST PASSED: ingestion is deterministic"))
		if r.Committed {
			b.WriteString("\n" + cli.SubtleStyle.Render("changes committed"))
		} else {
			b.WriteString("\n" + cli.SubtleStyle.Render("rolled back (dry-run)"))
		}
	} else {
		b.WriteString(cli.FormatError("REPLAY TEST FAILED: ledger diverges from recorded classifications"))
		b.WriteString("\n" + cli.SubtleStyle.Render("rolled back"))
		if len(r.MissingDays) > 0 {
			b.WriteString("\n\nTop days with missing rows:\n")
			for _, day := range r.MissingDays {
				fmt.Fprintf(&b, "  %s: %d missing\n", day.Date, day.Missing)
			}
		}
	}

	return cli.RenderBox("Replay Test", b.String())
}
