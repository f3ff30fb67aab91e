package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/obeidat/ledgerline/internal/cli"
	"github.com/obeidat/ledgerline/internal/service"
)

// DefaultCaptureThreshold is the capture rate below which the coverage
// report fails.
const DefaultCaptureThreshold = 0.99

// CoverageReport summarizes how completely financial messages became
// ledger rows over a trailing window.
type CoverageReport struct {
	ByDay          []service.CoverageDay
	Patterns       []service.PatternStat
	Senders        []service.SenderStat
	Days           int
	TotalFinancial int
	TotalCaptured  int
	CaptureRate    float64
	Threshold      float64
}

// Passed reports whether the overall capture rate meets the threshold.
func (r *CoverageReport) Passed() bool {
	return r.CaptureRate >= r.Threshold
}

// GapDays returns the days with more than a single missing row.
func (r *CoverageReport) GapDays() []service.CoverageDay {
	var gaps []service.CoverageDay
	for _, day := range r.ByDay {
		if day.Status == "GAP" {
			gaps = append(gaps, day)
		}
	}
	return gaps
}

// BuildCoverageReport assembles the report from the audit queries.
func BuildCoverageReport(ctx context.Context, store service.Storage, days int, threshold float64) (*CoverageReport, error) {
	if days <= 0 {
		days = 30
	}
	if threshold <= 0 {
		threshold = DefaultCaptureThreshold
	}

	byDay, err := store.CoverageByDay(ctx, days)
	if err != nil {
		return nil, err
	}
	patterns, err := store.PatternPerformance(ctx, days)
	if err != nil {
		return nil, err
	}
	senders, err := store.SenderBreakdown(ctx, days)
	if err != nil {
		return nil, err
	}

	report := &CoverageReport{
		ByDay:     byDay,
		Patterns:  patterns,
		Senders:   senders,
		Days:      days,
		Threshold: threshold,
	}
	for _, day := range byDay {
		report.TotalFinancial += day.FinancialSMS
		report.TotalCaptured += day.WithTransaction
	}
	if report.TotalFinancial > 0 {
		report.CaptureRate = float64(report.TotalCaptured) / float64(report.TotalFinancial)
	} else {
		report.CaptureRate = 1
	}

	return report, nil
}

// RenderCoverage formats the report for the terminal.
func RenderCoverage(r *CoverageReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Window: last %d days\n", r.Days)
	fmt.Fprintf(&b, "Financial messages: %d   Captured: %d   Rate: %.2f%%\n\n",
		r.TotalFinancial, r.TotalCaptured, r.CaptureRate*100)

	if gaps := r.GapDays(); len(gaps) > 0 {
		b.WriteString(cli.FormatWarning(fmt.Sprintf("%d day(s) with gaps:", len(gaps))) + "\n")
		for _, day := range gaps {
			fmt.Fprintf(&b, "  %s: %d of %d missing\n", day.Date, day.Missing, day.FinancialSMS)
		}
		b.WriteString("\n")
	}

	if len(r.Senders) > 0 {
		b.WriteString("By sender:\n")
		for _, s := range r.Senders {
			fmt.Fprintf(&b, "  %-16s %4d messages, %3d financial, capture %.1f%%\n",
				s.Sender, s.Total, s.Financial, s.CaptureRate*100)
		}
		b.WriteString("\n")
	}

	if len(r.Patterns) > 0 {
		b.WriteString("Top patterns:\n")
		limit := len(r.Patterns)
		if limit > 10 {
			limit = 10
		}
		for _, p := range r.Patterns[:limit] {
			fmt.Fprintf(&b, "  %-28s %4d matched, %4d posted, avg conf %.2f\n",
				p.PatternName, p.Count, p.CreatedTx, p.AvgConfidence)
		}
		b.WriteString("\n")
	}

	if r.Passed() {
		b.WriteString(cli.FormatSuccess(fmt.Sprintf("capture rate meets %.0f%% threshold", r.Threshold*100)))
	} else {
		b.WriteString(cli.FormatError(fmt.Sprintf("capture rate below %.0f%% threshold", r.Threshold*100)))
	}

	return cli.RenderBox("Ingestion Coverage", b.String())
}
