// Package bnpl tracks buy-now-pay-later installment plans: it detects
// purchase confirmations from provider messages and reconciles later card
// debits against the resulting schedules.
package bnpl

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/messages"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
)

// Providers send confirmations in one of two textual forms.
var (
	confirmedPurchaseRe = regexp.MustCompile(`(?i)Your\s+([A-Z]{3})\s+([\d,.]+)\s+purchase\s+at\s+(.+?)\s+is\s+confirmed`)
	confirmedOrderRe    = regexp.MustCompile(`(?i)Order\s+of\s+([\d,.]+)\s+([A-Z]{3})\s+from\s+(.+?)\s+is\s+confirmed`)
)

// Settlement amounts drift slightly from the computed installment due to
// rounding at the provider, so matching allows a relative tolerance.
const DefaultAmountTolerance = 0.01

// Provider describes one installment provider.
type Provider struct {
	Key          string
	MerchantHint string // substring identifying the provider's card debits
	Senders      []string
	Installments int
	IntervalDays int
}

// DefaultProviders returns the built-in provider set.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Key:          "tabby",
			MerchantHint: "tabby",
			Senders:      []string{"tabby", "AD-TABBY", "TABBY-AD"},
			Installments: 4,
			IntervalDays: 14,
		},
	}
}

// MessageSource provides candidate messages for purchase detection.
type MessageSource interface {
	Messages(ctx context.Context, senders []string, since time.Time) ([]model.RawMessage, error)
}

// PurchaseStats summarizes one purchase-detection pass.
type PurchaseStats struct {
	Created    int
	Duplicates int
}

// SettlementStats summarizes one settlement-matching pass.
type SettlementStats struct {
	Matched   int
	Unmatched int
	Completed int
}

// Engine runs both halves of installment tracking.
type Engine struct {
	store     service.Storage
	source    MessageSource
	timezone  *time.Location
	providers []Provider
	tolerance decimal.Decimal
}

// New creates an engine over the given providers. A nil timezone means
// business dates are computed in UTC; a non-positive amountTolerance
// falls back to DefaultAmountTolerance.
func New(store service.Storage, source MessageSource, providers []Provider, timezone *time.Location, amountTolerance float64) *Engine {
	if timezone == nil {
		timezone = time.UTC
	}
	if amountTolerance <= 0 {
		amountTolerance = DefaultAmountTolerance
	}
	return &Engine{
		store:     store,
		source:    source,
		timezone:  timezone,
		providers: providers,
		tolerance: decimal.NewFromFloat(amountTolerance),
	}
}

// ImportPurchases scans provider messages for purchase confirmations and
// creates installment schedules. The first installment is charged at
// purchase time, so paid starts at 1. Re-runs are deduplicated on
// {merchant, total, purchase date}.
func (e *Engine) ImportPurchases(ctx context.Context, daysBack int) (*PurchaseStats, error) {
	stats := &PurchaseStats{}
	since := time.Now().UTC().AddDate(0, 0, -daysBack)

	for _, provider := range e.providers {
		msgs, err := e.source.Messages(ctx, provider.Senders, since)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s messages: %w", provider.Key, err)
		}

		for _, msg := range msgs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			body := messages.Body(msg.Text, msg.AttributedBody)
			purchase, ok := parseConfirmation(body)
			if !ok {
				continue
			}

			sp := e.buildSchedule(provider, purchase, msg.SentAt)
			id, created, err := e.store.CreateScheduledPayment(ctx, sp)
			if err != nil {
				return nil, err
			}
			if !created {
				stats.Duplicates++
				continue
			}

			stats.Created++
			common.LogInfo("Created installment schedule", common.Fields{
				"id":          id,
				"provider":    provider.Key,
				"merchant":    sp.Merchant,
				"total":       sp.TotalAmount,
				"installment": sp.InstallmentAmount,
			})
		}
	}

	return stats, nil
}

// MatchSettlements reconciles unlinked provider card debits against open
// schedules. A debit matches the open schedule with the same currency, an
// installment amount within tolerance, and the nearest upcoming due date.
// Already-linked transaction ids are excluded up front, which makes the
// pass idempotent.
func (e *Engine) MatchSettlements(ctx context.Context) (*SettlementStats, error) {
	stats := &SettlementStats{}

	linked, err := e.store.LinkedSettlementIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, provider := range e.providers {
		debits, err := e.store.ProviderDebits(ctx, provider.MerchantHint)
		if err != nil {
			return nil, err
		}

		for _, debit := range debits {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if _, already := linked[debit.ID]; already {
				continue
			}

			// Schedules are re-read per debit so paid counters advanced by
			// earlier matches in this pass are visible.
			schedules, err := e.store.GetOpenSchedules(ctx, provider.Key)
			if err != nil {
				return nil, err
			}

			sp := matchSchedule(schedules, debit, e.tolerance)
			if sp == nil {
				stats.Unmatched++
				continue
			}

			newPaid := sp.InstallmentsPaid + 1
			status := model.ScheduleActive
			var nextDue *string
			if newPaid >= sp.InstallmentsTotal {
				status = model.ScheduleCompleted
				stats.Completed++
			} else {
				due := debit.TransactionAt.In(e.timezone).
					AddDate(0, 0, provider.IntervalDays).Format("2006-01-02")
				nextDue = &due
			}

			if err := e.store.UpdateSchedulePayment(ctx, sp.ID, newPaid, status, nextDue, debit.ID); err != nil {
				return nil, err
			}
			linked[debit.ID] = struct{}{}
			stats.Matched++

			common.LogInfo("Matched installment settlement", common.Fields{
				"schedule":    sp.ID,
				"transaction": debit.ID,
				"merchant":    sp.Merchant,
				"paid":        fmt.Sprintf("%d/%d", newPaid, sp.InstallmentsTotal),
			})
		}
	}

	return stats, nil
}

// purchase is one parsed confirmation message.
type purchase struct {
	currency string
	merchant string
	total    decimal.Decimal
}

// parseConfirmation recognizes both confirmation forms:
//
//	"Your CUR AMOUNT purchase at MERCHANT is confirmed"
//	"Order of AMOUNT CUR from MERCHANT is confirmed"
func parseConfirmation(body string) (purchase, bool) {
	if m := confirmedPurchaseRe.FindStringSubmatch(body); m != nil {
		total, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			return purchase{}, false
		}
		return purchase{
			currency: strings.ToUpper(m[1]),
			total:    total,
			merchant: strings.TrimSpace(m[3]),
		}, true
	}

	if m := confirmedOrderRe.FindStringSubmatch(body); m != nil {
		total, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			return purchase{}, false
		}
		return purchase{
			currency: strings.ToUpper(m[2]),
			total:    total,
			merchant: strings.TrimSpace(m[3]),
		}, true
	}

	return purchase{}, false
}

func (e *Engine) buildSchedule(provider Provider, p purchase, sentAt time.Time) *model.ScheduledPayment {
	installment := p.total.DivRound(decimal.NewFromInt(int64(provider.Installments)), 2)

	purchaseDay := sentAt.In(e.timezone)
	nextDue := purchaseDay.AddDate(0, 0, provider.IntervalDays).Format("2006-01-02")
	finalDue := purchaseDay.AddDate(0, 0, provider.IntervalDays*(provider.Installments-1)).Format("2006-01-02")

	return &model.ScheduledPayment{
		Source:            provider.Key,
		Merchant:          p.merchant,
		Currency:          p.currency,
		TotalAmount:       p.total.InexactFloat64(),
		InstallmentsTotal: provider.Installments,
		InstallmentsPaid:  1, // the first installment is charged at purchase
		InstallmentAmount: installment.InexactFloat64(),
		PurchaseDate:      purchaseDay.Format("2006-01-02"),
		NextDueDate:       &nextDue,
		FinalDueDate:      finalDue,
		Status:            model.ScheduleActive,
	}
}

// matchSchedule picks the first open schedule compatible with the debit.
// Schedules arrive ordered by nearest due date, so the first hit is the
// best one.
func matchSchedule(schedules []model.ScheduledPayment, debit model.Transaction, tolerance decimal.Decimal) *model.ScheduledPayment {
	amount := decimal.NewFromFloat(debit.Amount).Abs()

	for i := range schedules {
		sp := &schedules[i]
		if sp.InstallmentsPaid >= sp.InstallmentsTotal {
			continue
		}
		if sp.Currency != debit.Currency {
			continue
		}
		installment := decimal.NewFromFloat(sp.InstallmentAmount)
		if amount.Sub(installment).Abs().LessThan(installment.Mul(tolerance)) {
			return sp
		}
	}

	return nil
}
