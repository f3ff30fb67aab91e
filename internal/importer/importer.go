// Package importer runs the message-to-ledger ingestion pipeline: read
// candidate messages, classify, record the audit event, post idempotent
// ledger rows, pair FX legs, and categorize.
package importer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"

	"github.com/obeidat/ledgerline/internal/classify"
	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/messages"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
	"github.com/obeidat/ledgerline/internal/storage"
)

// Messages shorter than this carry no classifiable content.
const minBodyLength = 15

const bodyPreviewLength = 120

// MessageSource provides candidate messages for ingestion.
type MessageSource interface {
	Messages(ctx context.Context, senders []string, since time.Time) ([]model.RawMessage, error)
}

// Options configures one import run.
type Options struct {
	Timezone         *time.Location
	DaysBack         int
	PairingTolerance time.Duration
	DryRun           bool
	Verbose          bool
	ShowProgress     bool
}

// Stats summarizes one import run. Every message lands in exactly one
// outcome bucket.
type Stats struct {
	ByIntent   map[model.Intent]int
	Total      int
	Imported   int
	Duplicates int
	Excluded   int
	Declined   int
	NoMatch    int
	NoAccount  int
	Errors     int
}

// Importer is the ingestion pipeline.
type Importer struct {
	store      service.Storage
	classifier *classify.Classifier
	accounts   *classify.AccountResolver
	source     MessageSource
	opts       Options
}

// New creates an importer. Zero options get sane defaults: a year of
// lookback, a six hour pairing window, UTC business dates.
func New(store service.Storage, classifier *classify.Classifier, accounts *classify.AccountResolver, source MessageSource, opts Options) *Importer {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 365
	}
	if opts.PairingTolerance <= 0 {
		opts.PairingTolerance = 6 * time.Hour
	}
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}

	return &Importer{
		store:      store,
		classifier: classifier,
		accounts:   accounts,
		source:     source,
		opts:       opts,
	}
}

// Run executes one import pass. Each message is a unit of work: it either
// fully completes (classify, record, insert, pair, categorize) or is
// abandoned before starting. Per-message failures are counted and logged,
// never fatal; cancellation is checked between messages.
func (i *Importer) Run(ctx context.Context) (*Stats, error) {
	since := time.Now().UTC().AddDate(0, 0, -i.opts.DaysBack)
	msgs, err := i.source.Messages(ctx, i.classifier.SupportedSenders(), since)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	stats := &Stats{
		Total:    len(msgs),
		ByIntent: make(map[model.Intent]int),
	}

	common.LogInfo("Starting import", common.Fields{
		"messages":  len(msgs),
		"days_back": i.opts.DaysBack,
		"dry_run":   i.opts.DryRun,
	})

	var bar *progressbar.ProgressBar
	if i.opts.ShowProgress {
		bar = progressbar.Default(int64(len(msgs)), "importing")
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		if err := i.processMessage(ctx, msg, stats); err != nil {
			stats.Errors++
			common.LogError(err, "Failed to process message", common.Fields{
				"rowid":  msg.RowID,
				"sender": msg.Sender,
			})
		}
	}

	common.LogInfo("Import complete", common.Fields{
		"imported":   stats.Imported,
		"duplicates": stats.Duplicates,
		"excluded":   stats.Excluded,
		"declined":   stats.Declined,
		"no_match":   stats.NoMatch,
		"no_account": stats.NoAccount,
		"errors":     stats.Errors,
	})

	return stats, nil
}

func (i *Importer) processMessage(ctx context.Context, msg model.RawMessage, stats *Stats) error {
	body := messages.Body(msg.Text, msg.AttributedBody)
	if len(body) < minBodyLength {
		stats.NoMatch++
		return nil
	}

	result := i.classifier.Classify(msg.Sender, body)

	account, hasAccount := i.accounts.Resolve(msg.Sender)
	postable := result.ShouldCreateTransaction() && hasAccount && account.Postable()

	if !i.opts.DryRun {
		if err := i.recordRawEvent(ctx, msg, body, &result, postable); err != nil {
			return err
		}
	}

	if !result.Matched {
		if result.Excluded {
			stats.Excluded++
			if i.opts.Verbose {
				common.LogDebug("Excluded", common.Fields{"rowid": msg.RowID, "reason": result.Reason})
			}
		} else {
			stats.NoMatch++
		}
		return nil
	}

	if !result.ShouldCreateTransaction() {
		stats.Declined++
		return nil
	}

	if !hasAccount || !account.Postable() {
		stats.NoAccount++
		return nil
	}

	if i.opts.DryRun {
		stats.Imported++
		stats.ByIntent[result.Intent]++
		return nil
	}

	currency := result.Currency
	if currency == "" {
		currency = account.DefaultCurrency
	}

	rawData, err := storage.BuildRawPayload(model.RawPayload{
		Entities:     result.Entities,
		Sender:       msg.Sender,
		Pattern:      result.PatternName,
		Intent:       result.Intent,
		Subtype:      result.Subtype,
		OriginalText: body,
		Confidence:   result.Confidence,
	})
	if err != nil {
		return err
	}

	txn := &model.Transaction{
		ExternalID:        msg.ExternalID(),
		AccountID:         account.AccountID,
		TransactionAt:     msg.SentAt,
		Date:              msg.SentAt.In(i.opts.Timezone).Format("2006-01-02"),
		MerchantName:      result.Merchant,
		MerchantNameClean: classify.CleanMerchant(result.Merchant),
		Amount:            *result.Amount,
		Currency:          currency,
		Category:          result.Category,
		Source:            "sms",
		RawData:           rawData,
	}

	id, created, err := i.store.InsertTransaction(ctx, txn)
	if err != nil {
		return err
	}
	if !created {
		stats.Duplicates++
		return nil
	}

	stats.Imported++
	stats.ByIntent[result.Intent]++

	isMetadata, err := i.maybePair(ctx, id, msg, &result, currency)
	if err != nil {
		return err
	}

	// FX metadata legs never get their own categorization: their economic
	// effect lives on the primary leg.
	if !isMetadata {
		if _, err := i.store.ApplyMerchantRule(ctx, id, result.Merchant); err != nil {
			return err
		}
	}

	if i.opts.Verbose {
		common.LogDebug("Imported", common.Fields{
			"rowid":    msg.RowID,
			"pattern":  result.PatternName,
			"amount":   *result.Amount,
			"currency": currency,
		})
	}

	return nil
}

func (i *Importer) recordRawEvent(ctx context.Context, msg model.RawMessage, body string, result *model.Classification, postable bool) error {
	// The preview cap lands on a rune boundary so Arabic bodies are not
	// stored as broken UTF-8.
	preview := body
	if len(preview) > bodyPreviewLength {
		cut := bodyPreviewLength
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	ev := &model.RawEvent{
		ExternalID:              msg.ExternalID(),
		Sender:                  msg.Sender,
		ReceivedAt:              msg.SentAt,
		BodyPreview:             preview,
		Matched:                 result.Matched,
		Excluded:                result.Excluded,
		Intent:                  result.Intent,
		PatternName:             result.PatternName,
		Amount:                  result.Amount,
		Currency:                result.Currency,
		Confidence:              result.Confidence,
		ShouldCreateTransaction: postable,
	}

	_, err := i.store.RecordRawEvent(ctx, ev)
	return err
}
