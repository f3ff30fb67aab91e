package importer

import (
	"context"
	"math"

	"github.com/obeidat/ledgerline/internal/classify"
	"github.com/obeidat/ledgerline/internal/model"
	"github.com/obeidat/ledgerline/internal/service"
)

// maybePair links the freshly inserted row to its opposite FX leg when the
// classification carries a pairing subtype. Returns whether this row ended
// up as the fx_metadata leg.
//
// The confirmed leg is always the primary: it carries the settlement
// currency the account actually moved. The notification leg's foreign
// amount is folded into the primary's audit payload.
func (i *Importer) maybePair(ctx context.Context, id int64, msg model.RawMessage, result *model.Classification, currency string) (bool, error) {
	if result.Subtype == model.SubtypeNone {
		return false, nil
	}

	query := service.PairQuery{
		Sender:        msg.Sender,
		MerchantClean: classify.CleanMerchant(result.Merchant),
		At:            msg.SentAt,
		Tolerance:     i.opts.PairingTolerance,
	}

	switch result.Subtype {
	case model.SubtypePurchaseNotification:
		query.PatternSuffix = "_confirmed"
		pair, err := i.store.FindPairCandidate(ctx, query)
		if err != nil || pair == nil {
			return false, err
		}
		linked, err := i.store.LinkFXPair(ctx, pair.ID, id, math.Abs(*result.Amount), currency)
		if err != nil {
			return false, err
		}
		return linked, nil

	case model.SubtypePurchaseConfirmed:
		query.PatternSuffix = "_notification"
		pair, err := i.store.FindPairCandidate(ctx, query)
		if err != nil || pair == nil {
			return false, err
		}
		// A lost race just leaves both rows unpaired for the next run.
		if _, err := i.store.LinkFXPair(ctx, id, pair.ID, math.Abs(pair.Amount), pair.Currency); err != nil {
			return false, err
		}
		return false, nil
	}

	return false, nil
}
