package model

// Intent is the financial meaning extracted from a message.
type Intent string

// Recognized intents.
const (
	IntentIncome   Intent = "income"
	IntentExpense  Intent = "expense"
	IntentTransfer Intent = "transfer"
	IntentRefund   Intent = "refund"
	IntentDeclined Intent = "declined"
	IntentIgnore   Intent = "ignore"
)

// Subtype marks one leg of a split notification/confirmation pair.
type Subtype string

// Pairing subtypes.
const (
	SubtypeNone                 Subtype = ""
	SubtypePurchaseNotification Subtype = "purchase_notification"
	SubtypePurchaseConfirmed    Subtype = "purchase_confirmed"
)

// Classification is the result of classifying a single message.
// It is derived data: a pure function of (sender, body).
type Classification struct {
	Entities    map[string]string
	Sender      string
	Reason      string
	PatternName string
	Intent      Intent
	Currency    string
	Merchant    string
	Category    string
	Subtype     Subtype
	Amount      *float64
	AmountAbs   *float64
	Confidence  float64
	Matched     bool
	Excluded    bool

	// NeverCreateTransaction is set for declined and ignored intents:
	// these must never produce a ledger row even when amounts parse.
	NeverCreateTransaction bool
}

// ShouldCreateTransaction reports whether this classification is eligible
// to post a ledger row. Postability (account mapping) is a separate gate.
func (c *Classification) ShouldCreateTransaction() bool {
	if !c.Matched || c.Excluded || c.NeverCreateTransaction {
		return false
	}
	if c.Intent == IntentDeclined || c.Intent == IntentIgnore {
		return false
	}
	return c.Amount != nil
}
