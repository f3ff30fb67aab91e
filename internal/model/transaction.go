package model

import "time"

// PairingRole marks a transaction's role in an FX notification/confirmation pair.
type PairingRole string

// Pairing roles.
const (
	PairingRoleNone       PairingRole = ""
	PairingRolePrimary    PairingRole = "primary"
	PairingRoleFXMetadata PairingRole = "fx_metadata"
)

// Transaction is one posted financial event in the ledger.
type Transaction struct {
	TransactionAt       time.Time
	CreatedAt           time.Time
	ExternalID          string
	Date                string // business date, YYYY-MM-DD in the ledger timezone
	MerchantName        string
	MerchantNameClean   string
	Currency            string
	Category            string
	Subcategory         string
	StoreName           string
	Source              string
	MatchReason         string
	RawData             string // JSON audit payload from classification
	PairingRole         PairingRole
	AccountID           *int64
	MatchRuleID         *int64
	PairedTransactionID *int64
	ID                  int64
	Amount              float64
	MatchConfidence     float64
	IsGrocery           bool
	IsRestaurant        bool
	IsFoodRelated       bool
}

// RawPayload is the audit payload persisted alongside each transaction so the
// original classification can be reconstructed from the ledger row.
type RawPayload struct {
	Entities     map[string]string `json:"entities,omitempty"`
	Sender       string            `json:"sender"`
	Pattern      string            `json:"pattern"`
	Intent       Intent            `json:"intent"`
	Subtype      Subtype           `json:"subtype,omitempty"`
	OriginalText string            `json:"original_text"`
	FXCurrency   string            `json:"fx_currency,omitempty"`
	Confidence   float64           `json:"confidence"`
	FXAmount     float64           `json:"fx_amount,omitempty"`
	FXPairedID   int64             `json:"fx_paired_id,omitempty"`
}
