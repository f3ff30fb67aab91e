package classify

import "strings"

// Account is the ledger mapping for one sender. A nil AccountID means the
// sender's messages are classified and audited but never posted directly:
// wallet refunds and installment-provider confirmations fall in this bucket.
type Account struct {
	AccountID       *int64
	DefaultCurrency string
}

// Postable reports whether the sender can post rows to the ledger.
func (a Account) Postable() bool {
	return a.AccountID != nil
}

// AccountResolver maps lower-cased sender handles to ledger accounts.
// Classification success and postability are independent gates: a message
// can classify cleanly and still be skipped here.
type AccountResolver struct {
	bySender map[string]Account
}

// NewAccountResolver builds the resolver from the pattern table's sender
// sections, so account mapping and patterns always travel together.
func NewAccountResolver(cfg *Config) *AccountResolver {
	r := &AccountResolver{bySender: make(map[string]Account)}
	for _, sender := range cfg.Senders {
		acct := Account{
			AccountID:       sender.AccountID,
			DefaultCurrency: sender.DefaultCurrency,
		}
		for _, handle := range sender.Senders {
			r.bySender[strings.ToLower(handle)] = acct
		}
	}
	return r
}

// Resolve looks up the account mapping for a sender handle.
func (r *AccountResolver) Resolve(sender string) (Account, bool) {
	acct, ok := r.bySender[strings.ToLower(sender)]
	return acct, ok
}
