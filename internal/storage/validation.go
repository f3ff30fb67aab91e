// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obeidat/ledgerline/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidAmount    = errors.New("amount must not be NaN")
	ErrInvalidSchedule  = errors.New("invalid scheduled payment")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction checks the fields the schema requires.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateString(txn.ExternalID, "externalID"); err != nil {
		return err
	}
	if err := validateString(txn.Currency, "currency"); err != nil {
		return err
	}
	if txn.Amount != txn.Amount {
		return ErrInvalidAmount
	}
	return nil
}

// validateSchedule checks a scheduled payment before insert.
func validateSchedule(sp *model.ScheduledPayment) error {
	if sp == nil {
		return fmt.Errorf("%w: scheduled payment", ErrNilParameter)
	}
	if err := validateString(sp.Source, "source"); err != nil {
		return err
	}
	if err := validateString(sp.Merchant, "merchant"); err != nil {
		return err
	}
	if sp.InstallmentsTotal <= 0 {
		return fmt.Errorf("%w: installments_total must be positive", ErrInvalidSchedule)
	}
	if sp.TotalAmount <= 0 {
		return fmt.Errorf("%w: total_amount must be positive", ErrInvalidSchedule)
	}
	return nil
}
