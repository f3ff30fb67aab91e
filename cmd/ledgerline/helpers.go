package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/obeidat/ledgerline/internal/classify"
	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/config"
	"github.com/obeidat/ledgerline/internal/messages"
	"github.com/obeidat/ledgerline/internal/service"
	"github.com/obeidat/ledgerline/internal/storage"
)

// initStorage initializes the ledger database with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ledgerline/ledger.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initMessageStore opens the Apple Messages database read-only.
func initMessageStore() (*messages.Store, error) {
	path := viper.GetString("messages.path")
	if path == "" {
		path = "$HOME/Library/Messages/chat.db"
	}
	return messages.OpenStore(config.ExpandPath(path))
}

// loadPatternConfig returns the pattern table: the built-in defaults, or
// the YAML file named in config.
func loadPatternConfig() (*classify.Config, error) {
	if path := viper.GetString("patterns.path"); path != "" {
		return classify.LoadConfig(config.ExpandPath(path))
	}
	return classify.DefaultConfig(), nil
}

// pairingTolerance returns the FX pairing time window.
func pairingTolerance() time.Duration {
	hours := viper.GetFloat64("pairing.tolerance_hours")
	if hours <= 0 {
		hours = 6
	}
	return time.Duration(hours * float64(time.Hour))
}

// bnplAmountTolerance returns the relative settlement-matching tolerance.
func bnplAmountTolerance() float64 {
	return viper.GetFloat64("bnpl.amount_tolerance")
}

// ledgerTimezone returns the timezone business dates are computed in.
func ledgerTimezone() (*time.Location, error) {
	name := viper.GetString("ledger.timezone")
	if name == "" {
		name = "Asia/Dubai"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown ledger timezone %q", common.ErrInvalidConfig, name)
	}
	return loc, nil
}
