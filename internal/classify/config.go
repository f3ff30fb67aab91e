package classify

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/model"
	"gopkg.in/yaml.v3"
)

// Pattern is one named business pattern for a sender. Patterns are data,
// not code: they are loaded at start-up and can be replaced without
// touching the engine.
type Pattern struct {
	Name                   string        `yaml:"name"`
	Regex                  string        `yaml:"regex"`
	Intent                 model.Intent  `yaml:"intent"`
	Category               string        `yaml:"category,omitempty"`
	Subtype                model.Subtype `yaml:"subtype,omitempty"`
	Confidence             float64       `yaml:"confidence,omitempty"`
	Priority               int           `yaml:"priority,omitempty"`
	NeverCreateTransaction bool          `yaml:"never_create_transaction,omitempty"`
}

// Sender groups the patterns and account mapping for one message sender.
// Senders lists the handle variants that share this configuration.
type Sender struct {
	AccountID       *int64    `yaml:"account_id"`
	DefaultCurrency string    `yaml:"default_currency"`
	Senders         []string  `yaml:"senders"`
	Patterns        []Pattern `yaml:"patterns"`
}

// ExcludePattern identifies non-financial messages (OTP, promos, statements)
// that are evaluated before any business pattern.
type ExcludePattern struct {
	Name   string `yaml:"name"`
	Regex  string `yaml:"regex"`
	Reason string `yaml:"reason"`
}

// Config is the full pattern table. A compiled default ships in-code
// (DefaultConfig); LoadConfig replaces it from a YAML file.
type Config struct {
	Senders         map[string]Sender `yaml:"senders"`
	CurrencyAliases map[string]string `yaml:"currency_aliases"`
	ExcludePatterns []ExcludePattern  `yaml:"exclude_patterns"`
}

// LoadConfig reads and validates a pattern table from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNoPatternFile, path)
		}
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse pattern file %s: %w", common.ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: pattern file %s: %w", common.ErrInvalidConfig, path, err)
	}

	return &cfg, nil
}

// Validate checks that every pattern has a name, a compilable regex, and a
// recognized intent.
func (c *Config) Validate() error {
	for i, ex := range c.ExcludePatterns {
		if ex.Name == "" {
			return fmt.Errorf("exclude pattern at index %d has no name", i)
		}
		if _, err := regexp.Compile("(?i)" + ex.Regex); err != nil {
			return fmt.Errorf("exclude pattern %s: %w", ex.Name, err)
		}
	}

	for key, sender := range c.Senders {
		if len(sender.Senders) == 0 {
			return fmt.Errorf("sender %s lists no handle variants", key)
		}
		if sender.DefaultCurrency == "" {
			return fmt.Errorf("sender %s has no default currency", key)
		}
		for _, p := range sender.Patterns {
			if p.Name == "" {
				return fmt.Errorf("sender %s has a pattern with no name", key)
			}
			if _, err := regexp.Compile("(?im)" + p.Regex); err != nil {
				return fmt.Errorf("pattern %s.%s: %w", key, p.Name, err)
			}
			switch p.Intent {
			case model.IntentIncome, model.IntentExpense, model.IntentTransfer,
				model.IntentRefund, model.IntentDeclined, model.IntentIgnore:
			default:
				return fmt.Errorf("pattern %s.%s has unknown intent %q", key, p.Name, p.Intent)
			}
		}
	}

	return nil
}
