// Package classify implements deterministic, pattern-table-driven message
// classification. The engine is a pure function of (sender, body): no I/O,
// no clock, no randomness, so recorded classifications can be recomputed
// byte-for-byte during replay audits.
package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/obeidat/ledgerline/internal/model"
)

type compiledExclude struct {
	re     *regexp.Regexp
	name   string
	reason string
}

type compiledPattern struct {
	re          *regexp.Regexp
	name        string
	intent      model.Intent
	category    string
	subtype     model.Subtype
	confidence  float64
	neverCreate bool
}

type senderEntry struct {
	patterns        []compiledPattern
	defaultCurrency string
}

// Classifier matches messages against exclusion patterns first, then the
// sender's business patterns highest priority first, stopping at the
// first hit. Declaration order breaks priority ties.
type Classifier struct {
	senders         map[string]senderEntry
	currencyAliases map[string]string
	excludes        []compiledExclude
}

// NewClassifier compiles the pattern table. Exclusion patterns are
// case-insensitive; business patterns additionally run in multiline mode
// because several senders format messages as labelled lines.
func NewClassifier(cfg *Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		senders:         make(map[string]senderEntry),
		currencyAliases: cfg.CurrencyAliases,
	}

	for _, ex := range cfg.ExcludePatterns {
		c.excludes = append(c.excludes, compiledExclude{
			re:     regexp.MustCompile("(?i)" + ex.Regex),
			name:   ex.Name,
			reason: ex.Reason,
		})
	}

	for _, sender := range cfg.Senders {
		ordered := make([]Pattern, len(sender.Patterns))
		copy(ordered, sender.Patterns)
		sort.SliceStable(ordered, func(a, b int) bool {
			return ordered[a].Priority > ordered[b].Priority
		})

		compiled := make([]compiledPattern, 0, len(ordered))
		for _, p := range ordered {
			conf := p.Confidence
			if conf == 0 {
				conf = 0.9
			}
			compiled = append(compiled, compiledPattern{
				re:          regexp.MustCompile("(?im)" + p.Regex),
				name:        p.Name,
				intent:      p.Intent,
				category:    p.Category,
				subtype:     p.Subtype,
				confidence:  conf,
				neverCreate: p.NeverCreateTransaction,
			})
		}

		// Every handle variant shares the same compiled set.
		for _, handle := range sender.Senders {
			c.senders[strings.ToLower(handle)] = senderEntry{
				patterns:        compiled,
				defaultCurrency: sender.DefaultCurrency,
			}
		}
	}

	return c, nil
}

// SupportedSenders returns the lower-cased sender handles with patterns,
// sorted for stable output.
func (c *Classifier) SupportedSenders() []string {
	handles := make([]string, 0, len(c.senders))
	for h := range c.senders {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Classify classifies a single message. It always returns a result: an
// excluded, unknown-sender, or no-match classification is still a
// classification and is recorded for audit.
func (c *Classifier) Classify(sender, body string) model.Classification {
	if sender == "" || body == "" {
		return model.Classification{Sender: sender, Reason: "empty_input"}
	}

	for _, ex := range c.excludes {
		if ex.re.MatchString(body) {
			return model.Classification{
				Sender:      sender,
				Excluded:    true,
				Reason:      ex.reason,
				PatternName: ex.name,
				Confidence:  0.95,
			}
		}
	}

	entry, ok := c.senders[strings.ToLower(sender)]
	if !ok {
		return model.Classification{Sender: sender, Reason: "unknown_sender"}
	}

	for _, p := range entry.patterns {
		m := p.re.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		entities := make(map[string]string)
		for i, name := range p.re.SubexpNames() {
			if name != "" && i < len(m) && m[i] != "" {
				entities[name] = m[i]
			}
		}

		amountAbs := parseAmount(entities["amount"])
		currency := c.normalizeCurrency(entities["currency"], entry.defaultCurrency)

		var amount *float64
		if amountAbs != nil {
			switch p.intent {
			case model.IntentExpense, model.IntentTransfer:
				v := -*amountAbs
				amount = &v
			case model.IntentIncome, model.IntentRefund:
				v := *amountAbs
				amount = &v
			}
		}

		neverCreate := p.neverCreate ||
			p.intent == model.IntentDeclined || p.intent == model.IntentIgnore

		return model.Classification{
			Matched:                true,
			Sender:                 sender,
			PatternName:            p.name,
			Intent:                 p.intent,
			Subtype:                p.subtype,
			Amount:                 amount,
			AmountAbs:              amountAbs,
			Currency:               currency,
			Merchant:               extractMerchant(entities),
			Entities:               entities,
			Category:               p.category,
			Confidence:             p.confidence,
			NeverCreateTransaction: neverCreate,
		}
	}

	return model.Classification{Sender: sender, Reason: "no_pattern_match"}
}

// parseAmount strips thousands separators and parses the remainder. A
// missing or unparseable amount yields nil, never zero.
func parseAmount(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func (c *Classifier) normalizeCurrency(cur, fallback string) string {
	if cur == "" {
		return fallback
	}
	if code, ok := c.currencyAliases[cur]; ok {
		return code
	}
	return strings.ToUpper(cur)
}

// extractMerchant picks the counterparty from the named groups that
// patterns use for it, in precedence order.
func extractMerchant(entities map[string]string) string {
	for _, key := range []string{"merchant", "to", "from", "order"} {
		if v, ok := entities[key]; ok && v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// CleanMerchant normalizes a merchant name for storage and pair matching:
// whitespace collapsed, trailing punctuation dropped, capped at 100 bytes.
// The cap lands on a rune boundary so Arabic names stay valid UTF-8.
func CleanMerchant(name string) string {
	if name == "" {
		return ""
	}
	cleaned := strings.Join(strings.Fields(name), " ")
	cleaned = strings.TrimRight(cleaned, ",.")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 100 {
		cleaned = truncateAtRune(cleaned, 100)
	}
	return cleaned
}

// truncateAtRune cuts s to at most max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
