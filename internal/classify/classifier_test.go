package classify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeidat/ledgerline/internal/model"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestClassify_SalaryDeposit(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("EmiratesNBD", "تم ايداع الراتب AED 23,500.00 في  حسابك")

	require.True(t, result.Matched)
	assert.Equal(t, "enbd_salary", result.PatternName)
	assert.Equal(t, model.IntentIncome, result.Intent)
	assert.Equal(t, "AED", result.Currency)
	require.NotNil(t, result.Amount)
	assert.InDelta(t, 23500.00, *result.Amount, 0.001)
	assert.True(t, result.ShouldCreateTransaction())
}

func TestClassify_PointOfSalePurchase(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("AlRajhiBank", "PoS\nBy:8308;mada\nAmount:SAR 48\nAt:KAKAT")

	require.True(t, result.Matched)
	assert.Equal(t, "alrajhi_pos", result.PatternName)
	assert.Equal(t, model.IntentExpense, result.Intent)
	assert.Equal(t, "SAR", result.Currency)
	require.NotNil(t, result.Amount)
	assert.InDelta(t, -48.0, *result.Amount, 0.001)
	require.NotNil(t, result.AmountAbs)
	assert.InDelta(t, 48.0, *result.AmountAbs, 0.001)
}

func TestClassify_MerchantExtraction(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("EmiratesNBD",
		"تمت عملية شراء بقيمة AED 165.00 لدى BARBERSHOP ,Dubai باستخدام بطاقة خصم")

	require.True(t, result.Matched)
	assert.Equal(t, "enbd_debit_purchase", result.PatternName)
	assert.Equal(t, "BARBERSHOP", result.Merchant)
	require.NotNil(t, result.Amount)
	assert.InDelta(t, -165.00, *result.Amount, 0.001)
}

func TestClassify_ExclusionsRunFirst(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name string
		body string
	}{
		{"otp", "OTP: 123456 is your verification code"},
		{"promo", "Exclusive offer! Get 20% discount on your next purchase"},
		{"wallet", "Your card is now ready for contactless payments via Apple Pay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify("EmiratesNBD", tt.body)
			assert.False(t, result.Matched)
			assert.True(t, result.Excluded)
			assert.NotEmpty(t, result.Reason)
			assert.False(t, result.ShouldCreateTransaction())
		})
	}
}

func TestClassify_UnknownSender(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("RandomShop", "You spent AED 100.00 at our store")

	assert.False(t, result.Matched)
	assert.False(t, result.Excluded)
	assert.Equal(t, "unknown_sender", result.Reason)
}

func TestClassify_DeclinedHasNoAmount(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("EmiratesNBD", "تم رفض معاملة بقيمة 500.00AED على بطاقتك")

	require.True(t, result.Matched)
	assert.Equal(t, model.IntentDeclined, result.Intent)
	assert.Nil(t, result.Amount)
	assert.True(t, result.NeverCreateTransaction)
	assert.False(t, result.ShouldCreateTransaction())
	// the parsed magnitude is still recorded for audit
	require.NotNil(t, result.AmountAbs)
	assert.InDelta(t, 500.00, *result.AmountAbs, 0.001)
}

func TestClassify_SignInvariants(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name     string
		sender   string
		body     string
		intent   model.Intent
		positive bool
	}{
		{
			name:     "refund is non-negative",
			sender:   "CAREEM",
			body:     "your order 12345 has been cancelled and AED 52.00 has been refunded to your wallet",
			intent:   model.IntentRefund,
			positive: true,
		},
		{
			name:     "transfer is non-positive",
			sender:   "AlRajhiBank",
			body:     "Internal Transfer\nFrom:1234\nAmount:SAR 1,000.00\nTo:Ahmad",
			intent:   model.IntentTransfer,
			positive: false,
		},
		{
			name:     "expense is non-positive",
			sender:   "JKB",
			body:     "You have an approved purchase trx on POS for JOD 20.00 on your card ending 1234",
			intent:   model.IntentExpense,
			positive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.sender, tt.body)
			require.True(t, result.Matched, "expected match for %q", tt.body)
			assert.Equal(t, tt.intent, result.Intent)
			require.NotNil(t, result.Amount)
			if tt.positive {
				assert.Greater(t, *result.Amount, 0.0)
			} else {
				assert.Less(t, *result.Amount, 0.0)
			}
		})
	}
}

func TestClassify_ArabicCurrencyAlias(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("JKB", "تم قيد مبلغ 5.00 دينار أردني على حسابكم وذلك عمولة تدني رصيد")

	require.True(t, result.Matched)
	assert.Equal(t, "jkb_fee_arabic", result.PatternName)
	assert.Equal(t, "JOD", result.Currency)
}

func TestClassify_DefaultCurrencyFallback(t *testing.T) {
	c := newTestClassifier(t)

	// jkb_deposit has no currency group; the sender default applies.
	result := c.Classify("JKB", "تم ايداع مبلغ 150.00 في حسابك")

	require.True(t, result.Matched)
	assert.Equal(t, "jkb_deposit", result.PatternName)
	assert.Equal(t, "JOD", result.Currency)
}

func TestClassify_InstallmentConfirmationNeverPosts(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("tabby", "Your AED 999.00 purchase at IKEA is confirmed. Pay in 4 installments.")

	require.True(t, result.Matched)
	assert.Equal(t, "tabby_purchase_confirmed", result.PatternName)
	assert.True(t, result.NeverCreateTransaction)
	assert.False(t, result.ShouldCreateTransaction())
}

func TestClassify_PairingSubtypes(t *testing.T) {
	c := newTestClassifier(t)

	notification := c.Classify("Tasheel Fin", "Purchase of USD 100.00 at Steam Games on your card ending 4821")
	require.True(t, notification.Matched)
	assert.Equal(t, model.SubtypePurchaseNotification, notification.Subtype)
	assert.Equal(t, "USD", notification.Currency)
	assert.Equal(t, "Steam Games", notification.Merchant)

	confirmed := c.Classify("Tasheel Fin", "Your purchase at Steam Games for SAR 375.00 is confirmed")
	require.True(t, confirmed.Matched)
	assert.Equal(t, model.SubtypePurchaseConfirmed, confirmed.Subtype)
	assert.Equal(t, "SAR", confirmed.Currency)
	assert.Equal(t, "Steam Games", confirmed.Merchant)
}

func TestClassify_SenderCaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("EMIRATESNBD", "تم ايداع الراتب AED 1,000.00 في حسابك")
	assert.True(t, result.Matched)
}

func TestClassify_PriorityOrdersPatterns(t *testing.T) {
	cfg := &Config{
		Senders: map[string]Sender{
			"testbank": {
				DefaultCurrency: "AED",
				Senders:         []string{"TestBank"},
				Patterns: []Pattern{
					{
						Name:     "generic_debit",
						Regex:    `debit of (?P<amount>[\d,.]+)`,
						Intent:   model.IntentExpense,
						Priority: 1,
					},
					{
						Name:     "atm_debit",
						Regex:    `debit of (?P<amount>[\d,.]+) at ATM`,
						Intent:   model.IntentExpense,
						Priority: 10,
					},
				},
			},
		},
	}

	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	// Both patterns match; the higher priority wins even though it is
	// declared second.
	result := c.Classify("TestBank", "debit of 100.00 at ATM branch 7")
	require.True(t, result.Matched)
	assert.Equal(t, "atm_debit", result.PatternName)

	result = c.Classify("TestBank", "debit of 50.00 online")
	require.True(t, result.Matched)
	assert.Equal(t, "generic_debit", result.PatternName)
}

func TestClassify_PriorityTieKeepsDeclarationOrder(t *testing.T) {
	cfg := &Config{
		Senders: map[string]Sender{
			"testbank": {
				DefaultCurrency: "AED",
				Senders:         []string{"TestBank"},
				Patterns: []Pattern{
					{Name: "first", Regex: `payment`, Intent: model.IntentExpense, Priority: 5},
					{Name: "second", Regex: `payment of`, Intent: model.IntentExpense, Priority: 5},
				},
			},
		},
	}

	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	result := c.Classify("TestBank", "payment of AED 10 received")
	require.True(t, result.Matched)
	assert.Equal(t, "first", result.PatternName)
}

func TestCleanMerchant(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "STEAM   GAMES\n LLC", "STEAM GAMES LLC"},
		{"strips trailing punctuation", "KAKAT,", "KAKAT"},
		{"strips trailing period", "AMAZON.AE.", "AMAZON.AE"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMerchant(tt.in))
		})
	}
}

func TestCleanMerchant_CapKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("سوق الامارات ", 12)

	cleaned := CleanMerchant(long)
	assert.LessOrEqual(t, len(cleaned), 100)
	assert.True(t, utf8.ValidString(cleaned))
}

func TestSupportedSenders(t *testing.T) {
	c := newTestClassifier(t)

	senders := c.SupportedSenders()
	assert.Contains(t, senders, "emiratesnbd")
	assert.Contains(t, senders, "alrajhibank")
	assert.Contains(t, senders, "jkb")
	assert.Contains(t, senders, "tasheel fin")
	assert.Contains(t, senders, "tabby")
}

func TestConfigValidate_RejectsBadRegex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Senders["broken"] = Sender{
		Senders:         []string{"Broken"},
		DefaultCurrency: "AED",
		Patterns:        []Pattern{{Name: "bad", Regex: "(unclosed", Intent: model.IntentExpense}},
	}

	_, err := NewClassifier(cfg)
	require.Error(t, err)
}
