package classify

import "github.com/obeidat/ledgerline/internal/model"

func accountRef(id int64) *int64 { return &id }

// DefaultConfig returns the built-in pattern table covering the tracked
// senders. It mirrors the YAML schema exactly, so a file loaded with
// LoadConfig can replace any part of it.
func DefaultConfig() *Config {
	return &Config{
		ExcludePatterns: []ExcludePattern{
			{
				Name:   "otp",
				Regex:  `(OTP|verification code|رمز التحقق|رمز التوثيق|code is|One-Time Password)`,
				Reason: "one-time password",
			},
			{
				Name:   "wallet_setup",
				Regex:  `(add.*to.*wallet|Apple Pay|card.*ready for contactless)`,
				Reason: "wallet setup notice",
			},
			{
				Name:   "payment_approval",
				Regex:  `(يوجد لديك دفعة.*تتطلب موافقتك)`,
				Reason: "pending payment approval request",
			},
			{
				Name:   "statement",
				Regex:  `(كشف حساب مصغّر|statement.*due)`,
				Reason: "account statement notice",
			},
			{
				Name:   "promo",
				Regex:  `(offer|discount|عرض.*خصم|خصم\s*\d+|extr\.ly)`,
				Reason: "promotional message",
			},
			{
				Name:   "security_update",
				Regex:  `(تم.*تحديث إعدادات الحماية)`,
				Reason: "security settings update",
			},
			{
				Name:   "credit_limit",
				Regex:  `(has been approved with a credit limit)`,
				Reason: "credit limit approval",
			},
			{
				Name:   "order_status",
				Regex:  `(Order for .+ is (successfully placed|shipped))`,
				Reason: "order status update",
			},
		},
		CurrencyAliases: map[string]string{
			"درهم إماراتي": "AED",
			"ريال سعودي":   "SAR",
			"دينار أردني":  "JOD",
		},
		Senders: map[string]Sender{
			"emiratesnbd": {
				Senders:         []string{"EmiratesNBD"},
				AccountID:       accountRef(2),
				DefaultCurrency: "AED",
				Patterns: []Pattern{
					{
						Name:       "enbd_salary",
						Regex:      `تم ايداع الراتب\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+في\s+حسابك`,
						Intent:     model.IntentIncome,
						Category:   "Salary",
						Confidence: 0.95,
					},
					{
						Name:       "enbd_debit_purchase",
						Regex:      `تمت عملية شراء بقيمة\s+(?P<currency>AED|SAR|JOD|USD|EUR|GBP)\s+(?P<amount>[\d,]+\.?\d*)\s+لدى\s+(?P<merchant>[^,]+)\s*,\s*(?P<city>.+?)\s+باستخدام بطاقة خصم`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "enbd_credit_purchase",
						Regex:      `تمت عملية شراء في\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+(?P<merchant>[^,]+),\s*(?P<city>.+?)\s+على البطاقة`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "enbd_atm",
						Regex:      `لقد قمت بسحب مبلغ\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+مستخدما بطاقة الصراف الآلي`,
						Intent:     model.IntentExpense,
						Category:   "Cash",
						Confidence: 0.9,
					},
					{
						Name:       "enbd_transfer",
						Regex:      `تم خصم\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+من حسابك.*لتحويل الأموال`,
						Intent:     model.IntentTransfer,
						Confidence: 0.9,
					},
					{
						Name:       "enbd_cc_payment",
						Regex:      `تم خصم مبلغ\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+من حسابك.*لتسديد مستحقات بطاقتك`,
						Intent:     model.IntentExpense,
						Category:   "Credit Card Payment",
						Confidence: 0.9,
					},
					{
						Name:       "enbd_refund",
						Regex:      `لقد تم إعادة مبلغ عملية شراء بقيمة\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentRefund,
						Confidence: 0.9,
					},
					{
						Name:       "enbd_declined",
						Regex:      `تم رفض معاملة بقيمة\s+(?P<amount>[\d,]+\.?\d*)(?P<currency>AED|SAR|JOD|USD)`,
						Intent:     model.IntentDeclined,
						Confidence: 0.9,
					},
					{
						Name:       "enbd_fund_hold",
						Regex:      `تمّ تقييد مبلغ\s+(?P<currency>AED|SAR|JOD|USD)\s+(?P<amount>[\d,]+\.?\d*)\s+في حسابك`,
						Intent:     model.IntentTransfer,
						Confidence: 0.85,
					},
				},
			},
			"alrajhibank": {
				Senders:         []string{"AlRajhiBank"},
				AccountID:       accountRef(1),
				DefaultCurrency: "SAR",
				Patterns: []Pattern{
					{
						Name:       "alrajhi_pos",
						Regex:      `PoS\nBy:(?P<card>\d+);(?P<method>[^\n]+)\nAmount:(?P<currency>SAR|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_pos_intl",
						Regex:      `PoS International\nBy:(?P<card>\d+);(?P<method>[^\n]+)\nAmount:(?P<currency>SAR|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_online",
						Regex:      `Online Purchase\nBy:(?P<card>\d+);(?P<method>[^\n]+)\n(?:From:(?P<from>\d+)\n)?Amount:(?P<currency>SAR|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_refund",
						Regex:      `Refund PoS\nBy:(?P<card>\d+);(?P<method>[^\n]+)\nAmount:(?P<currency>SAR|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentRefund,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_transfer_out",
						Regex:      `Internal Transfer\nFrom:(?P<from>\d+)\nAmount:(?P<currency>SAR|USD)\s*(?P<amount>[\d,]+\.?\d*)\nTo:(?P<to>[^\n]+)`,
						Intent:     model.IntentTransfer,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_transfer_in",
						Regex:      `Local Transfer\nVia:(?P<via>\w+)\nAmount:(?P<currency>SAR|USD)\s*(?P<amount>[\d,]+\.?\d*)\nTo:(?P<to>\d+)\nFrom:(?P<from>[^\n]+)`,
						Intent:     model.IntentIncome,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_transfer_in_internal",
						Regex:      `Internal Transfer\nAmount:(?P<currency>SAR|USD)\s*(?P<amount>[\d,]+\.?\d*)\nTo:(?P<to>\d+)\nFrom:(?P<from>[^\n]+)`,
						Intent:     model.IntentIncome,
						Confidence: 0.9,
					},
					{
						Name:       "alrajhi_atm",
						Regex:      `Withdrawal:ATM\nBy:(?P<card>\d+);(?P<method>[^\n]+)\nAmount:(?P<currency>SAR|USD)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentExpense,
						Category:   "Cash",
						Confidence: 0.9,
					},
				},
			},
			"jkb": {
				Senders:         []string{"JKB"},
				AccountID:       accountRef(3),
				DefaultCurrency: "JOD",
				Patterns: []Pattern{
					{
						Name:       "jkb_pos",
						Regex:      `You have an approved purchase trx on POS for (?P<currency>SAR|JOD|AED|BHD|EGP|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)\s+on your card`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "jkb_atm",
						Regex:      `You have an approved withdrawal trx for (?P<currency>SAR|JOD|AED|BHD|EGP|USD)\s*(?P<amount>[\d,]+\.?\d*)\s+on your card`,
						Intent:     model.IntentExpense,
						Category:   "Cash",
						Confidence: 0.9,
					},
					{
						Name:       "jkb_declined",
						Regex:      `You have a declined trx on your card.*for\s+(?P<currency>SAR|JOD|AED|BHD|EGP|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)\s+due to insufficient`,
						Intent:     model.IntentDeclined,
						Confidence: 0.9,
					},
					{
						Name:       "jkb_fee",
						Regex:      `تم قيد مبلغ\s+(?P<amount>[\d,]+\.?\d*)\s+(?P<currency>JOD|SAR|USD)\s+على حسابكم.*عمولة تدني`,
						Intent:     model.IntentExpense,
						Category:   "Bank Fees",
						Confidence: 0.9,
					},
					{
						Name:       "jkb_fee_arabic",
						Regex:      `تم قيد مبلغ\s+(?P<amount>[\d,]+\.?\d*)\s+(?P<currency>دينار أردني|ريال سعودي|درهم إماراتي)\s+على حسابكم.*عمولة تدني`,
						Intent:     model.IntentExpense,
						Category:   "Bank Fees",
						Confidence: 0.9,
					},
					{
						Name:       "jkb_deposit",
						Regex:      `تم ايداع\s+مبلغ\s+(?P<amount>[\d,]+\.?\d*)\s+في\s+حسابك`,
						Intent:     model.IntentIncome,
						Confidence: 0.9,
					},
					{
						Name:       "jkb_credit",
						Regex:      `تم قيد\s+مبلغ\s+(?P<amount>[\d,]+\.?\d*)\s+على\s+حسابك`,
						Intent:     model.IntentIncome,
						Confidence: 0.85,
					},
					{
						Name:       "jkb_ecommerce",
						Regex:      `You have an approved Ecommerce trx\s+for\s+(?P<currency>SAR|JOD|AED|BHD|EGP|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)\s+on your card`,
						Intent:     model.IntentExpense,
						Confidence: 0.9,
					},
					{
						Name:       "jkb_reversal",
						Regex:      `You have an approved reversal trx for (?P<currency>SAR|JOD|AED|BHD|EGP|USD|EUR|GBP)\s*(?P<amount>[\d,]+\.?\d*)\s+on your card`,
						Intent:     model.IntentRefund,
						Confidence: 0.9,
					},
				},
			},
			"careem": {
				// Wallet refunds only. No ledger account.
				Senders:         []string{"CAREEM"},
				DefaultCurrency: "AED",
				Patterns: []Pattern{
					{
						Name:       "careem_refund",
						Regex:      `your order (?P<order>\d+) has been cancelled and (?P<currency>AED|SAR|JOD|USD)\s*(?P<amount>[\d,]+\.?\d*)\s+has been refunded`,
						Intent:     model.IntentRefund,
						Confidence: 0.9,
					},
				},
			},
			"amazon": {
				// Refund notifications only. No ledger account.
				Senders:         []string{"Amazon"},
				DefaultCurrency: "SAR",
				Patterns: []Pattern{
					{
						Name:       "amazon_refund",
						Regex:      `Refund Issued: Amount (?P<currency>SAR|AED|USD|EUR)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:     model.IntentRefund,
						Confidence: 0.9,
					},
				},
			},
			"tabby": {
				// Installment purchases are tracked as scheduled payments, and
				// the settlement debits arrive from the card's bank, so these
				// confirmations must never post their own ledger rows.
				Senders:         []string{"tabby", "AD-TABBY", "TABBY-AD"},
				DefaultCurrency: "AED",
				Patterns: []Pattern{
					{
						Name:                   "tabby_purchase_confirmed",
						Regex:                  `Your\s+(?P<currency>AED|SAR)\s+(?P<amount>[\d,]+\.?\d*)\s+purchase\s+at\s+(?P<merchant>.+?)\s+is\s+confirmed`,
						Intent:                 model.IntentExpense,
						Confidence:             0.9,
						NeverCreateTransaction: true,
					},
					{
						Name:                   "tabby_order_confirmed",
						Regex:                  `Order\s+of\s+(?P<amount>[\d,]+\.?\d*)\s+(?P<currency>AED|SAR)\s+from\s+(?P<merchant>.+?)\s+is\s+confirmed`,
						Intent:                 model.IntentExpense,
						Confidence:             0.9,
						NeverCreateTransaction: true,
					},
					{
						Name:                   "tabby_payment_received",
						Regex:                  `(?:We have received your payment|Payment received) of\s+(?P<currency>AED|SAR)\s*(?P<amount>[\d,]+\.?\d*)`,
						Intent:                 model.IntentIgnore,
						Confidence:             0.85,
						NeverCreateTransaction: true,
					},
				},
			},
			"tasheel": {
				Senders:         []string{"Tasheel Fin"},
				AccountID:       accountRef(4),
				DefaultCurrency: "SAR",
				Patterns: []Pattern{
					{
						Name:       "tasheel_purchase_notification",
						Regex:      `Purchase of\s+(?P<currency>USD|EUR|GBP|SAR|AED)\s*(?P<amount>[\d,]+\.?\d*)\s+at\s+(?P<merchant>[^.\n]+?)\s+on your card`,
						Intent:     model.IntentExpense,
						Subtype:    model.SubtypePurchaseNotification,
						Confidence: 0.9,
					},
					{
						Name:       "tasheel_purchase_confirmed",
						Regex:      `Your purchase at\s+(?P<merchant>[^.\n]+?)\s+for\s+(?P<currency>SAR|AED|USD)\s*(?P<amount>[\d,]+\.?\d*)\s+is confirmed`,
						Intent:     model.IntentExpense,
						Subtype:    model.SubtypePurchaseConfirmed,
						Confidence: 0.9,
					},
				},
			},
		},
	}
}
