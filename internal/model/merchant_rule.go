package model

import (
	"fmt"
	"time"
)

// MerchantRule categorizes transactions whose cleaned merchant name matches
// a SQL wildcard pattern. Rules are evaluated highest priority first; the
// single best match is applied after insert.
type MerchantRule struct {
	CreatedAt       time.Time
	MerchantPattern string // case-insensitive SQL LIKE pattern, e.g. %CARREFOUR%
	Category        string
	Subcategory     string
	StoreName       string
	ID              int64
	Priority        int
	Confidence      float64
	IsGrocery       bool
	IsRestaurant    bool
	IsFoodRelated   bool
	IsActive        bool
}

// Validate ensures the rule has usable data.
func (r *MerchantRule) Validate() error {
	if r.MerchantPattern == "" {
		return fmt.Errorf("merchant pattern is required")
	}
	if r.Category == "" {
		return fmt.Errorf("category is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}
	return nil
}
