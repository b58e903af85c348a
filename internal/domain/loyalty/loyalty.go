// Package loyalty classifies customers into discount tiers by tenure and
// computes the resulting discount.
package loyalty

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop/internal/domain/customer"
)

// Tier is a tenure-based discount bucket.
type Tier string

const (
	// TierBasic applies to customers enrolled for less than one year.
	TierBasic Tier = "BASIC"
	// TierBronze applies from one up to three years of tenure.
	TierBronze Tier = "BRONZE"
	// TierSilver applies from three up to five years of tenure.
	TierSilver Tier = "SILVER"
	// TierGold applies from five years of tenure on.
	TierGold Tier = "GOLD"
)

// bracket is one row of the tenure table: customers with at least minYears of
// tenure fall into tier unless a later row also matches.
type bracket struct {
	minYears int
	tier     Tier
	rate     decimal.Decimal
}

// brackets is ordered by minYears; lower bounds are inclusive.
var brackets = []bracket{
	{minYears: 0, tier: TierBasic, rate: decimal.Zero},
	{minYears: 1, tier: TierBronze, rate: decimal.RequireFromString("0.03")},
	{minYears: 3, tier: TierSilver, rate: decimal.RequireFromString("0.05")},
	{minYears: 5, tier: TierGold, rate: decimal.RequireFromString("0.10")},
}

// ClassifyTenure maps whole years of tenure to a tier. Boundary values belong
// to the higher tier and negative input is treated as zero.
func ClassifyTenure(years int) Tier {
	tier := brackets[0].tier
	for _, b := range brackets {
		if years < b.minYears {
			break
		}
		tier = b.tier
	}
	return tier
}

// Rate returns the discount rate of the tier as a fraction. Unknown tiers have
// a zero rate.
func (t Tier) Rate() decimal.Decimal {
	for _, b := range brackets {
		if b.tier == t {
			return b.rate
		}
	}
	return decimal.Zero
}

func (t Tier) String() string {
	return string(t)
}

// Discount returns amount multiplied by the tier rate. No rounding is applied.
func Discount(t Tier, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(t.Rate())
}

// Profile is the loyalty standing of a customer at a point in time.
type Profile struct {
	CustomerID  int64
	TenureYears int
	Tier        Tier
}

// ForCustomer computes the loyalty profile of c as of now.
func ForCustomer(c *customer.Customer, now time.Time) Profile {
	years := c.TenureYears(now)
	return Profile{
		CustomerID:  c.ID,
		TenureYears: years,
		Tier:        ClassifyTenure(years),
	}
}
