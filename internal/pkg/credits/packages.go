package credits

import (
	"fmt"
	"strings"
)

// CreditPackage is immutable reference data describing a purchasable credit
// bundle.
type CreditPackage struct {
	ID       string
	Name     string
	Credits  int64
	PriceTRY float64
}

// BonusTier awards extra credits for larger purchases. Tiers are kept sorted
// by threshold descending so the highest matching tier wins; at most one tier
// applies.
type BonusTier struct {
	Threshold int64
	Percent   int64
}

var bonusTiers = []BonusTier{
	{Threshold: 1000, Percent: 20},
	{Threshold: 500, Percent: 10},
}

var packageCatalog = map[string]CreditPackage{
	"starter": {ID: "starter", Name: "Başlangıç Paketi", Credits: 100, PriceTRY: 50.0},
	"popular": {ID: "popular", Name: "Popüler Paket", Credits: 300, PriceTRY: 150.0},
	"premium": {ID: "premium", Name: "Premium Paket", Credits: 500, PriceTRY: 250.0},
	"master":  {ID: "master", Name: "Usta Paketi", Credits: 1000, PriceTRY: 450.0},
}

// packageAliases maps legacy numeric package ids from the old checkout flow.
var packageAliases = map[string]string{
	"1": "starter",
	"2": "popular",
	"3": "premium",
	"4": "master",
}

// LookupPackage resolves a package id from the catalog. There is no fallback
// package: an unknown id is a hard failure.
func LookupPackage(id string) (CreditPackage, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return CreditPackage{}, fmt.Errorf("%w: package id is missing", ErrPackageNotFound)
	}
	if canonical, ok := packageAliases[key]; ok {
		key = canonical
	}
	pkg, ok := packageCatalog[key]
	if !ok {
		return CreditPackage{}, fmt.Errorf("%w: %q", ErrPackageNotFound, id)
	}
	return pkg, nil
}

// BonusCredits computes the bonus for a base credit amount from the highest
// matching tier, rounded down to a whole credit.
func BonusCredits(baseCredits int64) int64 {
	for _, tier := range bonusTiers {
		if baseCredits >= tier.Threshold {
			return baseCredits * tier.Percent / 100
		}
	}
	return 0
}
