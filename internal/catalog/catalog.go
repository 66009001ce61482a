// Package catalog holds the fixed plan and add-on catalog for the checkout
// flow. Prices are in minor currency units (cents).
package catalog

// Plan identifiers accepted by the checkout endpoint.
const (
	PlanStandard = "standard"
	PlanPremium  = "premium"
	PlanLegacy   = "legacy"
)

// Add-on identifiers. These match the add-on array values on the wire.
const (
	AddonWoodenQR      = "wooden-qr"
	AddonPicturePlaque = "picture-plaque"
	AddonStoneQR       = "stone-qr"
)

// Plan describes a purchasable package tier.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	MonthlyCents int64  `json:"monthly_cents"` // 0 when the plan has no recurring component
}

// Addon describes an optional physical product.
type Addon struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

var plans = map[string]Plan{
	PlanStandard: {ID: PlanStandard, Name: "Standard Memorial", PriceCents: 9700},
	PlanPremium:  {ID: PlanPremium, Name: "Premium Memorial", PriceCents: 14700, MonthlyCents: 500},
	PlanLegacy:   {ID: PlanLegacy, Name: "Legacy Memorial", PriceCents: 19700},
}

var addons = map[string]Addon{
	AddonWoodenQR:      {ID: AddonWoodenQR, Name: "Wooden QR Stand", PriceCents: 5900},
	AddonPicturePlaque: {ID: AddonPicturePlaque, Name: "Picture Plaque", PriceCents: 8900},
	AddonStoneQR:       {ID: AddonStoneQR, Name: "Engraved Stone QR", PriceCents: 12900},
}

// PlanByID returns the plan for id. ok is false for unknown plans.
func PlanByID(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// AddonByID returns the add-on for id. ok is false for unknown add-ons.
func AddonByID(id string) (Addon, bool) {
	a, ok := addons[id]
	return a, ok
}

// TotalCents computes the one-time order total: plan price plus the price of
// every selected add-on. Unknown ids contribute zero; the validation layer
// rejects them before any total is trusted.
func TotalCents(planID string, addonIDs []string) int64 {
	var total int64
	if p, ok := plans[planID]; ok {
		total = p.PriceCents
	}
	for _, id := range addonIDs {
		if a, ok := addons[id]; ok {
			total += a.PriceCents
		}
	}
	return total
}

// ToggleAddon flips membership of id in the selection: present -> removed,
// absent -> appended. The input slice is not mutated.
func ToggleAddon(selection []string, id string) []string {
	out := make([]string, 0, len(selection)+1)
	found := false
	for _, s := range selection {
		if s == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, id)
	}
	return out
}
