package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/memorialqr/orderflow/internal/catalog"
)

// MaxCustomerNameLen is the payment processor's limit on the combined
// first + last name length. Passed through to the client unchanged.
const MaxCustomerNameLen = 45

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})

	return v
}

// checkoutStructValidation enforces the cross-field checkout rules:
// plan must exist in the catalog, combined name fits the processor limit,
// amounts match the catalog-computed totals, and add-on extras only appear
// with their add-on selected.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	plan, ok := catalog.PlanByID(req.PlanType)
	if !ok {
		sl.ReportError(req.PlanType, "planType", "PlanType", "unknown_plan", req.PlanType)
		return
	}

	if len(req.FirstName)+len(req.LastName) > MaxCustomerNameLen {
		sl.ReportError(req.LastName, "lastName", "LastName", "name_too_long",
			fmt.Sprintf("combined name exceeds %d characters", MaxCustomerNameLen))
	}

	if want := catalog.TotalCents(req.PlanType, req.Addons); req.AmountCents != want {
		sl.ReportError(req.AmountCents, "amountCents", "AmountCents", "amount_match_catalog",
			fmt.Sprintf("amount %d != catalog total %d", req.AmountCents, want))
	}

	if req.MonthlyCents != plan.MonthlyCents {
		sl.ReportError(req.MonthlyCents, "monthlyCents", "MonthlyCents", "monthly_match_plan",
			fmt.Sprintf("monthly %d != plan monthly %d", req.MonthlyCents, plan.MonthlyCents))
	}

	if req.StoneEngravingText != "" && !hasAddon(req.Addons, catalog.AddonStoneQR) {
		sl.ReportError(req.StoneEngravingText, "stoneEngravingText", "StoneEngravingText", "engraving_without_stone_qr", "")
	}
	if hasAddon(req.Addons, catalog.AddonPicturePlaque) && req.PicturePlaqueURL == "" {
		sl.ReportError(req.PicturePlaqueURL, "picturePlaqueUrl", "PicturePlaqueURL", "picture_plaque_url_required", "")
	}
}

func hasAddon(addons []string, id string) bool {
	for _, a := range addons {
		if a == id {
			return true
		}
	}
	return false
}
