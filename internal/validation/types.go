package validation

// CheckoutRequest is the payload for POST /api/checkout/process. Field names
// match the browser client's wire format.
type CheckoutRequest struct {
	PlanType           string `json:"planType" validate:"required"`
	PlaqueColor        string `json:"plaqueColor,omitempty"`
	BoxPersonalization string `json:"boxPersonalization,omitempty" validate:"max=150"`

	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	AddressLine1 string `json:"addressLine1" validate:"required"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	Zip          string `json:"zip" validate:"required"`

	Addons             []string `json:"addons,omitempty" validate:"dive,oneof=wooden-qr picture-plaque stone-qr"`
	StoneEngravingText string   `json:"stoneEngravingText,omitempty" validate:"max=150"`
	PicturePlaqueURL   string   `json:"picturePlaqueUrl,omitempty" validate:"omitempty,url"`

	// PaymentID is the opaque confirmation token returned by the payment
	// widget. An order is never created without one.
	PaymentID string `json:"paymentId" validate:"required"`

	AmountCents  int64 `json:"amountCents" validate:"required,gt=0"`
	MonthlyCents int64 `json:"monthlyCents,omitempty" validate:"gte=0"`
}

// CustomizeRequest is the payload for PATCH /api/orders/:orderNumber/customize.
type CustomizeRequest struct {
	PlaqueColor        string   `json:"plaqueColor,omitempty"`
	BoxPersonalization string   `json:"boxPersonalization,omitempty" validate:"max=150"`
	Addons             []string `json:"addons,omitempty" validate:"dive,oneof=wooden-qr picture-plaque stone-qr"`
}

// LinkMemorialRequest is the payload for POST /api/orders/:orderNumber/memorial.
type LinkMemorialRequest struct {
	MemorialID string `json:"memorialId" validate:"required"`
}

// CreateCustomerRequest is the payload for POST /api/square/create-customer.
type CreateCustomerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	GivenName   string `json:"givenName" validate:"required"`
	FamilyName  string `json:"familyName" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// CheckoutItem is one line of a hosted-checkout session request.
type CheckoutItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CreateCheckoutSessionRequest is the payload for POST /api/stripe/create-checkout.
type CreateCheckoutSessionRequest struct {
	Items []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}
