package orders

import "time"

// Order statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Address is the shipping address captured at checkout.
type Address struct {
	Line1 string `dynamodbav:"line1" json:"line1"`
	Line2 string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City  string `dynamodbav:"city" json:"city"`
	State string `dynamodbav:"state" json:"state"`
	Zip   string `dynamodbav:"zip" json:"zip"`
}

// Order represents the item stored in the orders DynamoDB table, keyed by the
// human-readable order number.
type Order struct {
	OrderNumber string `dynamodbav:"order_number" json:"orderNumber"` // PK, e.g. MQ-1001
	OrderID     string `dynamodbav:"order_id" json:"id"`              // internal UUID

	PlanType           string   `dynamodbav:"plan_type" json:"planType"`
	PlaqueColor        string   `dynamodbav:"plaque_color,omitempty" json:"plaqueColor,omitempty"`
	BoxPersonalization string   `dynamodbav:"box_personalization,omitempty" json:"boxPersonalization,omitempty"`
	Addons             []string `dynamodbav:"addons,omitempty" json:"addons,omitempty"`
	StoneEngravingText string   `dynamodbav:"stone_engraving_text,omitempty" json:"stoneEngravingText,omitempty"`
	PicturePlaqueURL   string   `dynamodbav:"picture_plaque_url,omitempty" json:"picturePlaqueUrl,omitempty"`

	CustomerName  string  `dynamodbav:"customer_name" json:"customerName"`
	CustomerEmail string  `dynamodbav:"customer_email" json:"customerEmail"`
	CustomerPhone string  `dynamodbav:"customer_phone,omitempty" json:"customerPhone,omitempty"`
	Shipping      Address `dynamodbav:"shipping_address" json:"shippingAddress"`

	PaymentID    string `dynamodbav:"payment_id" json:"paymentId"`
	AmountCents  int64  `dynamodbav:"amount_cents" json:"amountCents"`
	MonthlyCents int64  `dynamodbav:"monthly_cents,omitempty" json:"monthlyCents,omitempty"`

	// MemorialID stays nil until a memorial is linked; the link is write-once.
	// The JSON key keeps the snake_case form the confirmation page reads.
	MemorialID *string `dynamodbav:"memorial_id,omitempty" json:"memorial_id"`

	Status    string    `dynamodbav:"status" json:"status"` // PENDING | PROCESSING | COMPLETED | FAILED
	Attempts  int       `dynamodbav:"attempts,omitempty" json:"-"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
