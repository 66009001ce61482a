package main

// FulfillmentMessage is the payload sent from API -> SQS -> worker.
type FulfillmentMessage struct {
	OrderNumber    string `json:"order_number"`
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	CustomerEmail  string `json:"customer_email,omitempty"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}
