package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/memorialqr/orderflow/internal/aws"
	"github.com/memorialqr/orderflow/internal/idempotency"
	"github.com/memorialqr/orderflow/internal/orders"
)

// ConfirmationSender sends the order confirmation email. Satisfied by
// *email.ResendClient; tests use a fake.
type ConfirmationSender interface {
	SendOrderConfirmation(ctx context.Context, o *orders.Order) error
}

// Processor handles SQS fulfillment messages and performs order lifecycle transitions.
type Processor struct {
	idempStore *idempotency.Store
	orderStore *orders.Store
	sender     ConfirmationSender
	metrics    *aws.Metrics
}

// NewProcessor creates a worker processor with its dependencies injected.
func NewProcessor(dynamo aws.DynamoDBAPI, idempTable, ordersTable string, sender ConfirmationSender, metrics *aws.Metrics) *Processor {
	return &Processor{
		idempStore: idempotency.NewStore(dynamo, idempTable, 48*time.Hour),
		orderStore: orders.NewStore(dynamo, ordersTable),
		sender:     sender,
		metrics:    metrics,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			p.metrics.Count(ctx, aws.MetricFulfillmentFailures, 1, nil)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg FulfillmentMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] received order=%s idempotency_key=%s corr=%s",
		msg.OrderNumber, msg.IdempotencyKey, msg.CorrelationID)

	// Step 1: Read the current order
	order, err := p.orderStore.Get(ctx, msg.OrderNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		// Should never happen — DLQ if it does
		return fmt.Errorf("order not found: %s", msg.OrderNumber)
	}

	// Step 2: Move PENDING -> PROCESSING (idempotent)
	err = p.orderStore.UpdateStatus(ctx, msg.OrderNumber, orders.StatusPending, orders.StatusProcessing)
	if errors.Is(err, orders.ErrStatusMismatch) {
		// Already processed or competing worker:
		// If already COMPLETED -> treat as success.
		// If already FAILED -> fail permanently.
		// If already PROCESSING -> another worker took it — return nil to swallow duplicated messages.
		o2, _ := p.orderStore.Get(ctx, msg.OrderNumber)
		if o2 == nil {
			return fmt.Errorf("order vanished mid-processing: %s", msg.OrderNumber)
		}
		switch o2.Status {
		case orders.StatusCompleted:
			log.Printf("[worker] already completed order=%s", msg.OrderNumber)
			return nil
		case orders.StatusFailed:
			return fmt.Errorf("order=%s is already FAILED", msg.OrderNumber)
		case orders.StatusProcessing:
			log.Printf("[worker] duplicate processing event for order=%s", msg.OrderNumber)
			return nil
		default:
			return fmt.Errorf("unexpected status for order=%s: %s", msg.OrderNumber, o2.Status)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update status to PROCESSING: %w", err)
	}

	// Step 3: Send the confirmation email. On failure, record the attempt and
	// return the order to PENDING so the SQS retry processes it again.
	if err := p.sender.SendOrderConfirmation(ctx, order); err != nil {
		_ = p.orderStore.IncrementAttempts(ctx, msg.OrderNumber)
		_ = p.orderStore.UpdateStatus(ctx, msg.OrderNumber, orders.StatusProcessing, orders.StatusPending)
		return fmt.Errorf("confirmation email for order=%s: %w", msg.OrderNumber, err)
	}

	// Step 4: Complete order: PROCESSING -> COMPLETED
	err = p.orderStore.UpdateStatus(ctx, msg.OrderNumber, orders.StatusProcessing, orders.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to update status to COMPLETED: %w", err)
	}

	// Step 5: Refresh the idempotency record so replays see the final state.
	response := fmt.Sprintf(`{"success":true,"order":{"id":%q,"orderNumber":%q,"status":%q}}`,
		order.OrderID, msg.OrderNumber, orders.StatusCompleted)
	if err := p.idempStore.MarkDone(ctx, msg.IdempotencyKey, response, 200); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}

	p.metrics.Count(ctx, aws.MetricOrdersFulfilled, 1, map[string]string{"Plan": order.PlanType})
	log.Printf("[worker] completed order=%s", msg.OrderNumber)
	return nil
}
