package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memorialqr/orderflow/internal/awstest"
	"github.com/memorialqr/orderflow/internal/catalog"
)

const (
	testOrdersTable = "orders-table"
	testIdempTable  = "idempotency-table"
)

func testOrder(orderNumber string) Order {
	return Order{
		OrderNumber:   orderNumber,
		OrderID:       "11111111-2222-3333-4444-555555555555",
		PlanType:      catalog.PlanStandard,
		PlaqueColor:   "black",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		Shipping: Address{
			Line1: "123 Main St",
			City:  "Springfield",
			State: "IL",
			Zip:   "62704",
		},
		PaymentID:   "tok_abc",
		AmountCents: catalog.TotalCents(catalog.PlanStandard, nil),
		Status:      StatusPending,
	}
}

func createTestOrder(t *testing.T, s *Store, mock *awstest.Dynamo, orderNumber, idempKey string) {
	t.Helper()
	idempItem := map[string]interface{}{
		"idempotency_key": idempKey,
		"status":          "IN_PROGRESS",
		"order_number":    orderNumber,
	}
	if err := s.CreateWithIdempotencyTransaction(context.Background(), testIdempTable, idempItem, testOrder(orderNumber), 48*time.Hour); err != nil {
		t.Fatalf("create order: %v", err)
	}
}

func TestCreateWithIdempotencyTransaction(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	got, err := s.Get(ctx, "MQ-1001")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil {
		t.Fatal("expected order, got nil")
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
	if got.MemorialID != nil {
		t.Fatalf("new order should have no memorial linked")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on create")
	}

	// idempotency record landed in the other table
	if mock.Raw(testIdempTable, "key-1") == nil {
		t.Fatal("idempotency record missing")
	}
	// and carries a TTL added by the store
	if _, ok := mock.Raw(testIdempTable, "key-1")["expires_at"]; !ok {
		t.Fatal("idempotency record missing expires_at")
	}
}

func TestCreateWithIdempotencyTransaction_DuplicateKey(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	idempItem := map[string]interface{}{"idempotency_key": "key-1", "status": "IN_PROGRESS"}
	err := s.CreateWithIdempotencyTransaction(context.Background(), testIdempTable, idempItem, testOrder("MQ-1002"), 48*time.Hour)
	if !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("expected ErrDuplicateAttempt, got %v", err)
	}

	// the second order must not exist
	o, err := s.Get(context.Background(), "MQ-1002")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if o != nil {
		t.Fatal("duplicate attempt must not create a second order")
	}
}

func TestGet_NotFound(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)

	o, err := s.Get(context.Background(), "MQ-9999")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if o != nil {
		t.Fatalf("expected nil for missing order, got %+v", o)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	if err := s.UpdateStatus(ctx, "MQ-1001", StatusPending, StatusProcessing); err != nil {
		t.Fatalf("PENDING -> PROCESSING: %v", err)
	}

	// stale expectation fails
	err := s.UpdateStatus(ctx, "MQ-1001", StatusPending, StatusCompleted)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}

	if err := s.UpdateStatus(ctx, "MQ-1001", StatusProcessing, StatusCompleted); err != nil {
		t.Fatalf("PROCESSING -> COMPLETED: %v", err)
	}

	o, _ := s.Get(ctx, "MQ-1001")
	if o.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", o.Status)
	}
}

func TestUpdateCustomization(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	addons := []string{catalog.AddonWoodenQR}
	amount := catalog.TotalCents(catalog.PlanStandard, addons)
	if err := s.UpdateCustomization(ctx, "MQ-1001", "silver", "In loving memory", addons, amount); err != nil {
		t.Fatalf("UpdateCustomization: %v", err)
	}

	o, _ := s.Get(ctx, "MQ-1001")
	if o.PlaqueColor != "silver" {
		t.Fatalf("plaque color = %s, want silver", o.PlaqueColor)
	}
	if o.BoxPersonalization != "In loving memory" {
		t.Fatalf("personalization = %q", o.BoxPersonalization)
	}
	if len(o.Addons) != 1 || o.Addons[0] != catalog.AddonWoodenQR {
		t.Fatalf("addons = %v", o.Addons)
	}
	if o.AmountCents != amount {
		t.Fatalf("amount = %d, want %d", o.AmountCents, amount)
	}
}

func TestUpdateCustomization_ClosedAfterPending(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")
	if err := s.UpdateStatus(ctx, "MQ-1001", StatusPending, StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	err := s.UpdateCustomization(ctx, "MQ-1001", "gold", "", nil, 9700)
	if !errors.Is(err, ErrCustomizeClosed) {
		t.Fatalf("expected ErrCustomizeClosed, got %v", err)
	}
}

func TestLinkMemorial_Once(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	if err := s.LinkMemorial(ctx, "MQ-1001", "mem-abc"); err != nil {
		t.Fatalf("first link: %v", err)
	}

	o, _ := s.Get(ctx, "MQ-1001")
	if o.MemorialID == nil || *o.MemorialID != "mem-abc" {
		t.Fatalf("memorial id not set: %+v", o.MemorialID)
	}

	err := s.LinkMemorial(ctx, "MQ-1001", "mem-other")
	if !errors.Is(err, ErrMemorialLinked) {
		t.Fatalf("expected ErrMemorialLinked, got %v", err)
	}

	// first link survives
	o, _ = s.Get(ctx, "MQ-1001")
	if *o.MemorialID != "mem-abc" {
		t.Fatalf("memorial id overwritten to %s", *o.MemorialID)
	}
}

func TestLinkMemorial_MissingOrder(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)

	err := s.LinkMemorial(context.Background(), "MQ-9999", "mem-abc")
	if !errors.Is(err, ErrMemorialLinked) {
		t.Fatalf("expected conditional failure for missing order, got %v", err)
	}
}

func TestIncrementAttempts(t *testing.T) {
	mock := awstest.NewDynamo()
	s := NewStore(mock, testOrdersTable)
	ctx := context.Background()

	createTestOrder(t, s, mock, "MQ-1001", "key-1")

	if err := s.IncrementAttempts(ctx, "MQ-1001"); err != nil {
		t.Fatalf("IncrementAttempts: %v", err)
	}
	if err := s.IncrementAttempts(ctx, "MQ-1001"); err != nil {
		t.Fatalf("IncrementAttempts: %v", err)
	}

	o, _ := s.Get(ctx, "MQ-1001")
	if o.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", o.Attempts)
	}
}
