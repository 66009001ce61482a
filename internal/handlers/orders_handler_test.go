package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/orderflow/internal/awstest"
	"github.com/memorialqr/orderflow/internal/catalog"
	"github.com/memorialqr/orderflow/internal/orders"
)

const (
	testOrdersTable = "orders-table"
	testIdempTable  = "idempotency-table"
)

func newTestRouter(mock *awstest.Dynamo, queue *awstest.SQS) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterOrdersRoutes(r, HandlerConfig{
		DynamoDBClient:   mock,
		SQSClient:        queue,
		IdempotencyTable: testIdempTable,
		OrdersTable:      testOrdersTable,
		QueueURL:         "https://sqs.test/queue",
		TTLWindow:        48 * time.Hour,
	})
	return r
}

func checkoutBody(t *testing.T, mutate func(map[string]interface{})) []byte {
	t.Helper()
	body := map[string]interface{}{
		"planType":      catalog.PlanStandard,
		"plaqueColor":   "black",
		"firstName":     "Jane",
		"lastName":      "Doe",
		"customerEmail": "jane@example.com",
		"addressLine1":  "123 Main St",
		"city":          "Springfield",
		"state":         "IL",
		"zip":           "62704",
		"paymentId":     "tok_abc123",
		"amountCents":   catalog.TotalCents(catalog.PlanStandard, nil),
	}
	if mutate != nil {
		mutate(body)
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return b
}

func postCheckout(r *gin.Engine, body []byte, idempKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/process", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if idempKey != "" {
		req.Header.Set("Idempotency-Key", idempKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type checkoutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Order   struct {
		ID          string `json:"id"`
		OrderNumber string `json:"orderNumber"`
	} `json:"order"`
}

func TestProcessCheckout_Success(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	r := newTestRouter(mock, queue)

	w := postCheckout(r, checkoutBody(t, nil), "attempt-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp checkoutResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", w.Body.String())
	}
	if resp.Order.OrderNumber != "MQ-1001" {
		t.Fatalf("orderNumber = %s, want MQ-1001", resp.Order.OrderNumber)
	}
	if resp.Order.ID == "" {
		t.Fatal("order id missing")
	}
	if loc := w.Header().Get("Location"); loc != "/api/orders/MQ-1001" {
		t.Fatalf("Location = %s", loc)
	}
	if queue.SentCount() != 1 {
		t.Fatalf("fulfillment messages = %d, want 1", queue.SentCount())
	}
	if mock.Raw(testOrdersTable, "MQ-1001") == nil {
		t.Fatal("order not persisted")
	}
}

func TestProcessCheckout_MissingIdempotencyKey(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	r := newTestRouter(mock, queue)

	w := postCheckout(r, checkoutBody(t, nil), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if queue.SentCount() != 0 {
		t.Fatalf("no message should be sent, got %d", queue.SentCount())
	}
}

func TestProcessCheckout_ValidationBlocksSubmission(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	r := newTestRouter(mock, queue)

	for name, mutate := range map[string]func(map[string]interface{}){
		"empty first name": func(b map[string]interface{}) { b["firstName"] = "" },
		"bad email":        func(b map[string]interface{}) { b["customerEmail"] = "not-an-email" },
		"missing payment":  func(b map[string]interface{}) { delete(b, "paymentId") },
		"amount mismatch":  func(b map[string]interface{}) { b["amountCents"] = 1 },
	} {
		w := postCheckout(r, checkoutBody(t, mutate), "attempt-x")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}

	if queue.SentCount() != 0 {
		t.Fatalf("invalid submissions must not reach the queue, got %d messages", queue.SentCount())
	}
}

func TestProcessCheckout_DuplicateKeyReplaysResponse(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	r := newTestRouter(mock, queue)

	first := postCheckout(r, checkoutBody(t, nil), "attempt-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}

	second := postCheckout(r, checkoutBody(t, nil), "attempt-1")
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", second.Code)
	}

	var a, b checkoutResponse
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.Order.OrderNumber != b.Order.OrderNumber || a.Order.ID != b.Order.ID {
		t.Fatalf("replay returned a different order: %+v vs %+v", a.Order, b.Order)
	}

	// only one order, one fulfillment message
	if queue.SentCount() != 1 {
		t.Fatalf("fulfillment messages = %d, want 1", queue.SentCount())
	}
	if mock.Raw(testOrdersTable, b.Order.OrderNumber) == nil {
		t.Fatal("original order missing")
	}
}

func TestProcessCheckout_EnqueueFailureMarksAttemptFailed(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	queue.Fail = true
	r := newTestRouter(mock, queue)

	w := postCheckout(r, checkoutBody(t, nil), "attempt-1")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	// a retry with the same key reports the failed previous attempt
	retry := postCheckout(r, checkoutBody(t, nil), "attempt-1")
	if retry.Code != http.StatusInternalServerError {
		t.Fatalf("retry status = %d, want 500", retry.Code)
	}
	var resp checkoutResponse
	if err := json.Unmarshal(retry.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode retry: %v", err)
	}
	if resp.Error != "previous_attempt_failed" {
		t.Fatalf("retry error = %q", resp.Error)
	}
}

func TestGetOrder(t *testing.T) {
	mock := awstest.NewDynamo()
	queue := awstest.NewSQS()
	r := newTestRouter(mock, queue)

	postCheckout(r, checkoutBody(t, nil), "attempt-1")

	req := httptest.NewRequest(http.MethodGet, "/api/orders/MQ-1001", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool         `json:"success"`
		Order   orders.Order `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.OrderNumber != "MQ-1001" || resp.Order.CustomerName != "Jane Doe" {
		t.Fatalf("unexpected order: %+v", resp.Order)
	}
	// memorial_id must serialize as null before linking
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	var orderRaw map[string]json.RawMessage
	_ = json.Unmarshal(raw["order"], &orderRaw)
	if string(orderRaw["memorial_id"]) != "null" {
		t.Fatalf("memorial_id = %s, want null", orderRaw["memorial_id"])
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	mock := awstest.NewDynamo()
	r := newTestRouter(mock, awstest.NewSQS())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/MQ-9999", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCustomizeOrder(t *testing.T) {
	mock := awstest.NewDynamo()
	r := newTestRouter(mock, awstest.NewSQS())

	postCheckout(r, checkoutBody(t, nil), "attempt-1")

	body, _ := json.Marshal(map[string]interface{}{
		"plaqueColor":        "silver",
		"boxPersonalization": "Forever loved",
		"addons":             []string{catalog.AddonWoodenQR},
	})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/MQ-1001/customize", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/orders/MQ-1001", nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	var resp struct {
		Order orders.Order `json:"order"`
	}
	if err := json.Unmarshal(getW.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.PlaqueColor != "silver" {
		t.Fatalf("plaque color = %s", resp.Order.PlaqueColor)
	}
	want := catalog.TotalCents(catalog.PlanStandard, []string{catalog.AddonWoodenQR})
	if resp.Order.AmountCents != want {
		t.Fatalf("amount = %d, want %d", resp.Order.AmountCents, want)
	}
}

func TestCustomizeOrder_NotFound(t *testing.T) {
	mock := awstest.NewDynamo()
	r := newTestRouter(mock, awstest.NewSQS())

	body, _ := json.Marshal(map[string]interface{}{"plaqueColor": "silver"})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/MQ-9999/customize", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestLinkMemorial_OnceOnly(t *testing.T) {
	mock := awstest.NewDynamo()
	r := newTestRouter(mock, awstest.NewSQS())

	postCheckout(r, checkoutBody(t, nil), "attempt-1")

	link := func(memorialID string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"memorialId": memorialID})
		req := httptest.NewRequest(http.MethodPost, "/api/orders/MQ-1001/memorial", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := link("mem-abc"); w.Code != http.StatusOK {
		t.Fatalf("first link status = %d, body %s", w.Code, w.Body.String())
	}
	if w := link("mem-other"); w.Code != http.StatusConflict {
		t.Fatalf("second link status = %d, want 409", w.Code)
	}

	// the confirmation page now sees the linked memorial
	getReq := httptest.NewRequest(http.MethodGet, "/api/orders/MQ-1001", nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	var resp struct {
		Order orders.Order `json:"order"`
	}
	if err := json.Unmarshal(getW.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.MemorialID == nil || *resp.Order.MemorialID != "mem-abc" {
		t.Fatalf("memorial id = %v, want mem-abc", resp.Order.MemorialID)
	}
}

func TestLinkMemorial_MissingOrder(t *testing.T) {
	mock := awstest.NewDynamo()
	r := newTestRouter(mock, awstest.NewSQS())

	body, _ := json.Marshal(map[string]string{"memorialId": "mem-abc"})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/MQ-9999/memorial", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
