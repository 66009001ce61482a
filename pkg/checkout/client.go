package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrOrderNotFound is the terminal "no such order" outcome of a lookup. It is
// distinct from transient fetch failures, which PollOrder retries.
var ErrOrderNotFound = errors.New("order not found")

// CheckoutForm carries the full checkout payload: customer, shipping,
// customization and the payment confirmation token.
type CheckoutForm struct {
	PlanType           string   `json:"planType"`
	PlaqueColor        string   `json:"plaqueColor,omitempty"`
	BoxPersonalization string   `json:"boxPersonalization,omitempty"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	CustomerEmail      string   `json:"customerEmail"`
	CustomerPhone      string   `json:"customerPhone,omitempty"`
	AddressLine1       string   `json:"addressLine1"`
	AddressLine2       string   `json:"addressLine2,omitempty"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	Zip                string   `json:"zip"`
	Addons             []string `json:"addons,omitempty"`
	StoneEngravingText string   `json:"stoneEngravingText,omitempty"`
	PicturePlaqueURL   string   `json:"picturePlaqueUrl,omitempty"`
	PaymentID          string   `json:"paymentId"`
	AmountCents        int64    `json:"amountCents"`
	MonthlyCents       int64    `json:"monthlyCents,omitempty"`
}

// CreatedOrder is the order reference returned by a successful checkout.
type CreatedOrder struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
}

// Order is the confirmation-page view of an order.
type Order struct {
	ID                 string   `json:"id"`
	OrderNumber        string   `json:"orderNumber"`
	PlanType           string   `json:"planType"`
	PlaqueColor        string   `json:"plaqueColor,omitempty"`
	BoxPersonalization string   `json:"boxPersonalization,omitempty"`
	Addons             []string `json:"addons,omitempty"`
	CustomerName       string   `json:"customerName"`
	CustomerEmail      string   `json:"customerEmail"`
	Shipping           struct {
		Line1 string `json:"line1"`
		Line2 string `json:"line2,omitempty"`
		City  string `json:"city"`
		State string `json:"state"`
		Zip   string `json:"zip"`
	} `json:"shippingAddress"`
	AmountCents int64   `json:"amountCents"`
	MemorialID  *string `json:"memorial_id"`
	Status      string  `json:"status"`
}

// HasMemorial reports whether a memorial page is already linked. The
// confirmation page shows "View Memorial Page" when true and the
// "Create Your Memorial Now" call-to-action otherwise.
func (o *Order) HasMemorial() bool {
	return o.MemorialID != nil && *o.MemorialID != ""
}

// MemorialURL returns the memorial page path, or "" when none is linked.
func (o *Order) MemorialURL() string {
	if !o.HasMemorial() {
		return ""
	}
	return "/memorial/" + *o.MemorialID
}

// Client talks to the order API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the API at baseURL. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
}

// ProcessCheckout posts the aggregated order payload under the given
// idempotency key and returns the created order reference.
func (c *Client) ProcessCheckout(ctx context.Context, form CheckoutForm, idempotencyKey string) (*CreatedOrder, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/checkout/process", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// non-JSON body counts as a failed submission
		return nil, fmt.Errorf("malformed checkout response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("checkout failed: %s", env.Error)
		}
		return nil, fmt.Errorf("checkout failed with status %d", resp.StatusCode)
	}

	var created CreatedOrder
	if err := json.Unmarshal(env.Order, &created); err != nil {
		return nil, fmt.Errorf("decode created order: %w", err)
	}
	if created.OrderNumber == "" {
		return nil, fmt.Errorf("checkout response missing order number")
	}
	return &created, nil
}

// GetOrder fetches an order by number. A 404 maps to ErrOrderNotFound.
func (c *Client) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/"+orderNumber, nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOrderNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order lookup returned status %d", resp.StatusCode)
	}

	var env struct {
		Success bool   `json:"success"`
		Order   *Order `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if !env.Success || env.Order == nil {
		return nil, fmt.Errorf("order response missing order")
	}
	return env.Order, nil
}

// PollOrder fetches the order with bounded exponential backoff. An
// ErrOrderNotFound is terminal and returned immediately; transient failures
// are retried up to maxAttempts with the delay doubling from baseDelay.
func (c *Client) PollOrder(ctx context.Context, orderNumber string, maxAttempts int, baseDelay time.Duration) (*Order, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := baseDelay
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		o, err := c.GetOrder(ctx, orderNumber)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("order poll gave up after %d attempts: %w", maxAttempts, lastErr)
}

// Customize issues the customization PATCH for a pending order.
func (c *Client) Customize(ctx context.Context, orderNumber string, draft CustomizationDraft) error {
	payload := map[string]interface{}{
		"plaqueColor":        draft.PlaqueColor,
		"boxPersonalization": draft.BoxPersonalization,
		"addons":             draft.Addons,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal customize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/api/orders/"+orderNumber+"/customize", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build customize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("customize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var env apiEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			return fmt.Errorf("customize failed: %s", env.Error)
		}
		return fmt.Errorf("customize returned status %d", resp.StatusCode)
	}
	return nil
}
