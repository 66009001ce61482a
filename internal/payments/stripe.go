package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/memorialqr/orderflow/internal/catalog"
)

// StripeConfig carries the connection settings for the Stripe API plus the
// redirect targets of the hosted checkout page.
type StripeConfig struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

// StripeConfigFromEnv reads STRIPE_SECRET_KEY (required), STRIPE_API_URL
// (optional) and SITE_URL for the redirect targets.
func StripeConfigFromEnv() (StripeConfig, error) {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return StripeConfig{}, fmt.Errorf("stripe configuration missing: STRIPE_SECRET_KEY not set")
	}
	base := os.Getenv("STRIPE_API_URL")
	if base == "" {
		base = "https://api.stripe.com"
	}
	site := os.Getenv("SITE_URL")
	if site == "" {
		site = "https://memorialqr.com"
	}
	return StripeConfig{
		BaseURL:    base,
		SecretKey:  key,
		SuccessURL: site + "/checkout/success",
		CancelURL:  site + "/cart",
	}, nil
}

// StripeClient creates hosted checkout sessions for cart purchases.
type StripeClient struct {
	cfg  StripeConfig
	http *http.Client
}

// NewStripeClient returns a client. httpClient may be nil.
func NewStripeClient(cfg StripeConfig, httpClient *http.Client) *StripeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &StripeClient{cfg: cfg, http: httpClient}
}

// SessionItem is one cart line going into a checkout session.
type SessionItem struct {
	ProductID string
	Quantity  int
}

type stripeSessionResponse struct {
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreateCheckoutSession resolves each item against the catalog, builds the
// form-encoded session request and returns the hosted checkout URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []SessionItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("no items for checkout session")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("cancel_url", c.cfg.CancelURL)

	for i, it := range items {
		name, unitAmount, err := resolveProduct(it.ProductID)
		if err != nil {
			return "", err
		}
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(it.Quantity))
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(unitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read stripe response: %w", err)
	}

	var out stripeSessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode stripe response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("stripe error: %s", out.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.URL == "" {
		return "", fmt.Errorf("stripe returned status %d without session url", resp.StatusCode)
	}
	return out.URL, nil
}

func resolveProduct(productID string) (name string, unitAmount int64, err error) {
	if a, ok := catalog.AddonByID(productID); ok {
		return a.Name, a.PriceCents, nil
	}
	if p, ok := catalog.PlanByID(productID); ok {
		return p.Name, p.PriceCents, nil
	}
	return "", 0, fmt.Errorf("unknown product id %q", productID)
}
