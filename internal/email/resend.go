// Package email sends transactional mail through the Resend HTTP API.
// Delivery, bounces and suppression stay Resend's problem.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/memorialqr/orderflow/internal/orders"
)

// ResendConfig carries the Resend API settings.
type ResendConfig struct {
	BaseURL    string
	APIKey     string
	From       string
	AdminEmail string // optional bcc for order notifications
}

// ResendConfigFromEnv reads RESEND_API_KEY (required), RESEND_API_URL,
// ORDER_EMAIL_FROM and ADMIN_EMAIL.
func ResendConfigFromEnv() (ResendConfig, error) {
	key := os.Getenv("RESEND_API_KEY")
	if key == "" {
		return ResendConfig{}, fmt.Errorf("resend configuration missing: RESEND_API_KEY not set")
	}
	base := os.Getenv("RESEND_API_URL")
	if base == "" {
		base = "https://api.resend.com"
	}
	from := os.Getenv("ORDER_EMAIL_FROM")
	if from == "" {
		from = "Memorial QR <orders@memorialqr.com>"
	}
	return ResendConfig{
		BaseURL:    base,
		APIKey:     key,
		From:       from,
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
	}, nil
}

// ResendClient sends mail through Resend.
type ResendClient struct {
	cfg  ResendConfig
	http *http.Client
}

// NewResendClient returns a client. httpClient may be nil.
func NewResendClient(cfg ResendConfig, httpClient *http.Client) *ResendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ResendClient{cfg: cfg, http: httpClient}
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendEmailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"` // set on error responses
}

// SendOrderConfirmation emails the customer their order summary and the
// create-your-memorial link.
func (c *ResendClient) SendOrderConfirmation(ctx context.Context, o *orders.Order) error {
	subject := fmt.Sprintf("Your Memorial QR order %s", o.OrderNumber)
	html, err := confirmationHTML(o)
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	payload := resendEmailRequest{
		From:    c.cfg.From,
		To:      []string{o.CustomerEmail},
		Subject: subject,
		HTML:    html,
	}
	if c.cfg.AdminEmail != "" {
		payload.Bcc = []string{c.cfg.AdminEmail}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read resend response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out resendEmailResponse
		if json.Unmarshal(raw, &out) == nil && out.Message != "" {
			return fmt.Errorf("resend error (status %d): %s", resp.StatusCode, out.Message)
		}
		return fmt.Errorf("resend returned status %d", resp.StatusCode)
	}
	return nil
}

// The order fields come straight from the checkout form, so the body is
// rendered with html/template to keep customer input inert in the mail.
var confirmationTmpl = template.Must(template.New("confirmation").Parse(
	`<h1>Thank you, {{.CustomerName}}</h1>` +
		`<p>Your order <strong>{{.OrderNumber}}</strong> is confirmed.</p>` +
		`<p>Plan: {{.PlanType}}{{if .PlaqueColor}} &mdash; plaque color {{.PlaqueColor}}{{end}}</p>` +
		`{{if .Addons}}<ul>{{range .Addons}}<li>{{.}}</li>{{end}}</ul>{{end}}` +
		`<p>Total: {{.Total}}</p>` +
		`<p>Ships to: {{.Shipping.Line1}}, {{.Shipping.City}}, {{.Shipping.State}} {{.Shipping.Zip}}</p>` +
		`<p><a href="https://memorialqr.com/memorial/create?order={{.OrderNumber}}">Create your memorial now</a></p>`))

func confirmationHTML(o *orders.Order) (string, error) {
	data := struct {
		*orders.Order
		Total string
	}{
		Order: o,
		Total: fmt.Sprintf("$%.2f", float64(o.AmountCents)/100),
	}
	var b bytes.Buffer
	if err := confirmationTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
