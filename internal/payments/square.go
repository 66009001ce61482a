// Package payments holds thin HTTP clients for the payment processors the
// checkout flow talks to. Card tokenization itself happens in the embedded
// widget; these clients only cover the server-side seams (customer records,
// hosted checkout sessions).
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// SquareConfig carries the connection settings for the Square API.
type SquareConfig struct {
	BaseURL     string
	AccessToken string
}

// SquareConfigFromEnv reads SQUARE_ACCESS_TOKEN (required) and SQUARE_API_URL
// (optional, defaults to the production endpoint).
func SquareConfigFromEnv() (SquareConfig, error) {
	token := os.Getenv("SQUARE_ACCESS_TOKEN")
	if token == "" {
		return SquareConfig{}, fmt.Errorf("square configuration missing: SQUARE_ACCESS_TOKEN not set")
	}
	base := os.Getenv("SQUARE_API_URL")
	if base == "" {
		base = "https://connect.squareup.com"
	}
	return SquareConfig{BaseURL: base, AccessToken: token}, nil
}

// SquareClient creates customer records in Square.
type SquareClient struct {
	cfg  SquareConfig
	http *http.Client
}

// NewSquareClient returns a client. httpClient may be nil; a 10s-timeout
// default is used then.
func NewSquareClient(cfg SquareConfig, httpClient *http.Client) *SquareClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SquareClient{cfg: cfg, http: httpClient}
}

// Customer is the subset of Square's customer object the flow needs.
type Customer struct {
	ID string `json:"id"`
}

type squareCustomerRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	EmailAddress   string `json:"email_address"`
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	PhoneNumber    string `json:"phone_number,omitempty"`
}

type squareCustomerResponse struct {
	Customer *Customer `json:"customer"`
	Errors   []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors,omitempty"`
}

// CreateCustomer registers a customer with Square and returns its id.
func (c *SquareClient) CreateCustomer(ctx context.Context, email, givenName, familyName, phoneNumber string) (*Customer, error) {
	payload := squareCustomerRequest{
		IdempotencyKey: uuid.NewString(),
		EmailAddress:   email,
		GivenName:      givenName,
		FamilyName:     familyName,
		PhoneNumber:    phoneNumber,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal customer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/customers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build customer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("square request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read square response: %w", err)
	}

	var out squareCustomerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode square response (status %d): %w", resp.StatusCode, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("square error %s: %s", out.Errors[0].Code, out.Errors[0].Detail)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.Customer == nil {
		return nil, fmt.Errorf("square returned status %d without customer", resp.StatusCode)
	}
	return out.Customer, nil
}
