package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/memorialqr/orderflow/internal/catalog"
)

// Flow states.
const (
	StateIdle       = "idle"
	StateSubmitting = "submitting"
	StateSucceeded  = "success"
	StateFailed     = "failed"
)

// MaxNameLen is the payment processor's combined first+last name limit.
const MaxNameLen = 45

// Pre-flight validation errors. These surface before any network request.
var (
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrNameTooLong        = fmt.Errorf("name too long: combined name must be at most %d characters", MaxNameLen)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingPayment     = errors.New("missing payment confirmation token")
)

// same simple pattern the browser form used
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Handoff is the outcome of a successful submission: the stored pending
// order plus the memorial-creation redirect target.
type Handoff struct {
	PendingOrder PendingOrder
	RedirectURL  string
}

// Flow drives the payment-capture -> order-creation state machine:
// idle -> submitting -> success | failed. A failed attempt returns to the
// form; nothing is retried automatically and a failed attempt's payment
// token is never reused.
type Flow struct {
	client  *Client
	session *Session

	mu         sync.Mutex
	state      string
	submitting bool
	lastErr    error
}

// NewFlow returns a Flow in the idle state.
func NewFlow(client *Client, session *Session) *Flow {
	return &Flow{client: client, session: session, state: StateIdle}
}

// State returns the current flow state.
func (f *Flow) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the error of the most recent failed submission.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Validate runs the pre-payment checks: required fields, email shape and the
// processor name limit. It gates payment capture; nothing is sent while it
// fails.
func (f *Flow) Validate(form CheckoutForm) error {
	required := []struct {
		name, value string
	}{
		{"first name", form.FirstName},
		{"last name", form.LastName},
		{"email", form.CustomerEmail},
		{"address line 1", form.AddressLine1},
		{"city", form.City},
		{"state", form.State},
		{"zip", form.Zip},
		{"plan", form.PlanType},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required field: %s", r.name)
		}
	}
	if !emailPattern.MatchString(form.CustomerEmail) {
		return ErrInvalidEmail
	}
	if len(form.FirstName)+len(form.LastName) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}

// Submit validates the form and posts the checkout. While a submission is in
// flight further calls fail with ErrSubmissionInFlight and no request is
// issued. Each call is a fresh attempt with its own idempotency key; the key
// protects against duplicate delivery of one attempt, not across attempts.
func (f *Flow) Submit(ctx context.Context, form CheckoutForm) (*Handoff, error) {
	if err := f.Validate(form); err != nil {
		return nil, err
	}
	if form.PaymentID == "" {
		return nil, ErrMissingPayment
	}

	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	f.submitting = true
	f.state = StateSubmitting
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	// totals come from the catalog, never from caller arithmetic
	form.Addons = mergeAddons(form.Addons, f.session.SelectedAddons())
	form.AmountCents = catalog.TotalCents(form.PlanType, form.Addons)
	if p, ok := catalog.PlanByID(form.PlanType); ok {
		form.MonthlyCents = p.MonthlyCents
	}

	f.session.DiscardPendingOrder()

	created, err := f.client.ProcessCheckout(ctx, form, uuid.NewString())
	if err != nil {
		f.setOutcome(StateFailed, err)
		return nil, err
	}

	po := PendingOrder{
		OrderNumber:   created.OrderNumber,
		OrderID:       created.ID,
		CustomerEmail: form.CustomerEmail,
		CustomerName:  form.FirstName + " " + form.LastName,
		PlanType:      form.PlanType,
		PlaqueColor:   form.PlaqueColor,
	}
	if err := f.session.WritePendingOrder(po); err != nil {
		// cannot happen after the discard above, but surface it if it does
		f.setOutcome(StateFailed, err)
		return nil, err
	}

	f.setOutcome(StateSucceeded, nil)
	return &Handoff{
		PendingOrder: po,
		RedirectURL:  "/memorial/create?order=" + created.OrderNumber,
	}, nil
}

func (f *Flow) setOutcome(state string, err error) {
	f.mu.Lock()
	f.state = state
	f.lastErr = err
	f.mu.Unlock()
}

func mergeAddons(a, b []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
