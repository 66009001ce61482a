package checkout

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/memorialqr/orderflow/internal/catalog"
)

// Storage keys, kept identical to the browser client's so a session snapshot
// round-trips against existing stored state.
const (
	StorageKeyCart           = "memorialQrCart"
	StorageKeySelectedAddons = "selectedAddOns"
	StorageKeyStep1          = "checkoutStep1"
	StorageKeyPendingOrder   = "pendingOrder"
)

// SessionVersion is bumped whenever the snapshot layout changes.
const SessionVersion = 1

// ErrPendingOrderExists signals a second hand-off write before the first was
// consumed. The hand-off is write-once, read-once per checkout attempt.
var ErrPendingOrderExists = errors.New("unread pending order already present")

// CustomizationDraft is the step-1 hand-off: the plan plus plaque choices
// carried from the customization page to the payment page.
type CustomizationDraft struct {
	PlanType           string   `json:"planType"`
	PlaqueColor        string   `json:"plaqueColor,omitempty"`
	BoxPersonalization string   `json:"boxPersonalization,omitempty"`
	Addons             []string `json:"addons,omitempty"`
}

// PendingOrder is the minimal record written at the moment of successful
// payment and read once by the memorial-creation page.
type PendingOrder struct {
	OrderNumber   string `json:"orderNumber"`
	OrderID       string `json:"orderId"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	PlanType      string `json:"planType"`
	PlaqueColor   string `json:"plaqueColor,omitempty"`
}

// Session is the explicit, versioned replacement for the browser's ambient
// sessionStorage keys.
type Session struct {
	Version        int
	selectedAddons []string
	step1          *CustomizationDraft
	pending        *PendingOrder
}

// NewSession returns an empty session at the current version.
func NewSession() *Session {
	return &Session{Version: SessionVersion}
}

// SelectedAddons returns the current add-on selection.
func (s *Session) SelectedAddons() []string {
	out := make([]string, len(s.selectedAddons))
	copy(out, s.selectedAddons)
	return out
}

// ToggleAddon flips membership of id in the selection.
func (s *Session) ToggleAddon(id string) {
	s.selectedAddons = catalog.ToggleAddon(s.selectedAddons, id)
}

// ClearAddons drops the selection, the "Skip" path of the add-on step.
func (s *Session) ClearAddons() {
	s.selectedAddons = nil
}

// SetStep1 stores the customization draft.
func (s *Session) SetStep1(d CustomizationDraft) {
	s.step1 = &d
}

// Step1 returns the stored customization draft, if any.
func (s *Session) Step1() (CustomizationDraft, bool) {
	if s.step1 == nil {
		return CustomizationDraft{}, false
	}
	return *s.step1, true
}

// WritePendingOrder stores the hand-off record. It fails with
// ErrPendingOrderExists while an earlier write is still unread.
func (s *Session) WritePendingOrder(po PendingOrder) error {
	if s.pending != nil {
		return ErrPendingOrderExists
	}
	s.pending = &po
	return nil
}

// ReadPendingOrder consumes the hand-off record: the second read of the same
// write reports ok=false.
func (s *Session) ReadPendingOrder() (PendingOrder, bool) {
	if s.pending == nil {
		return PendingOrder{}, false
	}
	po := *s.pending
	s.pending = nil
	return po, true
}

// DiscardPendingOrder drops an unread hand-off, used when a new checkout
// attempt starts.
func (s *Session) DiscardPendingOrder() {
	s.pending = nil
}

type sessionSnapshot struct {
	Version int `json:"version"`
}

// Snapshot serializes the session keyed by the browser storage key names.
func (s *Session) Snapshot() (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}

	meta, err := json.Marshal(sessionSnapshot{Version: s.Version})
	if err != nil {
		return nil, fmt.Errorf("snapshot session meta: %w", err)
	}
	out["session"] = meta

	if len(s.selectedAddons) > 0 {
		b, err := json.Marshal(s.selectedAddons)
		if err != nil {
			return nil, fmt.Errorf("snapshot addons: %w", err)
		}
		out[StorageKeySelectedAddons] = b
	}
	if s.step1 != nil {
		b, err := json.Marshal(s.step1)
		if err != nil {
			return nil, fmt.Errorf("snapshot step1: %w", err)
		}
		out[StorageKeyStep1] = b
	}
	if s.pending != nil {
		b, err := json.Marshal(s.pending)
		if err != nil {
			return nil, fmt.Errorf("snapshot pending order: %w", err)
		}
		out[StorageKeyPendingOrder] = b
	}
	return out, nil
}

// RestoreSession rebuilds a session from a Snapshot map. Unknown keys are
// ignored; a missing meta entry restores as a fresh current-version session.
func RestoreSession(data map[string]json.RawMessage) (*Session, error) {
	s := NewSession()

	if raw, ok := data["session"]; ok {
		var meta sessionSnapshot
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("restore session meta: %w", err)
		}
		if meta.Version != SessionVersion {
			return nil, fmt.Errorf("unsupported session version %d", meta.Version)
		}
	}
	if raw, ok := data[StorageKeySelectedAddons]; ok {
		if err := json.Unmarshal(raw, &s.selectedAddons); err != nil {
			return nil, fmt.Errorf("restore addons: %w", err)
		}
	}
	if raw, ok := data[StorageKeyStep1]; ok {
		s.step1 = &CustomizationDraft{}
		if err := json.Unmarshal(raw, s.step1); err != nil {
			return nil, fmt.Errorf("restore step1: %w", err)
		}
	}
	if raw, ok := data[StorageKeyPendingOrder]; ok {
		s.pending = &PendingOrder{}
		if err := json.Unmarshal(raw, s.pending); err != nil {
			return nil, fmt.Errorf("restore pending order: %w", err)
		}
	}
	return s, nil
}
