// Package checkout is the typed client for the Memorial QR checkout flow.
// It carries the same state the browser pages kept in local/session storage:
// a cart, the step hand-off bundle, and the submit state machine, plus an
// HTTP client for the order API.
package checkout

import (
	"encoding/json"
	"fmt"

	"github.com/memorialqr/orderflow/internal/catalog"
)

// CartLine is one cart entry. Quantity is always >= 1; a line whose quantity
// would reach 0 is removed instead.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart is the client-side cart, the analog of the browser's localStorage
// entry under StorageKeyCart. It is never shared across sessions.
type Cart struct {
	lines []CartLine
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add increments the quantity for productID, creating the line if absent.
func (c *Cart) Add(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, CartLine{ProductID: productID, Quantity: 1})
}

// Remove decrements the quantity for productID. When the last unit is
// removed the line disappears from the cart entirely.
func (c *Cart) Remove(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity--
			if c.lines[i].Quantity <= 0 {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
			}
			return
		}
	}
}

// SetQuantity sets the quantity for productID. q <= 0 removes the line.
func (c *Cart) SetQuantity(productID string, q int) {
	if q <= 0 {
		for i := range c.lines {
			if c.lines[i].ProductID == productID {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
				return
			}
		}
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = q
			return
		}
	}
	c.lines = append(c.lines, CartLine{ProductID: productID, Quantity: q})
}

// Lines returns a copy of the cart contents.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// TotalCents prices the cart against the catalog.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, l := range c.lines {
		if a, ok := catalog.AddonByID(l.ProductID); ok {
			total += a.PriceCents * int64(l.Quantity)
			continue
		}
		if p, ok := catalog.PlanByID(l.ProductID); ok {
			total += p.PriceCents * int64(l.Quantity)
		}
	}
	return total
}

// Snapshot serializes the cart for persistence.
func (c *Cart) Snapshot() ([]byte, error) {
	return json.Marshal(c.lines)
}

// RestoreCart rebuilds a cart from a Snapshot. Lines with quantity < 1 are
// dropped rather than resurrected.
func RestoreCart(data []byte) (*Cart, error) {
	var lines []CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("restore cart: %w", err)
	}
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity >= 1 {
			c.lines = append(c.lines, l)
		}
	}
	return c, nil
}
