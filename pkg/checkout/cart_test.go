package checkout

import (
	"testing"

	"github.com/memorialqr/orderflow/internal/catalog"
)

func TestCart_AddAndRemove(t *testing.T) {
	c := NewCart()
	c.Add(catalog.AddonWoodenQR)
	c.Add(catalog.AddonWoodenQR)
	c.Add(catalog.AddonStoneQR)

	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", lines[0].Quantity)
	}

	c.Remove(catalog.AddonWoodenQR)
	if c.Lines()[0].Quantity != 1 {
		t.Fatalf("quantity after remove = %d, want 1", c.Lines()[0].Quantity)
	}
}

func TestCart_RemovingLastUnitDropsLine(t *testing.T) {
	c := NewCart()
	c.Add(catalog.AddonWoodenQR)
	c.Remove(catalog.AddonWoodenQR)

	for _, l := range c.Lines() {
		if l.ProductID == catalog.AddonWoodenQR {
			t.Fatalf("line should be gone, got %+v", l)
		}
	}
	if len(c.Lines()) != 0 {
		t.Fatalf("cart should be empty, got %v", c.Lines())
	}
}

func TestCart_SetQuantityZeroDropsLine(t *testing.T) {
	c := NewCart()
	c.SetQuantity(catalog.AddonStoneQR, 3)
	if c.Lines()[0].Quantity != 3 {
		t.Fatalf("quantity = %d", c.Lines()[0].Quantity)
	}
	c.SetQuantity(catalog.AddonStoneQR, 0)
	if len(c.Lines()) != 0 {
		t.Fatalf("cart should be empty, got %v", c.Lines())
	}
}

func TestCart_TotalCents(t *testing.T) {
	addon, _ := catalog.AddonByID(catalog.AddonWoodenQR)
	c := NewCart()
	c.Add(catalog.AddonWoodenQR)
	c.Add(catalog.AddonWoodenQR)
	if got := c.TotalCents(); got != 2*addon.PriceCents {
		t.Fatalf("total = %d, want %d", got, 2*addon.PriceCents)
	}
}

func TestCart_SnapshotRoundTrip(t *testing.T) {
	c := NewCart()
	c.Add(catalog.AddonWoodenQR)
	c.SetQuantity(catalog.AddonStoneQR, 2)

	data, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := RestoreCart(data)
	if err != nil {
		t.Fatalf("RestoreCart: %v", err)
	}
	if restored.TotalCents() != c.TotalCents() {
		t.Fatalf("restored total %d != original %d", restored.TotalCents(), c.TotalCents())
	}
}

func TestRestoreCart_DropsInvalidQuantities(t *testing.T) {
	restored, err := RestoreCart([]byte(`[{"productId":"wooden-qr","quantity":0},{"productId":"stone-qr","quantity":1}]`))
	if err != nil {
		t.Fatalf("RestoreCart: %v", err)
	}
	lines := restored.Lines()
	if len(lines) != 1 || lines[0].ProductID != "stone-qr" {
		t.Fatalf("expected only the valid line, got %v", lines)
	}
}
