package cart

import (
	"errors"
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
)

func product(id string, priceCents int64) model.Product {
	return model.Product{
		ID:         id,
		Name:       "product " + id,
		PriceCents: priceCents,
	}
}

func TestAdd_RepeatedProductMergesIntoOneEntry(t *testing.T) {
	l := NewLedger(1, 10)

	p := product("p1", 1000)
	for _, q := range []int{1, 2, 3} {
		if err := l.Add(7, p, q); err != nil {
			t.Fatalf("Add(%d): %v", q, err)
		}
	}

	entries := l.Entries(7)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want exactly 1 for repeated product", len(entries))
	}
	if entries[0].Quantity != 6 {
		t.Fatalf("quantity = %d, want sum of added quantities 6", entries[0].Quantity)
	}
	if entries[0].LineTotalCents != 6000 {
		t.Fatalf("line total = %d, want 6000", entries[0].LineTotalCents)
	}
}

func TestAdd_PriceFrozenAtFirstAdd(t *testing.T) {
	l := NewLedger(1, 10)

	p := product("p1", 1000)
	if err := l.Add(1, p, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	p.PriceCents = 9999
	if err := l.Add(1, p, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries := l.Entries(1)
	if entries[0].LineTotalCents != 2000 {
		t.Fatalf("line total = %d, want 2000 with price frozen at first add", entries[0].LineTotalCents)
	}
}

func TestTotal_InvariantUnderAddOrder(t *testing.T) {
	products := []model.Product{
		product("a", 500),
		product("b", 1250),
		product("c", 99),
	}

	forward := NewLedger(1, 10)
	backward := NewLedger(1, 10)

	for i, p := range products {
		if err := forward.Add(1, p, i+1); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for i := len(products) - 1; i >= 0; i-- {
		if err := backward.Add(1, products[i], i+1); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if forward.TotalCents(1) != backward.TotalCents(1) {
		t.Fatalf("total depends on add order: %d vs %d", forward.TotalCents(1), backward.TotalCents(1))
	}
}

func TestAdd_QuantityBounds(t *testing.T) {
	l := NewLedger(1, 10)
	p := product("p1", 100)

	tests := []struct {
		name string
		qty  int
		ok   bool
	}{
		{name: "below minimum", qty: 0, ok: false},
		{name: "negative", qty: -3, ok: false},
		{name: "minimum", qty: 1, ok: true},
		{name: "maximum", qty: 9, ok: true},
		{name: "above maximum", qty: 11, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLedger(1, 10).Add(1, p, tt.qty)
			if tt.ok && err != nil {
				t.Fatalf("Add(%d): %v", tt.qty, err)
			}
			if !tt.ok && !errors.Is(err, ErrQuantityOutOfRange) {
				t.Fatalf("Add(%d): expected ErrQuantityOutOfRange, got %v", tt.qty, err)
			}
		})
	}

	// Слияние, превышающее максимум, отклоняется и не меняет позицию.
	if err := l.Add(1, p, 8); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(1, p, 5); !errors.Is(err, ErrQuantityOutOfRange) {
		t.Fatalf("expected ErrQuantityOutOfRange on merge overflow, got %v", err)
	}
	if got := l.Entries(1)[0].Quantity; got != 8 {
		t.Fatalf("quantity after rejected merge = %d, want 8", got)
	}
}

func TestSetQuantity(t *testing.T) {
	l := NewLedger(1, 10)
	p := product("p1", 250)

	if err := l.Add(1, p, 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.SetQuantity(1, "p1", 5); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if got := l.Entries(1)[0].LineTotalCents; got != 1250 {
		t.Fatalf("line total = %d, want 1250 after SetQuantity", got)
	}

	if err := l.SetQuantity(1, "p1", 0); !errors.Is(err, ErrQuantityOutOfRange) {
		t.Fatalf("expected ErrQuantityOutOfRange for zero quantity, got %v", err)
	}

	if err := l.SetQuantity(1, "absent", 3); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestRemove_AbsentProductIsNoOp(t *testing.T) {
	l := NewLedger(1, 10)

	if err := l.Add(1, product("p1", 100), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	before := len(l.Entries(1))
	totalBefore := l.TotalCents(1)

	l.Remove(1, "does-not-exist")

	if len(l.Entries(1)) != before {
		t.Fatalf("entry count changed by removing absent product")
	}
	if l.TotalCents(1) != totalBefore {
		t.Fatalf("total changed by removing absent product")
	}
}

func TestClear(t *testing.T) {
	l := NewLedger(1, 10)

	if err := l.Add(1, product("p1", 100), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(1, product("p2", 300), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	l.Clear(1)

	if len(l.Entries(1)) != 0 {
		t.Fatalf("cart not empty after Clear")
	}
	if l.TotalCents(1) != 0 {
		t.Fatalf("total = %d after Clear, want 0", l.TotalCents(1))
	}
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	l := NewLedger(1, 10)

	if err := l.Add(1, product("p1", 100), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(2, product("p2", 200), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	l.Clear(1)

	if got := l.TotalCents(2); got != 400 {
		t.Fatalf("user 2 total = %d, want 400 untouched by user 1 clear", got)
	}
}
