package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalize_CoalescesAliases(t *testing.T) {
	p, err := Normalize(RawRecord{
		ID:        "p-1",
		Title:     "Wireless Mouse",
		Price:     24.99,
		Stock:     5,
		Thumbnail: "https://img.example/mouse.jpg",
		Category:  "electronics",
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if p.Name != "Wireless Mouse" {
		t.Fatalf("name = %q, want title coalesced into name", p.Name)
	}
	if p.PriceCents != 2499 {
		t.Fatalf("price = %d cents, want 2499", p.PriceCents)
	}
	if len(p.Images) != 1 || p.Images[0] != "https://img.example/mouse.jpg" {
		t.Fatalf("thumbnail not coalesced into images: %v", p.Images)
	}
	if p.Slug != "wireless-mouse" {
		t.Fatalf("slug = %q, want %q", p.Slug, "wireless-mouse")
	}
}

func TestNormalize_NamePreferredOverTitle(t *testing.T) {
	p, err := Normalize(RawRecord{
		Name:     "Canonical",
		Title:    "Legacy",
		Price:    10,
		Category: "misc",
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if p.Name != "Canonical" {
		t.Fatalf("name = %q, want %q", p.Name, "Canonical")
	}
}

func TestNormalize_RejectsMissingFields(t *testing.T) {
	_, err := Normalize(RawRecord{Price: 0})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	for _, field := range []string{"name", "price", "category"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not list missing field %q", err.Error(), field)
		}
	}
}

func TestNormalize_GeneratesIDWhenAbsent(t *testing.T) {
	p, err := Normalize(RawRecord{Name: "Thing", Price: 1, Category: "misc"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected generated id for record without one")
	}
}

func TestNormalize_Discounts(t *testing.T) {
	price := 100.0

	t.Run("discount price", func(t *testing.T) {
		dp := 75.0
		p, err := Normalize(RawRecord{Name: "A", Price: price, DiscountPrice: &dp, Category: "c"})
		if err != nil {
			t.Fatalf("Normalize error: %v", err)
		}
		if p.DiscountCents == nil || *p.DiscountCents != 7500 {
			t.Fatalf("discount = %v, want 7500", p.DiscountCents)
		}
		if p.EffectivePriceCents() != 7500 {
			t.Fatalf("effective price = %d, want 7500", p.EffectivePriceCents())
		}
	})

	t.Run("discount percent", func(t *testing.T) {
		pct := 20.0
		p, err := Normalize(RawRecord{Name: "A", Price: price, DiscountPercent: &pct, Category: "c"})
		if err != nil {
			t.Fatalf("Normalize error: %v", err)
		}
		if p.DiscountCents == nil || *p.DiscountCents != 8000 {
			t.Fatalf("discount = %v, want 8000", p.DiscountCents)
		}
	})

	t.Run("discount above price rejected", func(t *testing.T) {
		dp := 150.0
		_, err := Normalize(RawRecord{Name: "A", Price: price, DiscountPrice: &dp, Category: "c"})
		if !errors.Is(err, ErrInvalidDiscount) {
			t.Fatalf("expected ErrInvalidDiscount, got %v", err)
		}
	})

	t.Run("percent out of range rejected", func(t *testing.T) {
		pct := 100.0
		_, err := Normalize(RawRecord{Name: "A", Price: price, DiscountPercent: &pct, Category: "c"})
		if !errors.Is(err, ErrInvalidDiscount) {
			t.Fatalf("expected ErrInvalidDiscount, got %v", err)
		}
	})
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "spaces and case",
			in:   "Wireless Mouse PRO",
			want: "wireless-mouse-pro",
		},
		{
			name: "punctuation collapsed",
			in:   "USB-C / HDMI (2m)",
			want: "usb-c-hdmi-2m",
		},
		{
			name: "trailing separators trimmed",
			in:   "  Gift Card!  ",
			want: "gift-card",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
