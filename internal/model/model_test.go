package model

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{
			name:    "paid to sealed",
			from:    OrderStatusPaid,
			to:      OrderStatusSealed,
			allowed: true,
		},
		{
			name:    "sealed to dispatched",
			from:    OrderStatusSealed,
			to:      OrderStatusDispatched,
			allowed: true,
		},
		{
			name:    "dispatched to arrived",
			from:    OrderStatusDispatched,
			to:      OrderStatusArrived,
			allowed: true,
		},
		{
			name:    "arrived to confirmed",
			from:    OrderStatusArrived,
			to:      OrderStatusConfirmed,
			allowed: true,
		},
		{
			name:    "arrived to returned",
			from:    OrderStatusArrived,
			to:      OrderStatusReturned,
			allowed: true,
		},
		{
			name:    "confirmed to reviewed",
			from:    OrderStatusConfirmed,
			to:      OrderStatusReviewed,
			allowed: true,
		},
		{
			name:    "reviewed to returned",
			from:    OrderStatusReviewed,
			to:      OrderStatusReturned,
			allowed: true,
		},
		{
			name:    "paid to arrived skips steps",
			from:    OrderStatusPaid,
			to:      OrderStatusArrived,
			allowed: false,
		},
		{
			name:    "paid to returned before arrival",
			from:    OrderStatusPaid,
			to:      OrderStatusReturned,
			allowed: false,
		},
		{
			name:    "arrived to reviewed without confirmation",
			from:    OrderStatusArrived,
			to:      OrderStatusReviewed,
			allowed: false,
		},
		{
			name:    "returned is terminal",
			from:    OrderStatusReturned,
			to:      OrderStatusPaid,
			allowed: false,
		},
		{
			name:    "backward transition",
			from:    OrderStatusDispatched,
			to:      OrderStatusSealed,
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{
		OrderStatusPaid, OrderStatusSealed, OrderStatusDispatched,
		OrderStatusArrived, OrderStatusConfirmed, OrderStatusReturned, OrderStatusReviewed,
	} {
		if !s.Valid() {
			t.Fatalf("status %s must be valid", s)
		}
	}

	if OrderStatus("shipped").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
}

func TestEffectivePriceCents(t *testing.T) {
	p := Product{PriceCents: 10000}
	if p.EffectivePriceCents() != 10000 {
		t.Fatalf("expected base price without discount")
	}

	discount := int64(7500)
	p.DiscountCents = &discount
	if p.EffectivePriceCents() != 7500 {
		t.Fatalf("expected discount price when set")
	}
}

func TestCardLast4(t *testing.T) {
	p := PaymentDetails{CardNumber: "4242424242424242"}
	if got := p.CardLast4(); got != "4242" {
		t.Fatalf("CardLast4() = %q, want %q", got, "4242")
	}
}
