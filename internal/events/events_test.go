package events

import (
	"context"
	"testing"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()

	var first, second []string
	bus.Subscribe(func(e OrderEvent) {
		first = append(first, e.Type)
	})
	bus.Subscribe(func(e OrderEvent) {
		second = append(second, e.OrderID)
	})

	err := bus.PublishOrderEvent(context.Background(), OrderEvent{
		Type:    EventOrderCreated,
		OrderID: "o-1",
	})
	if err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	if len(first) != 1 || first[0] != EventOrderCreated {
		t.Fatalf("first subscriber got %v", first)
	}
	if len(second) != 1 || second[0] != "o-1" {
		t.Fatalf("second subscriber got %v", second)
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()

	if err := bus.PublishOrderEvent(context.Background(), OrderEvent{Type: EventOrderStatusChanged}); err != nil {
		t.Fatalf("publish without subscribers must not fail: %v", err)
	}
}

func TestBus_StampsOccurredAt(t *testing.T) {
	bus := NewBus()

	var got OrderEvent
	bus.Subscribe(func(e OrderEvent) { got = e })

	_ = bus.PublishOrderEvent(context.Background(), OrderEvent{Type: EventOrderCreated})

	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be stamped on publish")
	}
}
