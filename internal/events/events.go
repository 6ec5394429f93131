// Package events описывает события жизненного цикла заказа и их доставку
// подписчикам. Модель состояния не знает ни о брокере, ни о конкретных
// потребителях: она публикует события через интерфейс Publisher.
package events

import (
	"context"
	"sync"
	"time"
)

// Типы событий заказа.
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
)

// OrderEvent описывает изменение заказа.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	UserID     int64     `json:"user_id"`
	Status     string    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher публикует события заказа.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, e OrderEvent) error
}

// Bus рассылает события зарегистрированным подписчикам внутри процесса.
type Bus struct {
	mu   sync.RWMutex
	subs []func(OrderEvent)
}

// NewBus создаёт шину без подписчиков.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe регистрирует подписчика. Подписчики вызываются синхронно в
// порядке регистрации.
func (b *Bus) Subscribe(fn func(OrderEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = append(b.subs, fn)
}

// PublishOrderEvent доставляет событие всем подписчикам.
func (b *Bus) PublishOrderEvent(_ context.Context, e OrderEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	b.mu.RLock()
	subs := make([]func(OrderEvent), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
	return nil
}
