// Package cart реализует корзину покупателя: упорядоченный список позиций
// со снимками товаров и количеством. Состояние хранится в памяти и не
// переживает перезапуск сервиса.
package cart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmeshcher/storefront-system/internal/model"
)

var (
	// ErrQuantityOutOfRange возвращается при количестве вне настроенных границ.
	ErrQuantityOutOfRange = errors.New("quantity out of range")
	// ErrEntryNotFound возвращается, если позиция с таким товаром отсутствует.
	ErrEntryNotFound = errors.New("cart entry not found")
)

// Ledger хранит корзины всех пользователей. Позиции уникальны по
// идентификатору товара: повторное добавление увеличивает количество.
type Ledger struct {
	mu     sync.RWMutex
	carts  map[int64][]model.CartEntry
	minQty int
	maxQty int
}

// NewLedger создаёт корзину с указанными границами количества позиции.
func NewLedger(minQty, maxQty int) *Ledger {
	return &Ledger{
		carts:  make(map[int64][]model.CartEntry),
		minQty: minQty,
		maxQty: maxQty,
	}
}

// Add добавляет товар в корзину пользователя. Если позиция уже есть,
// количество суммируется, цена остаётся зафиксированной первым добавлением.
func (l *Ledger) Add(userID int64, product model.Product, quantity int) error {
	if quantity < l.minQty || quantity > l.maxQty {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrQuantityOutOfRange, quantity, l.minQty, l.maxQty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.carts[userID]
	for i := range entries {
		if entries[i].Product.ID == product.ID {
			merged := entries[i].Quantity + quantity
			if merged > l.maxQty {
				return fmt.Errorf("%w: %d not in [%d, %d]", ErrQuantityOutOfRange, merged, l.minQty, l.maxQty)
			}
			entries[i].Quantity = merged
			entries[i].LineTotalCents = int64(merged) * entries[i].Product.EffectivePriceCents()
			return nil
		}
	}

	l.carts[userID] = append(entries, model.CartEntry{
		Product:        product,
		Quantity:       quantity,
		LineTotalCents: int64(quantity) * product.EffectivePriceCents(),
		AddedAt:        time.Now(),
	})

	return nil
}

// SetQuantity перезаписывает количество позиции и пересчитывает её сумму.
func (l *Ledger) SetQuantity(userID int64, productID string, quantity int) error {
	if quantity < l.minQty || quantity > l.maxQty {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrQuantityOutOfRange, quantity, l.minQty, l.maxQty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.carts[userID]
	for i := range entries {
		if entries[i].Product.ID == productID {
			entries[i].Quantity = quantity
			entries[i].LineTotalCents = int64(quantity) * entries[i].Product.EffectivePriceCents()
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrEntryNotFound, productID)
}

// Remove удаляет позицию с указанным товаром. Отсутствующий товар не ошибка.
func (l *Ledger) Remove(userID int64, productID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.carts[userID]
	for i := range entries {
		if entries[i].Product.ID == productID {
			l.carts[userID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Clear опустошает корзину пользователя.
func (l *Ledger) Clear(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.carts, userID)
}

// Entries возвращает копию позиций корзины в порядке добавления.
func (l *Ledger) Entries(userID int64) []model.CartEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.carts[userID]
	res := make([]model.CartEntry, len(entries))
	copy(res, entries)
	return res
}

// TotalCents возвращает сумму всех позиций корзины в минорных единицах.
func (l *Ledger) TotalCents(userID int64) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, e := range l.carts[userID] {
		total += e.LineTotalCents
	}
	return total
}
