// Package notification реализует ленту уведомлений пользователя:
// упорядоченный список с учётом непрочитанных и периодической очисткой
// истёкших записей.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Feed хранит ленты уведомлений всех пользователей. Новые уведомления
// добавляются в начало ленты. Очисткой истёкших записей владеет сама
// лента: единственный таймер запускается через StartSweeper.
type Feed struct {
	mu     sync.Mutex
	items  map[int64][]model.Notification
	unread map[int64]int
}

// NewFeed создаёт пустую ленту уведомлений.
func NewFeed() *Feed {
	return &Feed{
		items:  make(map[int64][]model.Notification),
		unread: make(map[int64]int),
	}
}

// Add добавляет уведомление в начало ленты пользователя и возвращает true.
// Для типа onboarding действует инвариант "не более одного": повторное
// добавление при живом onboarding-уведомлении (прочитанном или нет)
// ничего не меняет и возвращает false.
func (f *Feed) Add(userID int64, n model.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n.Type == model.NotificationOnboarding {
		for _, existing := range f.items[userID] {
			if existing.Type == model.NotificationOnboarding {
				return false
			}
		}
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	f.items[userID] = append([]model.Notification{n}, f.items[userID]...)
	if !n.Read {
		f.unread[userID]++
	}

	return true
}

// MarkRead помечает уведомление прочитанным. Операция идемпотентна:
// счётчик непрочитанных уменьшается только на переходе false -> true.
func (f *Feed) MarkRead(userID int64, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items[userID]
	for i := range items {
		if items[i].ID == id {
			if !items[i].Read {
				items[i].Read = true
				f.unread[userID]--
			}
			return true
		}
	}
	return false
}

// Remove удаляет уведомление по идентификатору.
func (f *Feed) Remove(userID int64, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items[userID]
	for i := range items {
		if items[i].ID == id {
			if !items[i].Read {
				f.unread[userID]--
			}
			f.items[userID] = append(items[:i], items[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAll удаляет все уведомления пользователя и обнуляет непрочитанные.
func (f *Feed) ClearAll(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.items, userID)
	delete(f.unread, userID)
}

// ClearRead удаляет прочитанные уведомления. Счётчик непрочитанных не
// меняется: прочитанные записи в него не входят.
func (f *Feed) ClearRead(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items[userID]
	kept := items[:0]
	for _, n := range items {
		if !n.Read {
			kept = append(kept, n)
		}
	}
	f.items[userID] = kept
}

// CleanupExpired удаляет истёкшие уведомления во всех лентах и возвращает
// число удалённых. Onboarding-уведомления не истекают никогда.
func (f *Feed) CleanupExpired(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for userID, items := range f.items {
		kept := items[:0]
		for _, n := range items {
			expired := n.Type != model.NotificationOnboarding &&
				n.ExpiresAt != nil && n.ExpiresAt.Before(now)
			if expired {
				removed++
				if !n.Read {
					f.unread[userID]--
				}
				continue
			}
			kept = append(kept, n)
		}
		f.items[userID] = kept
	}

	return removed
}

// List возвращает копию ленты пользователя, самые свежие первыми.
func (f *Feed) List(userID int64) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items[userID]
	res := make([]model.Notification, len(items))
	copy(res, items)
	return res
}

// UnreadCount возвращает число непрочитанных уведомлений пользователя.
func (f *Feed) UnreadCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.unread[userID]
}

// StartSweeper запускает периодическую очистку истёкших уведомлений.
// Блокируется до отмены контекста.
func (f *Feed) StartSweeper(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := f.CleanupExpired(time.Now()); removed > 0 {
				logger.Info("expired notifications removed", zap.Int("count", removed))
			}
		}
	}
}
