// Package model содержит доменные сущности сервиса витрины.
package model

import "time"

// User представляет зарегистрированного пользователя витрины.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Profile содержит контактные и адресные данные пользователя.
type Profile struct {
	UserID     int64  `json:"-"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	UpdatedAt  time.Time `json:"-"`
}

// Product описывает каноническую карточку товара после нормализации.
// Цены хранятся в минорных единицах валюты.
type Product struct {
	ID            string
	Slug          string
	Name          string
	PriceCents    int64
	DiscountCents *int64
	Rating        float64
	Stock         int
	SellerID      int64
	Images        []string
	Category      string
	CreatedAt     time.Time
}

// EffectivePriceCents возвращает цену со скидкой, если она задана.
func (p Product) EffectivePriceCents() int64 {
	if p.DiscountCents != nil {
		return *p.DiscountCents
	}
	return p.PriceCents
}

// CartEntry описывает позицию корзины: снимок товара и количество.
// Цена фиксируется в момент первого добавления товара.
type CartEntry struct {
	Product        Product
	Quantity       int
	LineTotalCents int64
	AddedAt        time.Time
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusSealed     OrderStatus = "sealed"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusArrived    OrderStatus = "arrived"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusReviewed   OrderStatus = "reviewed"
)

// statusTransitions задаёт допустимые переходы статусов заказа.
// Возврат возможен начиная с получения, отзыв только после подтверждения.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:       {OrderStatusSealed},
	OrderStatusSealed:     {OrderStatusDispatched},
	OrderStatusDispatched: {OrderStatusArrived},
	OrderStatusArrived:    {OrderStatusConfirmed, OrderStatusReturned},
	OrderStatusConfirmed:  {OrderStatusReviewed, OrderStatusReturned},
	OrderStatusReviewed:   {OrderStatusReturned},
	OrderStatusReturned:   {},
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo проверяет допустимость перехода в указанный статус.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ShippingDetails содержит данные доставки, указанные на шаге оформления.
type ShippingDetails struct {
	Recipient  string `json:"recipient"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// PaymentDetails содержит платёжные данные шага оформления.
// Полный номер карты наружу не отдаётся и в заказе не сохраняется.
type PaymentDetails struct {
	CardHolder string `json:"card_holder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

// CardLast4 возвращает последние четыре цифры номера карты.
func (p PaymentDetails) CardLast4() string {
	if len(p.CardNumber) < 4 {
		return p.CardNumber
	}
	return p.CardNumber[len(p.CardNumber)-4:]
}

// OrderItem описывает купленную позицию заказа.
type OrderItem struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	Quantity       int
	LineTotalCents int64
}

// Order описывает заказ. Стоимостные поля вычисляются один раз при
// создании заказа и далее не пересчитываются.
type Order struct {
	ID             string
	UserID         int64
	Items          []OrderItem
	Shipping       ShippingDetails
	CardHolder     string
	CardLast4      string
	ShippingMethod string
	SubtotalCents  int64
	ShippingCents  int64
	TaxCents       int64
	TotalCents     int64
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotificationType описывает тип уведомления.
type NotificationType string

const (
	// NotificationOnboarding — уведомление о незаполненном профиле.
	// Существует не более чем в одном экземпляре и не истекает.
	NotificationOnboarding NotificationType = "onboarding"
	NotificationOrder      NotificationType = "order"
	NotificationPromo      NotificationType = "promo"
	NotificationSystem     NotificationType = "system"
)

// Notification описывает элемент ленты уведомлений пользователя.
type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	Read      bool
	ActionRef string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Review описывает отзыв пользователя на товар.
type Review struct {
	ID        string
	ProductID string
	UserID    int64
	Rating    int
	Comment   string
	Helpful   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
