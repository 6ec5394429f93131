// Package service реализует бизнес-логику сервиса витрины.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/cart"
	"github.com/mmeshcher/storefront-system/internal/catalog"
	"github.com/mmeshcher/storefront-system/internal/checkout"
	"github.com/mmeshcher/storefront-system/internal/events"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/notification"
	"github.com/mmeshcher/storefront-system/internal/payment"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

var (
	// ErrUnknownTransaction возвращается для обратного вызова с неизвестной транзакцией.
	ErrUnknownTransaction = errors.New("unknown payment transaction")
	// ErrPaymentNotCaptured возвращается, если шлюз не подтвердил списание.
	ErrPaymentNotCaptured = errors.New("payment not captured")
	// ErrUnknownStatus возвращается для неизвестного статуса заказа.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrInvalidRating возвращается для оценки вне диапазона 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p model.Profile) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	AddProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, productID string, sellerID int64) error
	CreateOrder(ctx context.Context, o model.Order) error
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, userID int64, next model.OrderStatus) error
	CountOrdersByStatus(ctx context.Context, userID int64) (map[model.OrderStatus]int, error)
	CreateReview(ctx context.Context, rev model.Review) error
	UpdateReview(ctx context.Context, reviewID string, userID int64, rating int, comment string) error
	IncrementHelpful(ctx context.Context, reviewID string) error
	GetReviewsByProduct(ctx context.Context, productID string) ([]model.Review, error)
	GetReviewsByAuthor(ctx context.Context, userID int64) ([]model.Review, error)
	GetReviewsForSeller(ctx context.Context, sellerID int64) ([]model.Review, error)
}

// PaymentGateway описывает контракт платёжного шлюза.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, amountCents int64, email string) (string, error)
	VerifyTransaction(ctx context.Context, txID string) (string, error)
}

// Options задаёт параметры сервиса. Нулевые значения заменяются значениями
// по умолчанию.
type Options struct {
	CartMinQuantity    int
	CartMaxQuantity    int
	TaxRateBasisPoints int
	SweepInterval      time.Duration
	Logger             *zap.Logger
}

// Service содержит бизнес-логику сервиса витрины. Состояние корзин,
// сессий оформления и лент уведомлений живёт в памяти сервиса; заказы,
// товары, отзывы и профили — в репозитории.
type Service struct {
	repo      Repository
	gateway   PaymentGateway
	publisher events.Publisher

	carts  *cart.Ledger
	wizard *checkout.Wizard
	feed   *notification.Feed

	taxRateBP     int
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и платёжным шлюзом.
func NewService(repo Repository, gateway PaymentGateway, publisher events.Publisher, opts Options) *Service {
	if opts.CartMinQuantity == 0 {
		opts.CartMinQuantity = 1
	}
	if opts.CartMaxQuantity == 0 {
		opts.CartMaxQuantity = 10
	}
	if opts.TaxRateBasisPoints == 0 {
		opts.TaxRateBasisPoints = 800
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewBus()
	}

	return &Service{
		repo:          repo,
		gateway:       gateway,
		publisher:     publisher,
		carts:         cart.NewLedger(opts.CartMinQuantity, opts.CartMaxQuantity),
		wizard:        checkout.NewWizard(),
		feed:          notification.NewFeed(),
		taxRateBP:     opts.TaxRateBasisPoints,
		sweepInterval: opts.SweepInterval,
		logger:        opts.Logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetProfile возвращает профиль пользователя и список незаполненных полей.
// Для неполного профиля в ленту добавляется onboarding-уведомление;
// повторное обнаружение ничего не меняет.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.Profile, []string, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	missing := validation.MissingProfileFields(*p)
	if len(missing) > 0 {
		s.feed.Add(userID, model.Notification{
			Type:      model.NotificationOnboarding,
			Title:     "Complete your profile",
			Message:   "Fill in contact details to speed up checkout",
			ActionRef: "/api/user/profile",
		})
	}

	return p, missing, nil
}

// UpdateProfile перезаписывает профиль пользователя.
func (s *Service) UpdateProfile(ctx context.Context, p model.Profile) error {
	return s.repo.UpdateProfile(ctx, p)
}

// ListProducts возвращает все выставленные товары.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// AddListing нормализует запись товара и выставляет её от имени продавца.
func (s *Service) AddListing(ctx context.Context, sellerID int64, rec catalog.RawRecord) (model.Product, error) {
	rec.SellerID = sellerID

	p, err := catalog.Normalize(rec)
	if err != nil {
		return model.Product{}, err
	}

	if err := s.repo.AddProduct(ctx, p); err != nil {
		return model.Product{}, err
	}

	return p, nil
}

// DeleteListing снимает товар продавца с витрины.
func (s *Service) DeleteListing(ctx context.Context, productID string, sellerID int64) error {
	return s.repo.DeleteProduct(ctx, productID, sellerID)
}

// AddToCart добавляет товар в корзину пользователя, фиксируя снимок карточки.
func (s *Service) AddToCart(ctx context.Context, userID int64, productID string, quantity int) error {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return s.carts.Add(userID, *p, quantity)
}

// CartEntries возвращает позиции корзины и её сумму в минорных единицах.
func (s *Service) CartEntries(userID int64) ([]model.CartEntry, int64) {
	return s.carts.Entries(userID), s.carts.TotalCents(userID)
}

// SetCartQuantity перезаписывает количество позиции корзины.
func (s *Service) SetCartQuantity(userID int64, productID string, quantity int) error {
	return s.carts.SetQuantity(userID, productID, quantity)
}

// RemoveFromCart удаляет позицию из корзины.
func (s *Service) RemoveFromCart(userID int64, productID string) {
	s.carts.Remove(userID, productID)
}

// ClearCart опустошает корзину пользователя.
func (s *Service) ClearCart(userID int64) {
	s.carts.Clear(userID)
}

// CheckoutState возвращает снимок сессии оформления и текущую стоимость.
func (s *Service) CheckoutState(userID int64) (checkout.Session, checkout.Totals, error) {
	session := s.wizard.Session(userID)
	totals, err := checkout.CalculateTotals(s.carts.Entries(userID), session.Method, s.taxRateBP)
	if err != nil {
		return checkout.Session{}, checkout.Totals{}, err
	}
	return session, totals, nil
}

// AdvanceCheckout переводит мастер оформления на следующий шаг.
func (s *Service) AdvanceCheckout(ctx context.Context, userID int64, in checkout.AdvanceInput) (checkout.Step, error) {
	var profileMissing []string

	// Полнота профиля проверяется только на шаге доставки.
	if s.wizard.Session(userID).Step == checkout.StepShipping {
		p, err := s.repo.GetProfile(ctx, userID)
		if err != nil {
			return "", err
		}
		profileMissing = validation.MissingProfileFields(*p)
	}

	cartEmpty := len(s.carts.Entries(userID)) == 0
	return s.wizard.Advance(userID, cartEmpty, profileMissing, in)
}

// BackCheckout переводит мастер оформления на предыдущий шаг.
func (s *Service) BackCheckout(userID int64) checkout.Step {
	return s.wizard.Back(userID)
}

// SubmitCheckout открывает транзакцию в платёжном шлюзе на полную сумму
// заказа. Повторная отправка до ответа шлюза блокируется.
func (s *Service) SubmitCheckout(ctx context.Context, userID int64) (string, error) {
	if s.gateway == nil {
		return "", errors.New("payment gateway is not configured")
	}

	if err := s.wizard.BeginSubmission(userID); err != nil {
		return "", err
	}

	entries := s.carts.Entries(userID)
	if len(entries) == 0 {
		s.wizard.AbortSubmission(userID)
		return "", checkout.ErrEmptyCart
	}

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		s.wizard.AbortSubmission(userID)
		return "", err
	}

	session := s.wizard.Session(userID)
	totals, err := checkout.CalculateTotals(entries, session.Method, s.taxRateBP)
	if err != nil {
		s.wizard.AbortSubmission(userID)
		return "", err
	}

	txID, err := s.gateway.CreateTransaction(ctx, totals.GrandTotalCents, p.Email)
	if err != nil {
		s.wizard.AbortSubmission(userID)
		return "", fmt.Errorf("open transaction: %w", err)
	}

	s.wizard.BindTransaction(userID, txID)
	return txID, nil
}

// HandlePaymentCallback обрабатывает обратный вызов платёжного шлюза.
// Отмена не меняет состояния: пользователь остаётся на своём шаге.
// Успех проверяется у шлюза, после чего создаётся заказ и очищается корзина.
func (s *Service) HandlePaymentCallback(ctx context.Context, txID string, succeeded bool) (*model.Order, error) {
	userID, ok := s.wizard.UserByTransaction(txID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}

	if !succeeded {
		s.wizard.AbortSubmission(userID)
		s.logger.Info("payment cancelled", zap.String("transaction", txID), zap.Int64("userID", userID))
		return nil, nil
	}

	status, err := s.gateway.VerifyTransaction(ctx, txID)
	if err != nil {
		s.wizard.AbortSubmission(userID)
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	if status != payment.StatusCaptured {
		s.wizard.AbortSubmission(userID)
		return nil, fmt.Errorf("%w: gateway reports %q", ErrPaymentNotCaptured, status)
	}

	entries := s.carts.Entries(userID)
	session := s.wizard.Session(userID)

	totals, err := checkout.CalculateTotals(entries, session.Method, s.taxRateBP)
	if err != nil {
		s.wizard.AbortSubmission(userID)
		return nil, err
	}

	now := time.Now()
	order := model.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		Items:          orderItems(entries),
		Shipping:       session.Shipping,
		CardHolder:     session.Payment.CardHolder,
		CardLast4:      session.Payment.CardLast4(),
		ShippingMethod: string(session.Method),
		SubtotalCents:  totals.SubtotalCents,
		ShippingCents:  totals.ShippingCents,
		TaxCents:       totals.TaxCents,
		TotalCents:     totals.GrandTotalCents,
		Status:         model.OrderStatusPaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Сессия завершается только после сохранения заказа: при ошибке
	// записи связка с транзакцией сохраняется и шлюз может повторить
	// обратный вызов, не потеряв уже списанный платёж.
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.wizard.CompleteSubmission(userID)
	s.carts.Clear(userID)

	if err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		Type:       events.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     userID,
		Status:     string(order.Status),
		TotalCents: order.TotalCents,
		OccurredAt: now,
	}); err != nil {
		s.logger.Error("publish order event", zap.Error(err), zap.String("order", order.ID))
	}

	expires := now.Add(7 * 24 * time.Hour)
	s.feed.Add(userID, model.Notification{
		Type:      model.NotificationOrder,
		Title:     "Order placed",
		Message:   fmt.Sprintf("Order %s is paid and being prepared", order.ID),
		ActionRef: "/api/user/orders",
		ExpiresAt: &expires,
	})

	return &order, nil
}

func orderItems(entries []model.CartEntry) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, model.OrderItem{
			ProductID:      e.Product.ID,
			Name:           e.Product.Name,
			UnitPriceCents: e.Product.EffectivePriceCents(),
			Quantity:       e.Quantity,
			LineTotalCents: e.LineTotalCents,
		})
	}
	return items
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// UpdateOrderStatus выполняет переход статуса заказа и уведомляет подписчиков.
func (s *Service) UpdateOrderStatus(ctx context.Context, userID int64, orderID string, next model.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, userID, next); err != nil {
		return err
	}

	if err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		Type:       events.EventOrderStatusChanged,
		OrderID:    orderID,
		UserID:     userID,
		Status:     string(next),
		OccurredAt: time.Now(),
	}); err != nil {
		s.logger.Error("publish order event", zap.Error(err), zap.String("order", orderID))
	}

	return nil
}

// OrderStatusCounts возвращает число заказов пользователя по статусам.
func (s *Service) OrderStatusCounts(ctx context.Context, userID int64) (map[model.OrderStatus]int, error) {
	return s.repo.CountOrdersByStatus(ctx, userID)
}

// CreateReview сохраняет новый отзыв пользователя на товар.
func (s *Service) CreateReview(ctx context.Context, userID int64, productID string, rating int, comment string) (*model.Review, error) {
	if !validation.IsValidRating(rating) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}

	now := time.Now()
	rev := model.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateReview(ctx, rev); err != nil {
		return nil, err
	}

	return &rev, nil
}

// UpdateReview изменяет отзыв. Разрешено только автору.
func (s *Service) UpdateReview(ctx context.Context, userID int64, reviewID string, rating int, comment string) error {
	if !validation.IsValidRating(rating) {
		return fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}
	return s.repo.UpdateReview(ctx, reviewID, userID, rating, comment)
}

// VoteHelpful увеличивает счётчик полезности отзыва.
func (s *Service) VoteHelpful(ctx context.Context, reviewID string) error {
	return s.repo.IncrementHelpful(ctx, reviewID)
}

// ReviewsByProduct возвращает отзывы на товар.
func (s *Service) ReviewsByProduct(ctx context.Context, productID string) ([]model.Review, error) {
	return s.repo.GetReviewsByProduct(ctx, productID)
}

// ReviewsByAuthor возвращает отзывы, написанные пользователем.
func (s *Service) ReviewsByAuthor(ctx context.Context, userID int64) ([]model.Review, error) {
	return s.repo.GetReviewsByAuthor(ctx, userID)
}

// ReviewsForSeller возвращает отзывы на товары продавца.
func (s *Service) ReviewsForSeller(ctx context.Context, sellerID int64) ([]model.Review, error) {
	return s.repo.GetReviewsForSeller(ctx, sellerID)
}

// Notifications возвращает ленту уведомлений и число непрочитанных.
func (s *Service) Notifications(userID int64) ([]model.Notification, int) {
	return s.feed.List(userID), s.feed.UnreadCount(userID)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(userID int64, id string) bool {
	return s.feed.MarkRead(userID, id)
}

// RemoveNotification удаляет уведомление.
func (s *Service) RemoveNotification(userID int64, id string) bool {
	return s.feed.Remove(userID, id)
}

// ClearNotifications удаляет уведомления: все или только прочитанные.
func (s *Service) ClearNotifications(userID int64, readOnly bool) {
	if readOnly {
		s.feed.ClearRead(userID)
		return
	}
	s.feed.ClearAll(userID)
}

// SubscribeOrderEvents подписывает ленту уведомлений на изменения статусов
// заказов: каждое изменение превращается в уведомление пользователю.
func (s *Service) SubscribeOrderEvents(bus *events.Bus) {
	bus.Subscribe(func(e events.OrderEvent) {
		if e.Type != events.EventOrderStatusChanged {
			return
		}
		expires := time.Now().Add(7 * 24 * time.Hour)
		s.feed.Add(e.UserID, model.Notification{
			Type:      model.NotificationOrder,
			Title:     "Order status updated",
			Message:   fmt.Sprintf("Order %s is now %s", e.OrderID, e.Status),
			ActionRef: "/api/user/orders",
			ExpiresAt: &expires,
		})
	})
}

// StartNotificationSweeper запускает единственный фоновый процесс очистки
// истёкших уведомлений.
func (s *Service) StartNotificationSweeper(ctx context.Context) {
	go s.feed.StartSweeper(ctx, s.sweepInterval, s.logger)
}
