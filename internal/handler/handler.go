// Package handler содержит HTTP-обработчики API сервиса витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/cart"
	"github.com/mmeshcher/storefront-system/internal/catalog"
	"github.com/mmeshcher/storefront-system/internal/checkout"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetProfile(ctx context.Context, userID int64) (*model.Profile, []string, error)
	UpdateProfile(ctx context.Context, p model.Profile) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	AddListing(ctx context.Context, sellerID int64, rec catalog.RawRecord) (model.Product, error)
	DeleteListing(ctx context.Context, productID string, sellerID int64) error

	AddToCart(ctx context.Context, userID int64, productID string, quantity int) error
	CartEntries(userID int64) ([]model.CartEntry, int64)
	SetCartQuantity(userID int64, productID string, quantity int) error
	RemoveFromCart(userID int64, productID string)
	ClearCart(userID int64)

	CheckoutState(userID int64) (checkout.Session, checkout.Totals, error)
	AdvanceCheckout(ctx context.Context, userID int64, in checkout.AdvanceInput) (checkout.Step, error)
	BackCheckout(userID int64) checkout.Step
	SubmitCheckout(ctx context.Context, userID int64) (string, error)
	HandlePaymentCallback(ctx context.Context, txID string, succeeded bool) (*model.Order, error)

	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, userID int64, orderID string, next model.OrderStatus) error
	OrderStatusCounts(ctx context.Context, userID int64) (map[model.OrderStatus]int, error)

	CreateReview(ctx context.Context, userID int64, productID string, rating int, comment string) (*model.Review, error)
	UpdateReview(ctx context.Context, userID int64, reviewID string, rating int, comment string) error
	VoteHelpful(ctx context.Context, reviewID string) error
	ReviewsByProduct(ctx context.Context, productID string) ([]model.Review, error)
	ReviewsByAuthor(ctx context.Context, userID int64) ([]model.Review, error)
	ReviewsForSeller(ctx context.Context, sellerID int64) ([]model.Review, error)

	Notifications(userID int64) ([]model.Notification, int)
	MarkNotificationRead(userID int64, id string) bool
	RemoveNotification(userID int64, id string) bool
	ClearNotifications(userID int64, readOnly bool)
}

// Handler реализует HTTP-обработчики API сервиса витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Заголовки уже отправлены, менять статус поздно.
		return
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.authMiddleware.SetAuthCookie(w, userID)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Login выполняет аутентификацию пользователя и выдачу токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.authMiddleware.SetAuthCookie(w, userID)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type profileResponse struct {
	Profile       model.Profile `json:"profile"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	Complete      bool          `json:"complete"`
}

// GetProfile возвращает профиль текущего пользователя и список
// незаполненных полей.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	p, missing, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Profile:       *p,
		MissingFields: missing,
		Complete:      len(missing) == 0,
	})
}

// UpdateProfile перезаписывает профиль текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p.UserID = userID

	if err := h.service.UpdateProfile(r.Context(), p); err != nil {
		h.logger.Error("update profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID            string   `json:"id"`
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	PriceCents    int64    `json:"price_cents"`
	DiscountCents *int64   `json:"discount_cents,omitempty"`
	Rating        float64  `json:"rating"`
	Stock         int      `json:"stock"`
	SellerID      int64    `json:"seller_id"`
	Images        []string `json:"images"`
	Category      string   `json:"category"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Slug:          p.Slug,
		Name:          p.Name,
		PriceCents:    p.PriceCents,
		DiscountCents: p.DiscountCents,
		Rating:        p.Rating,
		Stock:         p.Stock,
		SellerID:      p.SellerID,
		Images:        p.Images,
		Category:      p.Category,
	}
}

// ListProducts возвращает все товары витрины.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddProduct выставляет новый товар от имени текущего пользователя.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var rec catalog.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.AddListing(r.Context(), userID, rec)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrMissingFields):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, catalog.ErrInvalidDiscount):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrProductExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("add product error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// DeleteProduct снимает товар текущего пользователя с витрины.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID := chi.URLParam(r, "id")

	err := h.service.DeleteListing(r.Context(), productID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotProductOwner):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("delete product error", zap.Error(err), zap.String("product", productID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type cartItemResponse struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalCents int64              `json:"total_cents"`
}

func toCartResponse(entries []model.CartEntry, total int64) cartResponse {
	items := make([]cartItemResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, cartItemResponse{
			ProductID:      e.Product.ID,
			Name:           e.Product.Name,
			UnitPriceCents: e.Product.EffectivePriceCents(),
			Quantity:       e.Quantity,
			LineTotalCents: e.LineTotalCents,
		})
	}
	return cartResponse{Items: items, TotalCents: total}
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	entries, total := h.service.CartEntries(userID)
	writeJSON(w, http.StatusOK, toCartResponse(entries, total))
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddToCart добавляет товар в корзину текущего пользователя.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, cart.ErrQuantityOutOfRange):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("add to cart error", zap.Error(err), zap.Int64("userID", userID), zap.String("product", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	entries, total := h.service.CartEntries(userID)
	writeJSON(w, http.StatusOK, toCartResponse(entries, total))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetCartQuantity перезаписывает количество позиции корзины.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID := chi.URLParam(r, "productID")

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SetCartQuantity(userID, productID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrEntryNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, cart.ErrQuantityOutOfRange):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("set cart quantity error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	entries, total := h.service.CartEntries(userID)
	writeJSON(w, http.StatusOK, toCartResponse(entries, total))
}

// RemoveCartItem удаляет позицию из корзины. Удаление отсутствующей
// позиции не является ошибкой.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.service.RemoveFromCart(userID, chi.URLParam(r, "productID"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart опустошает корзину текущего пользователя.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.service.ClearCart(userID)
	w.WriteHeader(http.StatusNoContent)
}

type checkoutResponse struct {
	Step            string                `json:"step"`
	ShippingMethod  string                `json:"shipping_method"`
	Shipping        model.ShippingDetails `json:"shipping"`
	CardHolder      string                `json:"card_holder,omitempty"`
	CardLast4       string                `json:"card_last4,omitempty"`
	SubtotalCents   int64                 `json:"subtotal_cents"`
	ShippingCents   int64                 `json:"shipping_cents"`
	TaxCents        int64                 `json:"tax_cents"`
	GrandTotalCents int64                 `json:"grand_total_cents"`
}

func toCheckoutResponse(s checkout.Session, t checkout.Totals) checkoutResponse {
	return checkoutResponse{
		Step:            string(s.Step),
		ShippingMethod:  string(s.Method),
		Shipping:        s.Shipping,
		CardHolder:      s.Payment.CardHolder,
		CardLast4:       s.Payment.CardLast4(),
		SubtotalCents:   t.SubtotalCents,
		ShippingCents:   t.ShippingCents,
		TaxCents:        t.TaxCents,
		GrandTotalCents: t.GrandTotalCents,
	}
}

// GetCheckout возвращает снимок мастера оформления и текущую стоимость.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	session, totals, err := h.service.CheckoutState(userID)
	if err != nil {
		h.logger.Error("checkout state error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toCheckoutResponse(session, totals))
}

type advanceRequest struct {
	Shipping *model.ShippingDetails `json:"shipping,omitempty"`
	Payment  *model.PaymentDetails  `json:"payment,omitempty"`
	Method   string                 `json:"shipping_method,omitempty"`
}

// CheckoutNext переводит мастер оформления на следующий шаг.
func (h *Handler) CheckoutNext(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	step, err := h.service.AdvanceCheckout(r.Context(), userID, checkout.AdvanceInput{
		Shipping: req.Shipping,
		Payment:  req.Payment,
		Method:   checkout.ShippingMethod(req.Method),
	})
	middleware.RecordCheckoutOperation("advance", err == nil)
	if err != nil {
		var incomplete *checkout.IncompleteFieldsError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, checkout.ErrUnknownShippingMethod):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &incomplete):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   "incomplete fields",
				"scope":   incomplete.Scope,
				"missing": incomplete.Missing,
			})
		default:
			h.logger.Error("checkout advance error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"step": string(step)})
}

// CheckoutBack переводит мастер оформления на предыдущий шаг.
func (h *Handler) CheckoutBack(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	step := h.service.BackCheckout(userID)
	writeJSON(w, http.StatusOK, map[string]string{"step": string(step)})
}

// CheckoutSubmit открывает транзакцию в платёжном шлюзе.
func (h *Handler) CheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := h.service.SubmitCheckout(r.Context(), userID)
	middleware.RecordCheckoutOperation("submit", err == nil)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrNotReadyToSubmit),
			errors.Is(err, checkout.ErrSubmissionInFlight),
			errors.Is(err, checkout.ErrEmptyCart):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("checkout submit error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"transaction_id": txID})
}

type paymentCallbackRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaymentCallback обрабатывает обратный вызов платёжного шлюза.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	succeeded := req.Status == "success"
	order, err := h.service.HandlePaymentCallback(r.Context(), req.TransactionID, succeeded)
	middleware.RecordCheckoutOperation("callback", err == nil)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownTransaction):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrPaymentNotCaptured):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		default:
			h.logger.Error("payment callback error", zap.Error(err), zap.String("transaction", req.TransactionID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	if order == nil {
		// Отмена: состояние пользователя не изменилось.
		w.WriteHeader(http.StatusOK)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"order_id": order.ID})
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type orderResponse struct {
	ID             string                `json:"id"`
	Items          []orderItemResponse   `json:"items"`
	Shipping       model.ShippingDetails `json:"shipping"`
	CardHolder     string                `json:"card_holder"`
	CardLast4      string                `json:"card_last4"`
	ShippingMethod string                `json:"shipping_method"`
	SubtotalCents  int64                 `json:"subtotal_cents"`
	ShippingCents  int64                 `json:"shipping_cents"`
	TaxCents       int64                 `json:"tax_cents"`
	TotalCents     int64                 `json:"total_cents"`
	Status         string                `json:"status"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]orderItemResponse, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orderItemResponse{
				ProductID:      it.ProductID,
				Name:           it.Name,
				UnitPriceCents: it.UnitPriceCents,
				Quantity:       it.Quantity,
				LineTotalCents: it.LineTotalCents,
			})
		}
		resp = append(resp, orderResponse{
			ID:             o.ID,
			Items:          items,
			Shipping:       o.Shipping,
			CardHolder:     o.CardHolder,
			CardLast4:      o.CardLast4,
			ShippingMethod: o.ShippingMethod,
			SubtotalCents:  o.SubtotalCents,
			ShippingCents:  o.ShippingCents,
			TaxCents:       o.TaxCents,
			TotalCents:     o.TotalCents,
			Status:         string(o.Status),
			CreatedAt:      o.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      o.UpdatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus выполняет переход статуса заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateOrderStatus(r.Context(), userID, orderID, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrOrderOwnedByAnother):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrInvalidStatusTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("update order status error", zap.Error(err), zap.String("order", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetOrderStats возвращает число заказов текущего пользователя по статусам.
func (h *Handler) GetOrderStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	counts, err := h.service.OrderStatusCounts(r.Context(), userID)
	if err != nil {
		h.logger.Error("order stats error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make(map[string]int, len(counts))
	for status, n := range counts {
		resp[string(status)] = n
	}

	writeJSON(w, http.StatusOK, resp)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    int64  `json:"user_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Helpful   int    `json:"helpful"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toReviewResponse(rev model.Review) reviewResponse {
	return reviewResponse{
		ID:        rev.ID,
		ProductID: rev.ProductID,
		UserID:    rev.UserID,
		Rating:    rev.Rating,
		Comment:   rev.Comment,
		Helpful:   rev.Helpful,
		CreatedAt: rev.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rev.UpdatedAt.Format(time.RFC3339),
	}
}

// GetProductReviews возвращает отзывы на товар.
func (h *Handler) GetProductReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	reviews, err := h.service.ReviewsByProduct(r.Context(), productID)
	if err != nil {
		h.logger.Error("get reviews error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for _, rev := range reviews {
		resp = append(resp, toReviewResponse(rev))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateReview сохраняет новый отзыв текущего пользователя на товар.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID := chi.URLParam(r, "id")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rev, err := h.service.CreateReview(r.Context(), userID, productID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("create review error", zap.Error(err), zap.String("product", productID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(*rev))
}

// UpdateReview изменяет отзыв. Разрешено только автору.
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	reviewID := chi.URLParam(r, "id")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateReview(r.Context(), userID, reviewID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrReviewNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotReviewOwner):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("update review error", zap.Error(err), zap.String("review", reviewID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// VoteHelpful увеличивает счётчик полезности отзыва.
func (h *Handler) VoteHelpful(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	reviewID := chi.URLParam(r, "id")

	if err := h.service.VoteHelpful(r.Context(), reviewID); err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("vote helpful error", zap.Error(err), zap.String("review", reviewID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetUserReviews возвращает отзывы пользователя: написанные им или
// полученные на его товары, в зависимости от параметра role.
func (h *Handler) GetUserReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var (
		reviews []model.Review
		err     error
	)

	switch role := r.URL.Query().Get("role"); role {
	case "", "author":
		reviews, err = h.service.ReviewsByAuthor(r.Context(), userID)
	case "seller":
		reviews, err = h.service.ReviewsForSeller(r.Context(), userID)
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.Error("get user reviews error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for _, rev := range reviews {
		resp = append(resp, toReviewResponse(rev))
	}

	writeJSON(w, http.StatusOK, resp)
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	ActionRef string `json:"action_ref,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

type notificationsResponse struct {
	Items  []notificationResponse `json:"items"`
	Unread int                    `json:"unread"`
}

// GetNotifications возвращает ленту уведомлений текущего пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	items, unread := h.service.Notifications(userID)

	resp := notificationsResponse{
		Items:  make([]notificationResponse, 0, len(items)),
		Unread: unread,
	}
	for _, n := range items {
		nr := notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Read:      n.Read,
			ActionRef: n.ActionRef,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
		if n.ExpiresAt != nil {
			nr.ExpiresAt = n.ExpiresAt.Format(time.RFC3339)
		}
		resp.Items = append(resp.Items, nr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if !h.service.MarkNotificationRead(userID, chi.URLParam(r, "id")) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteNotification удаляет уведомление.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if !h.service.RemoveNotification(userID, chi.URLParam(r, "id")) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications удаляет уведомления: все или только прочитанные
// при параметре read=1.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	readOnly := r.URL.Query().Get("read") == "1"
	h.service.ClearNotifications(userID, readOnly)

	w.WriteHeader(http.StatusNoContent)
}

// Health отвечает на проверку живости сервиса.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
