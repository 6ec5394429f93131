package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}/reviews", h.GetProductReviews)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.AddProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/reviews", h.CreateReview)
		})
	})

	r.Route("/api/reviews", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Put("/{id}", h.UpdateReview)
		r.Post("/{id}/helpful", h.VoteHelpful)
	})

	r.Post("/api/payment/callback", h.PaymentCallback)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddToCart)
			r.Put("/cart/{productID}", h.SetCartQuantity)
			r.Delete("/cart/{productID}", h.RemoveCartItem)
			r.Delete("/cart", h.ClearCart)

			r.Get("/checkout", h.GetCheckout)
			r.Post("/checkout/next", h.CheckoutNext)
			r.Post("/checkout/back", h.CheckoutBack)
			r.Post("/checkout/submit", h.CheckoutSubmit)

			r.Get("/orders", h.GetOrders)
			r.Get("/orders/stats", h.GetOrderStats)
			r.Post("/orders/{id}/status", h.UpdateOrderStatus)

			r.Get("/reviews", h.GetUserReviews)

			r.Get("/notifications", h.GetNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
			r.Delete("/notifications/{id}", h.DeleteNotification)
			r.Delete("/notifications", h.ClearNotifications)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
