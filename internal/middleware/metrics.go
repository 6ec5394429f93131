package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	checkoutOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_operations_total",
			Help: "Total number of checkout and order operations",
		},
		[]string{"operation", "status"},
	)
)

// Metrics собирает метрики Prometheus по каждому запросу. Путём служит
// шаблон маршрута chi, а не конкретный URL, чтобы не плодить метки.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		data := &responseData{status: http.StatusOK}
		lw := &loggingWriter{ResponseWriter: w, data: data}

		next.ServeHTTP(lw, r)

		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := strconv.Itoa(data.status)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// RecordCheckoutOperation записывает метрику операции оформления заказа.
func RecordCheckoutOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	checkoutOperations.WithLabelValues(operation, status).Inc()
}
