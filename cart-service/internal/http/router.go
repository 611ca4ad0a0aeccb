// Package http is the storefront API of the cart service.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
	"github.com/Shreyas-s47/cloudykitchen/pkg/metrics"
)

type RouterConfig struct {
	JWTSecret          []byte
	RequestTimeout     time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
}

type Handlers struct {
	Products *ProductHandler
	Carts    *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
}

func NewRouter(cfg RouterConfig, h Handlers, log *zap.Logger) http.Handler {
	limiter := NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.ListProducts)
		r.Get("/products/{product_id}", h.Products.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.JWTSecret))
			r.Use(limiter.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Carts.GetCart)
				r.Delete("/", h.Carts.ClearCart)
				r.Post("/calculate", h.Carts.Calculate)
				r.Post("/items", h.Carts.AddItem)
				r.Put("/items/{index}", h.Carts.UpdateQuantity)
				r.Delete("/items/{index}", h.Carts.RemoveItem)
			})
			r.Post("/checkout", h.Checkout.Checkout)
			r.Get("/orders", h.Orders.ListOrders)
			r.Get("/orders/{order_id}", h.Orders.GetOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/orders", h.Orders.ListAllOrders)
				r.Put("/orders/{order_id}/status", h.Orders.TransitionOrder)
				r.Get("/products/low-stock", h.Products.LowStock)
			})
		})
	})

	return otelhttp.NewHandler(r, "cart-service")
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithContext(r.Context(), log).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
