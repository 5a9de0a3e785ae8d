package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/omnisouq/gateway/internal/infrastructure/config"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	customMW "github.com/omnisouq/gateway/internal/middleware"
	"github.com/omnisouq/gateway/internal/service"
)

type RouterDeps struct {
	Pool             *pgxpool.Pool
	RedisClient      *redis.Client
	PaymentService   *service.PaymentService
	ShippingService  *service.ShippingService
	WebhookService   *service.WebhookService
	Metrics          *observability.Metrics
	CORSConfig       config.CORSConfig
	WebhookRateLimit int
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.PaymentService)
	shippingH := NewShippingController(deps.ShippingService)
	webhookH := NewWebhookController(deps.WebhookService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Payments
		r.Post("/payments", paymentH.CreatePayment)
		r.Get("/payments", paymentH.ListPayments)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Get("/payments/{id}/events", paymentH.GetPaymentEvents)
		r.Post("/payments/{id}/verify", paymentH.VerifyPayment)
		r.Post("/payments/{id}/refund", paymentH.RefundPayment)

		// Shipments
		r.Post("/shipments", shippingH.CreateShipment)
		r.Get("/shipments/{id}", shippingH.GetShipment)
		r.Post("/shipments/{id}/tracking", shippingH.RefreshTracking)
		r.Get("/shipping/rates", shippingH.GetRates)

		// Operator view of parked webhook events
		r.Get("/webhooks/exhausted", webhookH.ListExhausted)
	})

	// Provider callbacks are rate limited per source IP since they carry no
	// auth beyond their signatures.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.WebhookRateLimit))
		r.Post("/payments/{provider}", webhookH.PaymentWebhook)
		r.Post("/shipping/{provider}", webhookH.ShippingWebhook)
	})

	return r
}
