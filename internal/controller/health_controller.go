package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthController reports process and dependency health.
type HealthController struct {
	pool        *pgxpool.Pool
	redisClient *redis.Client
}

// NewHealthController creates a new HealthController.
func NewHealthController(pool *pgxpool.Pool, redisClient *redis.Client) *HealthController {
	return &HealthController{pool: pool, redisClient: redisClient}
}

// Health handles GET /health
func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Liveness handles GET /health/live
func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. Checks both backing stores.
func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = "down: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		checks["redis"] = "down: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "up"
	}

	writeJSON(w, status, checks)
}
