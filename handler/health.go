package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p2pml/training-dispatcher/common"
	"github.com/p2pml/training-dispatcher/common/messaging"
	"github.com/p2pml/training-dispatcher/common/redis"
	"github.com/p2pml/training-dispatcher/common/utils"
)

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	redis  *redis.RedisClient
	broker *messaging.NatsBroker
	router *chi.Mux
}

// NewHealthHandler creates the health endpoints.
func NewHealthHandler(redisClient *redis.RedisClient, broker *messaging.NatsBroker) *HealthHandler {
	h := &HealthHandler{
		redis:  redisClient,
		broker: broker,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleHealthCheck)

	h.router = r
	return h
}

// Router returns the handler's sub-router.
func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

func (h *HealthHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{
		"redis": "healthy",
		"nats":  "healthy",
	}
	healthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			components["redis"] = err.Error()
			healthy = false
		}
	}
	if h.broker != nil && !h.broker.IsConnected() {
		components["nats"] = "disconnected"
		healthy = false
	}

	response := map[string]interface{}{
		"status":     "healthy",
		"service":    common.AppName,
		"timestamp":  time.Now().UTC(),
		"components": components,
	}

	statusCode := http.StatusOK
	if !healthy {
		response["status"] = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	utils.WriteJSON(w, statusCode, response)
}
