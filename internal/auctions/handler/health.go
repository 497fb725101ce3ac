package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julienschmidt/httprouter"

	httputil "carbid/pkg/http"
	"carbid/pkg/logger"
)

type HealthHandler struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewHealthHandler(pool *pgxpool.Pool, log *logger.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, log: log}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health reports process liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready additionally verifies database connectivity.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.pool.Ping(r.Context()); err != nil {
		h.log.Warn("Readiness check failed", "error", err)
		_ = httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
