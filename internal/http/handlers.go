package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger verifica la disponibilidad del almacenamiento.
type Pinger func(ctx context.Context) error

// HealthHandler expone sondas de vida y de base de datos.
type HealthHandler struct {
	logger  *zap.Logger
	ping    Pinger
	timeout time.Duration
}

func NewHealthHandler(logger *zap.Logger, ping Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, ping: ping, timeout: 2 * time.Second}
}

// Live maneja GET /health.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DB maneja GET /health/db.
func (h *HealthHandler) DB(c *gin.Context) {
	if h.ping == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up", "storage": "memory"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "up", "storage": "postgres"})
}
