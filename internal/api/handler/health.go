package handler

import (
	"net/http"

	"github.com/mcoot/chesschain-go/internal/api/response"
)

// Stats reports current coordinator load
type Stats interface {
	Connections() int
	Queued() int
	Sessions() int
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	stats Stats
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(stats Stats) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{
		Status:      "ok",
		Connections: h.stats.Connections(),
		Queued:      h.stats.Queued(),
		Sessions:    h.stats.Sessions(),
	})
}
