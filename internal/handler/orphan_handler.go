package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shrs-dev/report-vault/internal/models"
	"github.com/shrs-dev/report-vault/pkg/response"
)

type orphanLister interface {
	List(ctx context.Context, limit int) ([]models.OrphanEvent, error)
}

// OrphanHandler exposes the partial-failure audit trail.
type OrphanHandler struct {
	service orphanLister
}

// NewOrphanHandler constructs the handler.
func NewOrphanHandler(service orphanLister) *OrphanHandler {
	return &OrphanHandler{service: service}
}

// List godoc
// @Summary List recorded two-phase partial failures
// @Tags Orphans
// @Produce json
// @Param limit query int false "Maximum events" default(100)
// @Success 200 {object} response.Envelope
// @Router /orphans [get]
func (h *OrphanHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 100)
	events, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"count": len(events)})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
