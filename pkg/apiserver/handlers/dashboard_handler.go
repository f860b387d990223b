package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/opsevents"
)

// EventSource derives the operational event feed from live records.
type EventSource interface {
	Events(ctx context.Context, tenantID uuid.UUID) ([]opsevents.Event, error)
}

type DashboardHandler struct {
	events EventSource
	logger *zap.Logger
}

func NewDashboardHandler(events EventSource, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{events: events, logger: logger}
}

// Events returns the derived operational events, most urgent category
// first. The feed is recomputed from current records on every request;
// a confirmed action is reflected by the very next read.
func (h *DashboardHandler) Events(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	events, err := h.events.Events(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to derive events",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
		"state":  opsevents.DashboardState(events),
	})
}

func (h *DashboardHandler) State(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	events, err := h.events.Events(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to derive events",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive events"})
		return
	}

	c.JSON(http.StatusOK, opsevents.DashboardState(events))
}
