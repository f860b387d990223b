package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/cover"
	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
	"github.com/sortedhq/sorted/pkg/store/postgres"
)

type EventHandler struct {
	events  *postgres.BusinessEventRepository
	rotator *cover.Rotator
	logger  *zap.Logger
	now     func() time.Time
}

func NewEventHandler(events *postgres.BusinessEventRepository, rotator *cover.Rotator, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, rotator: rotator, logger: logger, now: time.Now}
}

type eventCreateRequest struct {
	EventType        string      `json:"event_type" binding:"required"`
	SourceEventType  string      `json:"source_event_type"`
	SourceEntityType string      `json:"source_entity_type"`
	SourceEntityID   string      `json:"source_entity_id"`
	ActionLabel      string      `json:"action_label" binding:"required"`
	ActionDetail     string      `json:"action_detail"`
	PerformedBy      string      `json:"performed_by"`
	Payload          model.JSONB `json:"payload"`
}

type eventResponse struct {
	ID               string      `json:"id"`
	EventType        string      `json:"event_type"`
	Status           string      `json:"status"`
	SourceEventType  string      `json:"source_event_type,omitempty"`
	SourceEntityType string      `json:"source_entity_type,omitempty"`
	SourceEntityID   string      `json:"source_entity_id,omitempty"`
	ActionLabel      string      `json:"action_label"`
	ActionDetail     string      `json:"action_detail,omitempty"`
	PerformedBy      string      `json:"performed_by,omitempty"`
	Payload          model.JSONB `json:"payload"`
	CreatedAt        string      `json:"created_at"`
}

func mapEvent(event *model.BusinessEvent) eventResponse {
	return eventResponse{
		ID:               event.ID.String(),
		EventType:        string(event.EventType),
		Status:           string(event.Status),
		SourceEventType:  event.SourceEventType,
		SourceEntityType: event.SourceEntityType,
		SourceEntityID:   event.SourceEntityID,
		ActionLabel:      event.ActionLabel,
		ActionDetail:     event.ActionDetail,
		PerformedBy:      event.PerformedBy,
		Payload:          event.Payload,
		CreatedAt:        event.CreatedAt.Format(time.RFC3339),
	}
}

// Create appends one business event. Every confirmed dashboard action
// lands here; nothing mutates state silently.
func (h *EventHandler) Create(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req eventCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	eventType := model.BusinessEventType(req.EventType)
	if !eventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event_type"})
		return
	}

	payload := req.Payload
	if payload == nil {
		payload = model.JSONB{}
	}
	event := &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        eventType,
		Status:           model.EventStatusCompleted,
		SourceEventType:  req.SourceEventType,
		SourceEntityType: req.SourceEntityType,
		SourceEntityID:   req.SourceEntityID,
		ActionLabel:      req.ActionLabel,
		ActionDetail:     req.ActionDetail,
		PerformedBy:      req.PerformedBy,
		Payload:          payload,
	}

	if err := h.events.Append(c.Request.Context(), event); err != nil {
		h.logger.Error("failed to append business event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log event"})
		return
	}
	metrics.BusinessEventsTotal.WithLabelValues(string(eventType)).Inc()

	c.JSON(http.StatusCreated, mapEvent(event))
}

// Today lists the actions resolved so far today. They drop out of this
// view at midnight but stay in the log.
func (h *EventHandler) Today(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	events, err := h.events.TodayResolved(c.Request.Context(), tenantID, h.now().UTC())
	if err != nil {
		h.logger.Error("failed to list today's events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	responses := make([]eventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, mapEvent(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{"events": responses, "count": len(responses)})
}

func (h *EventHandler) List(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	var eventType *model.BusinessEventType
	if raw := c.Query("event_type"); raw != "" {
		parsed := model.BusinessEventType(raw)
		eventType = &parsed
	}

	events, total, err := h.events.List(c.Request.Context(), tenantID, eventType, limit, offset)
	if err != nil {
		h.logger.Error("failed to list business events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	responses := make([]eventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, mapEvent(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{"events": responses, "total": total})
}

// CoverCandidates suggests who could cover for an absent member of
// staff. Suggestions only; assignment is a separate confirmed action.
func (h *EventHandler) CoverCandidates(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	absentStaffID, err := uuid.Parse(c.Query("absent_staff_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid absent_staff_id"})
		return
	}
	var serviceID *uuid.UUID
	if raw := c.Query("service_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service_id"})
			return
		}
		serviceID = &parsed
	}
	strategy := cover.StrategyRotation
	if raw := c.Query("strategy"); raw != "" {
		strategy = cover.Strategy(raw)
	}

	candidates, err := h.rotator.Candidates(c.Request.Context(), tenantID, absentStaffID, serviceID, strategy)
	if err != nil {
		h.logger.Error("failed to compute cover candidates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute candidates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

type coverDeclineRequest struct {
	AbsentStaffID   string   `json:"absent_staff_id" binding:"required"`
	DeclinedStaffID string   `json:"declined_staff_id" binding:"required"`
	AlsoDeclined    []string `json:"also_declined"`
	ServiceID       string   `json:"service_id"`
	Strategy        string   `json:"strategy"`
	PerformedBy     string   `json:"performed_by"`
}

// CoverDecline logs the decline first, then recomputes. The audit row
// exists even if no further candidate can be found.
func (h *EventHandler) CoverDecline(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req coverDeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	absentStaffID, err := uuid.Parse(req.AbsentStaffID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid absent_staff_id"})
		return
	}
	declinedID, err := uuid.Parse(req.DeclinedStaffID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid declined_staff_id"})
		return
	}
	declined := []uuid.UUID{declinedID}
	for _, raw := range req.AlsoDeclined {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid also_declined entry"})
			return
		}
		declined = append(declined, parsed)
	}
	var serviceID *uuid.UUID
	if req.ServiceID != "" {
		parsed, err := uuid.Parse(req.ServiceID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service_id"})
			return
		}
		serviceID = &parsed
	}
	strategy := cover.StrategyRotation
	if req.Strategy != "" {
		strategy = cover.Strategy(req.Strategy)
	}

	ctx := c.Request.Context()
	event := &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        model.EventCoverDeclined,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "staff",
		SourceEntityID:   declinedID.String(),
		ActionLabel:      "Cover declined",
		PerformedBy:      req.PerformedBy,
		Payload: model.JSONB{
			"absent_staff_id": absentStaffID.String(),
			"cover_staff_id":  declinedID.String(),
		},
	}
	if err := h.events.Append(ctx, event); err != nil {
		h.logger.Error("failed to log cover decline", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log decline"})
		return
	}
	metrics.BusinessEventsTotal.WithLabelValues(string(model.EventCoverDeclined)).Inc()

	next, err := h.rotator.NextCandidate(ctx, tenantID, absentStaffID, declined, serviceID, strategy)
	if err != nil {
		h.logger.Error("failed to compute next candidate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute next candidate"})
		return
	}
	if next == nil {
		c.JSON(http.StatusOK, gin.H{
			"candidate": nil,
			"message":   "No staff available, reschedule or cancel",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": next})
}
