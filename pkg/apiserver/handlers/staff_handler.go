package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
	"github.com/sortedhq/sorted/pkg/store/postgres"
)

type StaffHandler struct {
	staff  *postgres.StaffRepository
	events *postgres.BusinessEventRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewStaffHandler(staff *postgres.StaffRepository, events *postgres.BusinessEventRepository, logger *zap.Logger) *StaffHandler {
	return &StaffHandler{staff: staff, events: events, logger: logger, now: time.Now}
}

type staffResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func mapStaff(s *model.Staff) staffResponse {
	return staffResponse{
		ID:     s.ID.String(),
		Name:   s.Name,
		Email:  s.Email,
		Role:   s.Role,
		Active: s.Active,
	}
}

func (h *StaffHandler) List(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	staff, err := h.staff.List(c.Request.Context(), tenantID, c.Query("active") == "true")
	if err != nil {
		h.logger.Error("failed to list staff", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list staff"})
		return
	}

	responses := make([]staffResponse, 0, len(staff))
	for i := range staff {
		responses = append(responses, mapStaff(&staff[i]))
	}
	c.JSON(http.StatusOK, gin.H{"staff": responses, "count": len(responses)})
}

type staffCreateRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *StaffHandler) Create(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req staffCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	staff := &model.Staff{
		TenantID: tenantID,
		Name:     req.Name,
		Email:    req.Email,
		Role:     "staff",
		Active:   true,
	}
	if req.Role != "" {
		staff.Role = req.Role
	}

	if err := h.staff.Create(c.Request.Context(), staff); err != nil {
		h.logger.Error("failed to create staff", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create staff"})
		return
	}
	c.JSON(http.StatusCreated, mapStaff(staff))
}

type leaveCreateRequest struct {
	StaffID   string `json:"staff_id" binding:"required"`
	LeaveType string `json:"leave_type" binding:"required"`
	StartAt   string `json:"start_at" binding:"required"`
	EndAt     string `json:"end_at" binding:"required"`
	Reason    string `json:"reason"`
}

func (h *StaffHandler) CreateLeave(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req leaveCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff_id"})
		return
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at"})
		return
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_at"})
		return
	}
	if !endAt.After(startAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_at must be after start_at"})
		return
	}

	leave := &model.LeaveRequest{
		TenantID:  tenantID,
		StaffID:   staffID,
		LeaveType: model.LeaveType(req.LeaveType),
		Status:    model.LeaveRequested,
		StartAt:   startAt.UTC(),
		EndAt:     endAt.UTC(),
		Reason:    req.Reason,
	}
	if err := h.staff.CreateLeaveRequest(c.Request.Context(), leave); err != nil {
		h.logger.Error("failed to create leave request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create leave request"})
		return
	}
	c.JSON(http.StatusCreated, leave)
}

type leaveDecisionRequest struct {
	PerformedBy string `json:"performed_by"`
}

func (h *StaffHandler) ApproveLeave(c *gin.Context) {
	h.decideLeave(c, model.LeaveApproved, model.EventLeaveApproved, "Leave approved")
}

func (h *StaffHandler) DeclineLeave(c *gin.Context) {
	h.decideLeave(c, model.LeaveDeclined, model.EventLeaveDeclined, "Leave declined")
}

// decideLeave applies an owner's decision and logs the confirmed
// action to the event log.
func (h *StaffHandler) decideLeave(c *gin.Context, status model.LeaveStatus, eventType model.BusinessEventType, label string) {
	tenantID := middleware.TenantFrom(c)
	leaveID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid leave id"})
		return
	}

	var req leaveDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.staff.UpdateLeaveStatus(c.Request.Context(), tenantID, leaveID, status); err != nil {
		respondStoreError(c, err, "leave request")
		return
	}

	event := &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        eventType,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "leave_request",
		SourceEntityID:   leaveID.String(),
		ActionLabel:      label,
		PerformedBy:      req.PerformedBy,
	}
	if err := h.events.Append(c.Request.Context(), event); err != nil {
		h.logger.Warn("business event append failed",
			zap.String("event_type", string(eventType)), zap.Error(err))
	} else {
		metrics.BusinessEventsTotal.WithLabelValues(string(eventType)).Inc()
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
