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

type BookingHandler struct {
	bookings *postgres.BookingRepository
	events   *postgres.BusinessEventRepository
	logger   *zap.Logger
}

func NewBookingHandler(bookings *postgres.BookingRepository, events *postgres.BusinessEventRepository, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, events: events, logger: logger}
}

type bookingResponse struct {
	ID            string  `json:"id"`
	ClientID      *string `json:"client_id,omitempty"`
	ClientName    string  `json:"client_name"`
	ServiceID     string  `json:"service_id"`
	ServiceName   string  `json:"service_name,omitempty"`
	StaffID       *string `json:"staff_id,omitempty"`
	StaffName     string  `json:"staff_name,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	Notes         string  `json:"notes,omitempty"`
}

func mapBooking(b *model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID.String(),
		ClientName:    b.ClientName(),
		ServiceID:     b.ServiceID.String(),
		StartTime:     b.StartTime.Format(time.RFC3339),
		EndTime:       b.EndTime.Format(time.RFC3339),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Notes:         b.Notes,
	}
	if b.ClientID != nil {
		id := b.ClientID.String()
		resp.ClientID = &id
	}
	if b.StaffID != nil {
		id := b.StaffID.String()
		resp.StaffID = &id
	}
	if b.Service != nil {
		resp.ServiceName = b.Service.Name
	}
	if b.Staff != nil {
		resp.StaffName = b.Staff.Name
	}
	return resp
}

func (h *BookingHandler) List(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	var status *model.BookingStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.BookingStatus(raw)
		status = &parsed
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return
	}

	bookings, total, err := h.bookings.List(c.Request.Context(), tenantID, status, from, to, limit, offset)
	if err != nil {
		h.logger.Error("failed to list bookings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bookings"})
		return
	}

	responses := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, mapBooking(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": responses, "total": total})
}

type bookingCreateRequest struct {
	ClientID  string `json:"client_id"`
	ServiceID string `json:"service_id" binding:"required"`
	StaffID   string `json:"staff_id"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Notes     string `json:"notes"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req bookingCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service_id"})
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_time"})
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_time"})
		return
	}

	booking := &model.Booking{
		TenantID:      tenantID,
		ServiceID:     serviceID,
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		Notes:         req.Notes,
	}
	if req.ClientID != "" {
		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
			return
		}
		booking.ClientID = &clientID
	}
	if req.StaffID != "" {
		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff_id"})
			return
		}
		booking.StaffID = &staffID
	}

	if err := h.bookings.Create(c.Request.Context(), booking); err != nil {
		h.logger.Error("failed to create booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create booking"})
		return
	}
	c.JSON(http.StatusCreated, mapBooking(booking))
}

func (h *BookingHandler) Get(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	booking, err := h.bookings.GetByID(c.Request.Context(), tenantID, bookingID)
	if err != nil {
		respondStoreError(c, err, "booking")
		return
	}
	c.JSON(http.StatusOK, mapBooking(booking))
}

type assignRequest struct {
	StaffID     string `json:"staff_id" binding:"required"`
	PerformedBy string `json:"performed_by"`
}

// Assign puts a member of staff on a booking and logs the confirmed
// action.
func (h *BookingHandler) Assign(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff_id"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.bookings.GetByID(ctx, tenantID, bookingID); err != nil {
		respondStoreError(c, err, "booking")
		return
	}
	updates := map[string]interface{}{
		"staff_id": staffID,
		"status":   model.BookingConfirmed,
	}
	if err := h.bookings.Update(ctx, tenantID, bookingID, updates); err != nil {
		h.logger.Error("failed to assign booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign booking"})
		return
	}

	h.logAction(c, &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        model.EventBookingAssigned,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "booking",
		SourceEntityID:   bookingID.String(),
		ActionLabel:      "Staff assigned",
		PerformedBy:      req.PerformedBy,
		Payload:          model.JSONB{"staff_id": staffID.String()},
	})
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

type cancelRequest struct {
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.bookings.GetByID(ctx, tenantID, bookingID); err != nil {
		respondStoreError(c, err, "booking")
		return
	}
	updates := map[string]interface{}{"status": model.BookingCancelled}
	if err := h.bookings.Update(ctx, tenantID, bookingID, updates); err != nil {
		h.logger.Error("failed to cancel booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel booking"})
		return
	}

	h.logAction(c, &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        model.EventBookingCancelled,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "booking",
		SourceEntityID:   bookingID.String(),
		ActionLabel:      "Booking cancelled",
		ActionDetail:     req.Reason,
		PerformedBy:      req.PerformedBy,
	})
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

type markPaidRequest struct {
	PerformedBy string `json:"performed_by"`
}

func (h *BookingHandler) MarkPaid(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.bookings.GetByID(ctx, tenantID, bookingID); err != nil {
		respondStoreError(c, err, "booking")
		return
	}
	updates := map[string]interface{}{"payment_status": model.PaymentPaid}
	if err := h.bookings.Update(ctx, tenantID, bookingID, updates); err != nil {
		h.logger.Error("failed to mark booking paid", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark paid"})
		return
	}

	h.logAction(c, &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        model.EventPaymentMarked,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "booking",
		SourceEntityID:   bookingID.String(),
		ActionLabel:      "Payment marked as received",
		PerformedBy:      req.PerformedBy,
	})
	c.JSON(http.StatusOK, gin.H{"paid": true})
}

func (h *BookingHandler) logAction(c *gin.Context, event *model.BusinessEvent) {
	if err := h.events.Append(c.Request.Context(), event); err != nil {
		h.logger.Warn("business event append failed",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		return
	}
	metrics.BusinessEventsTotal.WithLabelValues(string(event.EventType)).Inc()
}
