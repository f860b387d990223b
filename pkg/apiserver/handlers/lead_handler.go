package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/crm"
	"github.com/sortedhq/sorted/pkg/model"
)

type LeadHandler struct {
	crm    *crm.Service
	logger *zap.Logger
	now    func() time.Time
}

func NewLeadHandler(service *crm.Service, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{crm: service, logger: logger, now: time.Now}
}

type leadResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Source           string   `json:"source"`
	Status           string   `json:"status"`
	ValuePence       int64    `json:"value_pence"`
	Notes            string   `json:"notes,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	FollowUpDate     *string  `json:"follow_up_date"`
	LastContactDate  *string  `json:"last_contact_date"`
	MarketingConsent bool     `json:"marketing_consent"`
	ClientID         *string  `json:"client_id,omitempty"`
	ClientScore      int      `json:"client_score"`
	ScoreLabel       string   `json:"score_label"`
	ActionRequired   string   `json:"action_required,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

func (h *LeadHandler) mapLead(lead *model.Lead) leadResponse {
	resp := leadResponse{
		ID:               lead.ID.String(),
		Name:             lead.Name,
		Email:            lead.Email,
		Phone:            lead.Phone,
		Source:           string(lead.Source),
		Status:           string(lead.Status),
		ValuePence:       lead.ValuePence,
		Notes:            lead.Notes,
		Tags:             lead.Tags,
		FollowUpDate:     formatDate(lead.FollowUpDate),
		LastContactDate:  formatDate(lead.LastContactDate),
		MarketingConsent: lead.MarketingConsent,
		ClientScore:      lead.ClientScore(),
		ScoreLabel:       lead.ScoreLabel(),
		ActionRequired:   lead.ActionRequired(h.now().UTC()),
		CreatedAt:        lead.CreatedAt.Format(time.RFC3339),
	}
	if lead.ClientID != nil {
		id := lead.ClientID.String()
		resp.ClientID = &id
	}
	return resp
}

func (h *LeadHandler) List(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var status *model.LeadStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.LeadStatus(raw)
		status = &parsed
	}

	leads, err := h.crm.ListLeads(c.Request.Context(), tenantID, status)
	if err != nil {
		h.logger.Error("failed to list leads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}

	responses := make([]leadResponse, 0, len(leads))
	for i := range leads {
		responses = append(responses, h.mapLead(&leads[i]))
	}
	c.JSON(http.StatusOK, gin.H{"leads": responses, "count": len(responses)})
}

type leadCreateRequest struct {
	Name             string   `json:"name" binding:"required"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	Source           string   `json:"source"`
	ValuePence       int64    `json:"value_pence"`
	Notes            string   `json:"notes"`
	FollowUpDate     string   `json:"follow_up_date"`
	MarketingConsent bool     `json:"marketing_consent"`
	Tags             []string `json:"tags"`
}

func (h *LeadHandler) Create(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req leadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	input := crm.CreateLeadInput{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Source:           model.LeadSource(req.Source),
		ValuePence:       req.ValuePence,
		Notes:            req.Notes,
		MarketingConsent: req.MarketingConsent,
	}
	followUp, err := parseDate(req.FollowUpDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid follow_up_date"})
		return
	}
	input.FollowUpDate = followUp

	lead, err := h.crm.CreateLead(c.Request.Context(), tenantID, input)
	if err != nil {
		h.logger.Error("failed to create lead", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}
	c.JSON(http.StatusCreated, h.mapLead(lead))
}

func (h *LeadHandler) Get(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	lead, err := h.crm.Lead(c.Request.Context(), tenantID, leadID)
	if err != nil {
		respondStoreError(c, err, "lead")
		return
	}
	c.JSON(http.StatusOK, h.mapLead(lead))
}

type leadUpdateRequest struct {
	Status           *string  `json:"status"`
	Name             *string  `json:"name"`
	Email            *string  `json:"email"`
	Phone            *string  `json:"phone"`
	ValuePence       *int64   `json:"value_pence"`
	Source           *string  `json:"source"`
	Notes            *string  `json:"notes"`
	Tags             []string `json:"tags"`
	FollowUpDate     *string  `json:"follow_up_date"`
	MarketingConsent *bool    `json:"marketing_consent"`
}

func (h *LeadHandler) Update(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	var req leadUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	input := crm.UpdateLeadInput{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		ValuePence:       req.ValuePence,
		Notes:            req.Notes,
		Tags:             req.Tags,
		MarketingConsent: req.MarketingConsent,
	}
	if req.Status != nil {
		status := model.LeadStatus(*req.Status)
		input.Status = &status
	}
	if req.Source != nil {
		source := model.LeadSource(*req.Source)
		input.Source = &source
	}
	if req.FollowUpDate != nil {
		parsed, err := parseDate(*req.FollowUpDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid follow_up_date"})
			return
		}
		input.FollowUpDate = &parsed
	}

	lead, err := h.crm.UpdateLead(c.Request.Context(), tenantID, leadID, input)
	if err != nil {
		respondStoreError(c, err, "lead")
		return
	}
	c.JSON(http.StatusOK, h.mapLead(lead))
}

func (h *LeadHandler) Contact(c *gin.Context) {
	h.transition(c, h.crm.Contact)
}

func (h *LeadHandler) Convert(c *gin.Context) {
	h.transition(c, h.crm.Convert)
}

func (h *LeadHandler) FollowUpDone(c *gin.Context) {
	h.transition(c, h.crm.FollowUpDone)
}

func (h *LeadHandler) transition(c *gin.Context, fn func(ctx context.Context, tenantID, leadID uuid.UUID) (*model.Lead, error)) {
	tenantID := middleware.TenantFrom(c)
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	lead, err := fn(c.Request.Context(), tenantID, leadID)
	if err != nil {
		respondStoreError(c, err, "lead")
		return
	}
	c.JSON(http.StatusOK, h.mapLead(lead))
}

type quickAddRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *LeadHandler) QuickAdd(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req quickAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	lead, err := h.crm.QuickAdd(c.Request.Context(), tenantID, req.Text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, h.mapLead(lead))
}

type noteRequest struct {
	Text      string `json:"text" binding:"required"`
	CreatedBy string `json:"created_by"`
}

func (h *LeadHandler) AddNote(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	note, err := h.crm.AddNote(c.Request.Context(), tenantID, leadID, req.Text, req.CreatedBy)
	if err != nil {
		respondStoreError(c, err, "lead")
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *LeadHandler) History(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	history, err := h.crm.History(c.Request.Context(), tenantID, leadID)
	if err != nil {
		respondStoreError(c, err, "lead")
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// Sync imports booking clients that have no linked lead yet.
func (h *LeadHandler) Sync(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	created, err := h.crm.SyncFromBookings(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("lead sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}
