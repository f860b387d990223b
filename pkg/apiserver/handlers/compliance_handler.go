package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/model"
	"github.com/sortedhq/sorted/pkg/recalc"
	"github.com/sortedhq/sorted/pkg/score"
	"github.com/sortedhq/sorted/pkg/store/postgres"
)

type ComplianceHandler struct {
	repo       *postgres.ComplianceRepository
	scores     *postgres.ScoreRepository
	events     *postgres.BusinessEventRepository
	calculator *score.Calculator
	notifier   recalc.Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewComplianceHandler(repo *postgres.ComplianceRepository, scores *postgres.ScoreRepository, events *postgres.BusinessEventRepository, calculator *score.Calculator, notifier recalc.Notifier, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		repo:       repo,
		scores:     scores,
		events:     events,
		calculator: calculator,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

type itemResponse struct {
	ID                string  `json:"id"`
	CategoryID        string  `json:"category_id"`
	Category          string  `json:"category"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	ItemType          string  `json:"item_type"`
	TypeDisplay       string  `json:"type_display"`
	FrequencyType     string  `json:"frequency_type"`
	Status            string  `json:"status"`
	DueDate           *string `json:"due_date"`
	NextDueDate       *string `json:"next_due_date"`
	ExpiryDate        *string `json:"expiry_date"`
	ReminderDays      int     `json:"reminder_days"`
	Weight            int     `json:"weight"`
	EvidenceRequired  bool    `json:"evidence_required"`
	DocumentURL       string  `json:"document_url,omitempty"`
	LastCompletedDate *string `json:"last_completed_date"`
	CompletedBy       string  `json:"completed_by,omitempty"`
	RegulatoryRef     string  `json:"regulatory_ref,omitempty"`
	LegalReference    string  `json:"legal_reference,omitempty"`
	PlainEnglishWhy   string  `json:"plain_english_why,omitempty"`
	PrimaryAction     string  `json:"primary_action,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	Missing           bool    `json:"missing"`
}

func mapItem(item *model.ComplianceItem) itemResponse {
	resp := itemResponse{
		ID:                item.ID.String(),
		CategoryID:        item.CategoryID.String(),
		Title:             item.Title,
		Description:       item.Description,
		ItemType:          string(item.ItemType),
		TypeDisplay:       item.ItemType.Display(),
		FrequencyType:     string(item.FrequencyType),
		Status:            string(item.Status),
		DueDate:           formatDate(item.DueDate),
		NextDueDate:       formatDate(item.NextDueDate),
		ExpiryDate:        formatDate(item.ExpiryDate),
		ReminderDays:      item.ReminderDays,
		Weight:            item.Weight,
		EvidenceRequired:  item.EvidenceRequired,
		DocumentURL:       item.DocumentURL,
		LastCompletedDate: formatDate(item.LastCompletedDate),
		CompletedBy:       item.CompletedBy,
		RegulatoryRef:     item.RegulatoryRef,
		LegalReference:    item.LegalReference,
		PlainEnglishWhy:   item.PlainEnglishWhy,
		PrimaryAction:     item.PrimaryAction,
		Notes:             item.Notes,
		Missing:           item.Missing(),
	}
	if item.Category != nil {
		resp.Category = item.Category.Name
	}
	return resp
}

func (h *ComplianceHandler) ListItems(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	filter := postgres.ItemFilter{Category: c.Query("category")}
	if raw := c.Query("status"); raw != "" {
		status := model.ItemStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		itemType := model.ItemType(raw)
		filter.ItemType = &itemType
	}

	items, err := h.repo.ListItems(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.logger.Error("failed to list compliance items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list items"})
		return
	}

	responses := make([]itemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, mapItem(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": responses, "count": len(responses)})
}

func (h *ComplianceHandler) GetItem(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.repo.GetItem(c.Request.Context(), tenantID, itemID)
	if err != nil {
		respondStoreError(c, err, "item")
		return
	}
	c.JSON(http.StatusOK, mapItem(item))
}

type itemCreateRequest struct {
	CategoryID       string `json:"category_id" binding:"required"`
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	ItemType         string `json:"item_type"`
	FrequencyType    string `json:"frequency_type"`
	DueDate          string `json:"due_date"`
	NextDueDate      string `json:"next_due_date"`
	ExpiryDate       string `json:"expiry_date"`
	ReminderDays     int    `json:"reminder_days"`
	Weight           int    `json:"weight"`
	EvidenceRequired bool   `json:"evidence_required"`
	RegulatoryRef    string `json:"regulatory_ref"`
	LegalReference   string `json:"legal_reference"`
	PlainEnglishWhy  string `json:"plain_english_why"`
	PrimaryAction    string `json:"primary_action"`
	Notes            string `json:"notes"`
}

func (h *ComplianceHandler) CreateItem(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req itemCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category_id"})
		return
	}

	item := &model.ComplianceItem{
		CategoryID:       categoryID,
		Title:            req.Title,
		Description:      req.Description,
		ItemType:         model.ItemBestPractice,
		FrequencyType:    model.FrequencyAnnual,
		ReminderDays:     req.ReminderDays,
		Weight:           req.Weight,
		EvidenceRequired: req.EvidenceRequired,
		RegulatoryRef:    req.RegulatoryRef,
		LegalReference:   req.LegalReference,
		PlainEnglishWhy:  req.PlainEnglishWhy,
		PrimaryAction:    req.PrimaryAction,
		Notes:            req.Notes,
	}
	if req.ItemType != "" {
		item.ItemType = model.ItemType(req.ItemType)
	}
	if req.FrequencyType != "" {
		item.FrequencyType = model.FrequencyType(req.FrequencyType)
	}
	if item.ReminderDays <= 0 {
		item.ReminderDays = 30
	}
	if item.Weight <= 0 {
		item.Weight = 1
	}
	if !h.assignDate(c, req.DueDate, &item.DueDate) ||
		!h.assignDate(c, req.NextDueDate, &item.NextDueDate) ||
		!h.assignDate(c, req.ExpiryDate, &item.ExpiryDate) {
		return
	}
	item.Status = score.DeriveStatus(item, h.now().UTC())

	if err := h.repo.CreateItem(c.Request.Context(), item); err != nil {
		h.logger.Error("failed to create compliance item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create item"})
		return
	}
	h.notifyRecalc(c, tenantID, "item_created")
	c.JSON(http.StatusCreated, mapItem(item))
}

type itemUpdateRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ItemType         *string `json:"item_type"`
	FrequencyType    *string `json:"frequency_type"`
	DueDate          *string `json:"due_date"`
	NextDueDate      *string `json:"next_due_date"`
	ExpiryDate       *string `json:"expiry_date"`
	ReminderDays     *int    `json:"reminder_days"`
	Weight           *int    `json:"weight"`
	EvidenceRequired *bool   `json:"evidence_required"`
	DocumentURL      *string `json:"document_url"`
	Notes            *string `json:"notes"`
}

func (h *ComplianceHandler) UpdateItem(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req itemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	item, err := h.repo.GetItem(c.Request.Context(), tenantID, itemID)
	if err != nil {
		respondStoreError(c, err, "item")
		return
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.ItemType != nil {
		item.ItemType = model.ItemType(*req.ItemType)
	}
	if req.FrequencyType != nil {
		item.FrequencyType = model.FrequencyType(*req.FrequencyType)
	}
	if req.ReminderDays != nil {
		item.ReminderDays = *req.ReminderDays
	}
	if req.Weight != nil {
		item.Weight = *req.Weight
	}
	if req.EvidenceRequired != nil {
		item.EvidenceRequired = *req.EvidenceRequired
	}
	if req.DocumentURL != nil {
		item.DocumentURL = *req.DocumentURL
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}
	if req.DueDate != nil && !h.replaceDate(c, *req.DueDate, &item.DueDate) {
		return
	}
	if req.NextDueDate != nil && !h.replaceDate(c, *req.NextDueDate, &item.NextDueDate) {
		return
	}
	if req.ExpiryDate != nil && !h.replaceDate(c, *req.ExpiryDate, &item.ExpiryDate) {
		return
	}
	item.Status = score.DeriveStatus(item, h.now().UTC())

	if err := h.repo.SaveItem(c.Request.Context(), item); err != nil {
		h.logger.Error("failed to update compliance item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	h.notifyRecalc(c, tenantID, "item_updated")
	c.JSON(http.StatusOK, mapItem(item))
}

func (h *ComplianceHandler) DeleteItem(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	if err := h.repo.DeleteItem(c.Request.Context(), tenantID, itemID); err != nil {
		respondStoreError(c, err, "item")
		return
	}
	h.notifyRecalc(c, tenantID, "item_deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type markCompleteRequest struct {
	CompletedBy string `json:"completed_by"`
	DocumentURL string `json:"document_url"`
	Notes       string `json:"notes"`
}

// MarkComplete records a completion: today becomes the last completed
// date and the next due date rolls forward per the recurrence rule.
// Completing an item never lowers its status.
func (h *ComplianceHandler) MarkComplete(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req markCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	item, err := h.repo.GetItem(c.Request.Context(), tenantID, itemID)
	if err != nil {
		respondStoreError(c, err, "item")
		return
	}

	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	item.LastCompletedDate = &today
	item.CompletedAt = &now
	item.CompletedBy = req.CompletedBy
	if req.DocumentURL != "" {
		item.DocumentURL = req.DocumentURL
	}
	if req.Notes != "" {
		item.Notes = req.Notes
	}
	if next := item.ComputeNextDue(today); next != nil {
		item.NextDueDate = next
		if item.ExpiryDate != nil {
			item.ExpiryDate = next
		}
	}
	item.Status = score.DeriveStatus(item, now)

	if err := h.repo.SaveItem(c.Request.Context(), item); err != nil {
		h.logger.Error("failed to mark item complete", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark complete"})
		return
	}

	h.appendEvent(c, &model.BusinessEvent{
		TenantID:         tenantID,
		EventType:        model.EventComplianceCompleted,
		Status:           model.EventStatusCompleted,
		SourceEntityType: "compliance_item",
		SourceEntityID:   item.ID.String(),
		ActionLabel:      "Marked complete",
		ActionDetail:     item.Title,
		PerformedBy:      req.CompletedBy,
	})
	h.notifyRecalc(c, tenantID, "item_completed")

	c.JSON(http.StatusOK, mapItem(item))
}

// Dashboard returns the current score snapshot, calculating one on
// first sight of a tenant.
func (h *ComplianceHandler) Dashboard(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	ctx := c.Request.Context()

	snapshot, err := h.scores.Current(ctx, tenantID)
	if err != nil {
		h.logger.Error("failed to load score", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load score"})
		return
	}
	if snapshot == nil {
		snapshot, err = h.calculator.Recalculate(ctx, tenantID, model.TriggerManual)
		if err != nil {
			h.logger.Error("failed to calculate score", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to calculate score"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"score":               snapshot.Score,
		"previous_score":      snapshot.PreviousScore,
		"score_change":        snapshot.ScoreChange(),
		"colour":              snapshot.Colour(),
		"interpretation":      snapshot.Interpretation(),
		"total_items":         snapshot.TotalItems,
		"compliant_count":     snapshot.CompliantCount,
		"due_soon_count":      snapshot.DueSoonCount,
		"overdue_count":       snapshot.OverdueCount,
		"missing_count":       snapshot.MissingCount,
		"legal_items":         snapshot.LegalItems,
		"best_practice_items": snapshot.BestPracticeItems,
		"last_calculated_at":  snapshot.LastCalculatedAt,
	})
}

func (h *ComplianceHandler) Breakdown(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	items, err := h.repo.ItemsForTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list compliance items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load breakdown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": score.BreakdownByCategory(items)})
}

func (h *ComplianceHandler) Priorities(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	limit := parseLimit(c.Query("limit"), 10)

	items, err := h.repo.ItemsForTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list compliance items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load priorities"})
		return
	}

	prioritised := score.Priorities(items, limit)
	responses := make([]itemResponse, 0, len(prioritised))
	for i := range prioritised {
		responses = append(responses, mapItem(&prioritised[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": responses, "count": len(responses)})
}

func (h *ComplianceHandler) AuditLog(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	limit := parseLimit(c.Query("limit"), 50)

	logs, err := h.scores.ListAudit(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("failed to list audit log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
		return
	}

	type auditResponse struct {
		Score          int    `json:"score"`
		PreviousScore  int    `json:"previous_score"`
		TotalItems     int    `json:"total_items"`
		CompliantCount int    `json:"compliant_count"`
		DueSoonCount   int    `json:"due_soon_count"`
		OverdueCount   int    `json:"overdue_count"`
		Trigger        string `json:"trigger"`
		TriggerDisplay string `json:"trigger_display"`
		CalculatedAt   string `json:"calculated_at"`
	}
	responses := make([]auditResponse, 0, len(logs))
	for _, entry := range logs {
		responses = append(responses, auditResponse{
			Score:          entry.Score,
			PreviousScore:  entry.PreviousScore,
			TotalItems:     entry.TotalItems,
			CompliantCount: entry.CompliantCount,
			DueSoonCount:   entry.DueSoonCount,
			OverdueCount:   entry.OverdueCount,
			Trigger:        string(entry.Trigger),
			TriggerDisplay: entry.Trigger.Display(),
			CalculatedAt:   entry.CalculatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": responses})
}

// Recalculate runs the calculation synchronously so the caller gets
// the fresh score back, unlike item mutations which go through the
// recalc bus.
func (h *ComplianceHandler) Recalculate(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	snapshot, err := h.calculator.Recalculate(c.Request.Context(), tenantID, model.TriggerManual)
	if err != nil {
		h.logger.Error("manual recalculation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recalculation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"score":          snapshot.Score,
		"previous_score": snapshot.PreviousScore,
		"score_change":   snapshot.ScoreChange(),
		"colour":         snapshot.Colour(),
		"interpretation": snapshot.Interpretation(),
	})
}

func (h *ComplianceHandler) Calendar(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).AddDate(0, 0, -1)
	if parsed, err := parseDate(c.Query("from")); err == nil && parsed != nil {
		from = *parsed
	}
	if parsed, err := parseDate(c.Query("to")); err == nil && parsed != nil {
		to = *parsed
	}

	items, err := h.repo.ItemsDueBetween(c.Request.Context(), tenantID, from, to)
	if err != nil {
		h.logger.Error("failed to load calendar items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load calendar"})
		return
	}

	byDate := map[string][]itemResponse{}
	for i := range items {
		key := items[i].NextDueDate.Format(dateLayout)
		byDate[key] = append(byDate[key], mapItem(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"from": from.Format(dateLayout),
		"to":   to.Format(dateLayout),
		"days": byDate,
	})
}

type incidentCreateRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	Location     string `json:"location"`
	IncidentDate string `json:"incident_date"`
	ReportedBy   string `json:"reported_by"`
}

func (h *ComplianceHandler) ListIncidents(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	incidents, err := h.repo.ListIncidents(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list incidents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list incidents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}

func (h *ComplianceHandler) CreateIncident(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req incidentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	incident := &model.IncidentReport{
		TenantID:     tenantID,
		Title:        req.Title,
		Description:  req.Description,
		Severity:     model.IncidentSeverityLow,
		Status:       model.IncidentOpen,
		Location:     req.Location,
		IncidentDate: h.now().UTC(),
		ReportedBy:   req.ReportedBy,
	}
	if req.Severity != "" {
		incident.Severity = model.IncidentSeverity(req.Severity)
	}
	if parsed, err := parseDate(req.IncidentDate); err == nil && parsed != nil {
		incident.IncidentDate = *parsed
	}

	if err := h.repo.CreateIncident(c.Request.Context(), incident); err != nil {
		h.logger.Error("failed to create incident", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create incident"})
		return
	}
	c.JSON(http.StatusCreated, incident)
}

type incidentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ComplianceHandler) UpdateIncidentStatus(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	var req incidentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	status := model.IncidentStatus(req.Status)

	if err := h.repo.UpdateIncidentStatus(c.Request.Context(), tenantID, incidentID, status); err != nil {
		respondStoreError(c, err, "incident")
		return
	}

	if status == model.IncidentResolved || status == model.IncidentClosed {
		h.appendEvent(c, &model.BusinessEvent{
			TenantID:         tenantID,
			EventType:        model.EventIncidentResolved,
			Status:           model.EventStatusCompleted,
			SourceEntityType: "incident",
			SourceEntityID:   incidentID.String(),
			ActionLabel:      "Incident " + string(status),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type accidentRequest struct {
	Date             string `json:"date" binding:"required"`
	Time             string `json:"time"`
	Location         string `json:"location"`
	PersonInvolved   string `json:"person_involved" binding:"required"`
	PersonRole       string `json:"person_role"`
	Description      string `json:"description"`
	Severity         string `json:"severity"`
	RiddorReportable bool   `json:"riddor_reportable"`
	HSEReference     string `json:"hse_reference"`
	FollowUpRequired bool   `json:"follow_up_required"`
	FollowUpNotes    string `json:"follow_up_notes"`
	DocumentURL      string `json:"document_url"`
	ReportedBy       string `json:"reported_by"`
}

func (h *ComplianceHandler) ListAccidents(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	accidents, err := h.repo.ListAccidents(c.Request.Context(), tenantID,
		c.Query("status"), c.Query("riddor") == "true")
	if err != nil {
		h.logger.Error("failed to list accidents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list accidents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accidents": accidents, "count": len(accidents)})
}

func (h *ComplianceHandler) CreateAccident(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req accidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil || date == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	accident := &model.AccidentReport{
		TenantID:         tenantID,
		Date:             *date,
		Time:             req.Time,
		Location:         req.Location,
		PersonInvolved:   req.PersonInvolved,
		PersonRole:       req.PersonRole,
		Description:      req.Description,
		Severity:         "MINOR",
		Status:           "OPEN",
		RiddorReportable: req.RiddorReportable,
		HSEReference:     req.HSEReference,
		FollowUpRequired: req.FollowUpRequired,
		FollowUpNotes:    req.FollowUpNotes,
		DocumentURL:      req.DocumentURL,
		ReportedBy:       req.ReportedBy,
	}
	if req.Severity != "" {
		accident.Severity = req.Severity
	}

	if err := h.repo.CreateAccident(c.Request.Context(), accident); err != nil {
		h.logger.Error("failed to create accident report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create accident report"})
		return
	}
	c.JSON(http.StatusCreated, accident)
}

func (h *ComplianceHandler) GetAccident(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	accidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accident id"})
		return
	}

	accident, err := h.repo.GetAccident(c.Request.Context(), tenantID, accidentID)
	if err != nil {
		respondStoreError(c, err, "accident report")
		return
	}
	c.JSON(http.StatusOK, accident)
}

type accidentUpdateRequest struct {
	Status            *string `json:"status"`
	Severity          *string `json:"severity"`
	RiddorReportable  *bool   `json:"riddor_reportable"`
	HSEReference      *string `json:"hse_reference"`
	RiddorReported    *string `json:"riddor_reported_date"`
	FollowUpRequired  *bool   `json:"follow_up_required"`
	FollowUpNotes     *string `json:"follow_up_notes"`
	FollowUpCompleted *bool   `json:"follow_up_completed"`
	DocumentURL       *string `json:"document_url"`
}

func (h *ComplianceHandler) UpdateAccident(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	accidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accident id"})
		return
	}

	var req accidentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	accident, err := h.repo.GetAccident(c.Request.Context(), tenantID, accidentID)
	if err != nil {
		respondStoreError(c, err, "accident report")
		return
	}

	if req.Status != nil {
		accident.Status = *req.Status
	}
	if req.Severity != nil {
		accident.Severity = *req.Severity
	}
	if req.RiddorReportable != nil {
		accident.RiddorReportable = *req.RiddorReportable
	}
	if req.HSEReference != nil {
		accident.HSEReference = *req.HSEReference
	}
	if req.RiddorReported != nil {
		parsed, err := parseDate(*req.RiddorReported)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid riddor_reported_date"})
			return
		}
		accident.RiddorReportedDate = parsed
	}
	if req.FollowUpRequired != nil {
		accident.FollowUpRequired = *req.FollowUpRequired
	}
	if req.FollowUpNotes != nil {
		accident.FollowUpNotes = *req.FollowUpNotes
	}
	if req.FollowUpCompleted != nil {
		accident.FollowUpCompleted = *req.FollowUpCompleted
		if *req.FollowUpCompleted {
			now := h.now().UTC()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			accident.FollowUpCompletedDate = &today
		}
	}
	if req.DocumentURL != nil {
		accident.DocumentURL = *req.DocumentURL
	}

	if err := h.repo.SaveAccident(c.Request.Context(), accident); err != nil {
		h.logger.Error("failed to update accident report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update accident report"})
		return
	}
	c.JSON(http.StatusOK, accident)
}

func (h *ComplianceHandler) DeleteAccident(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)
	accidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accident id"})
		return
	}

	if err := h.repo.DeleteAccident(c.Request.Context(), tenantID, accidentID); err != nil {
		respondStoreError(c, err, "accident report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// assignDate parses a date string into the target when non-empty.
// Reports false after writing a 400 response for malformed input.
func (h *ComplianceHandler) assignDate(c *gin.Context, raw string, target **time.Time) bool {
	parsed, err := parseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date", "details": raw})
		return false
	}
	if parsed != nil {
		*target = parsed
	}
	return true
}

// replaceDate is assignDate for updates: an empty string clears the
// stored date rather than leaving it alone.
func (h *ComplianceHandler) replaceDate(c *gin.Context, raw string, target **time.Time) bool {
	parsed, err := parseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date", "details": raw})
		return false
	}
	*target = parsed
	return true
}

// notifyRecalc publishes to the recalc bus. Failures are logged and
// swallowed; the mutation already happened.
func (h *ComplianceHandler) notifyRecalc(c *gin.Context, tenantID uuid.UUID, reason string) {
	if err := h.notifier.ItemChanged(c.Request.Context(), tenantID, reason); err != nil {
		h.logger.Warn("recalc notification failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (h *ComplianceHandler) appendEvent(c *gin.Context, event *model.BusinessEvent) {
	if err := h.events.Append(c.Request.Context(), event); err != nil {
		h.logger.Warn("business event append failed",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
	}
}
