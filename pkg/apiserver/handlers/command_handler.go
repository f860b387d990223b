package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/command"
	"github.com/sortedhq/sorted/pkg/model"
	"github.com/sortedhq/sorted/pkg/store/postgres"
)

type CommandHandler struct {
	router  *command.Router
	parser  *command.Parser
	staff   *postgres.StaffRepository
	clients *postgres.ClientRepository
	events  *postgres.BusinessEventRepository
	logger  *zap.Logger
}

func NewCommandHandler(router *command.Router, parser *command.Parser, staff *postgres.StaffRepository, clients *postgres.ClientRepository, events *postgres.BusinessEventRepository, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{
		router:  router,
		parser:  parser,
		staff:   staff,
		clients: clients,
		events:  events,
		logger:  logger,
	}
}

type commandRequest struct {
	Text        string `json:"text" binding:"required"`
	PerformedBy string `json:"performed_by"`
}

// Execute runs a command bar entry. Every execution, matched or not,
// is appended to the business event log.
func (h *CommandHandler) Execute(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	resp := h.router.Execute(c.Request.Context(), tenantID, req.Text)

	event := &model.BusinessEvent{
		TenantID:     tenantID,
		EventType:    model.EventAssistantCommand,
		Status:       model.EventStatusCompleted,
		ActionLabel:  "Command bar",
		ActionDetail: req.Text,
		PerformedBy:  req.PerformedBy,
		Payload: model.JSONB{
			"action":  resp.Action,
			"success": resp.Success,
			"message": resp.Message,
		},
	}
	if err := h.events.Append(c.Request.Context(), event); err != nil {
		h.logger.Warn("failed to log assistant command", zap.Error(err))
	}

	c.JSON(http.StatusOK, resp)
}

// Parse classifies a command without executing it, for inline preview.
// Entity extraction runs against the live staff and client rosters.
func (h *CommandHandler) Parse(c *gin.Context) {
	tenantID := middleware.TenantFrom(c)

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	staff, err := h.staff.List(ctx, tenantID, true)
	if err != nil {
		h.logger.Error("failed to load staff roster", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse command"})
		return
	}
	clients, err := h.clients.List(ctx, tenantID)
	if err != nil {
		h.logger.Error("failed to load client roster", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse command"})
		return
	}

	staffNames := make([]string, 0, len(staff))
	for i := range staff {
		staffNames = append(staffNames, staff[i].Name)
	}
	clientNames := make([]string, 0, len(clients))
	for i := range clients {
		clientNames = append(clientNames, clients[i].Name)
	}

	c.JSON(http.StatusOK, h.parser.Parse(req.Text, staffNames, clientNames))
}

func (h *CommandHandler) Suggestions(c *gin.Context) {
	matched := command.Suggestions(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"suggestions": matched, "count": len(matched)})
}
