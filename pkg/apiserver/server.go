// Package apiserver assembles the HTTP surface: repositories, engines
// and handlers behind one gin router.
package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/apiserver/handlers"
	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/auth"
	"github.com/sortedhq/sorted/pkg/command"
	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/cover"
	"github.com/sortedhq/sorted/pkg/crm"
	"github.com/sortedhq/sorted/pkg/opsevents"
	"github.com/sortedhq/sorted/pkg/recalc"
	"github.com/sortedhq/sorted/pkg/score"
	"github.com/sortedhq/sorted/pkg/store/postgres"
	redisclient "github.com/sortedhq/sorted/pkg/store/redis"
)

type Server struct {
	router   *gin.Engine
	db       *postgres.Store
	redis    *redisclient.Client
	cfg      *config.Config
	logger   *zap.Logger
	notifier recalc.Notifier
}

func NewServer(db *postgres.Store, redis *redisclient.Client, cfg *config.Config, logger *zap.Logger) *Server {
	var notifier recalc.Notifier = recalc.Muted{}
	if redis != nil {
		notifier = recalc.NewBusNotifier(redis.Client())
	}
	s := &Server{
		db:       db,
		redis:    redis,
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var db *gorm.DB
	if s.db != nil {
		db = s.db.DB()
	}
	bookingRepo := postgres.NewBookingRepository(db)
	staffRepo := postgres.NewStaffRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	complianceRepo := postgres.NewComplianceRepository(db)
	scoreRepo := postgres.NewScoreRepository(db)
	eventRepo := postgres.NewBusinessEventRepository(db)
	leadRepo := postgres.NewLeadRepository(db)

	calculator := score.NewCalculator(complianceRepo, scoreRepo, s.logger)
	deriver := opsevents.NewDeriver(bookingRepo, staffRepo, complianceRepo,
		s.cfg.Modules, s.cfg.Dashboard, s.logger)
	rotator := cover.NewRotator(staffRepo, eventRepo, s.cfg.Rotation)
	commandRouter := command.NewRouter(staffRepo, clientRepo, leadRepo, bookingRepo, complianceRepo, s.logger)
	crmService := crm.NewService(leadRepo, clientRepo, bookingRepo, s.logger)
	tokens := auth.NewTokenManager(s.cfg.Auth)

	dashboardHandler := handlers.NewDashboardHandler(deriver, s.logger)
	complianceHandler := handlers.NewComplianceHandler(complianceRepo, scoreRepo, eventRepo, calculator, s.notifier, s.logger)
	eventHandler := handlers.NewEventHandler(eventRepo, rotator, s.logger)
	commandHandler := handlers.NewCommandHandler(commandRouter, command.NewParser(), staffRepo, clientRepo, eventRepo, s.logger)
	leadHandler := handlers.NewLeadHandler(crmService, s.logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, eventRepo, s.logger)
	staffHandler := handlers.NewStaffHandler(staffRepo, eventRepo, s.logger)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(tokens))
		api.Use(middleware.Tenant())

		api.GET("/dashboard/events", dashboardHandler.Events)
		api.GET("/dashboard/state", dashboardHandler.State)

		api.GET("/compliance/items", complianceHandler.ListItems)
		api.POST("/compliance/items", complianceHandler.CreateItem)
		api.GET("/compliance/items/:id", complianceHandler.GetItem)
		api.PUT("/compliance/items/:id", complianceHandler.UpdateItem)
		api.DELETE("/compliance/items/:id", complianceHandler.DeleteItem)
		api.POST("/compliance/items/:id/complete", complianceHandler.MarkComplete)
		api.GET("/compliance/dashboard", complianceHandler.Dashboard)
		api.GET("/compliance/breakdown", complianceHandler.Breakdown)
		api.GET("/compliance/priorities", complianceHandler.Priorities)
		api.GET("/compliance/audit-log", complianceHandler.AuditLog)
		api.POST("/compliance/recalculate", complianceHandler.Recalculate)
		api.GET("/compliance/calendar", complianceHandler.Calendar)
		api.GET("/compliance/incidents", complianceHandler.ListIncidents)
		api.POST("/compliance/incidents", complianceHandler.CreateIncident)
		api.PATCH("/compliance/incidents/:id/status", complianceHandler.UpdateIncidentStatus)
		api.GET("/compliance/accidents", complianceHandler.ListAccidents)
		api.POST("/compliance/accidents", complianceHandler.CreateAccident)
		api.GET("/compliance/accidents/:id", complianceHandler.GetAccident)
		api.PUT("/compliance/accidents/:id", complianceHandler.UpdateAccident)
		api.DELETE("/compliance/accidents/:id", complianceHandler.DeleteAccident)

		api.POST("/events", eventHandler.Create)
		api.GET("/events", eventHandler.List)
		api.GET("/events/today", eventHandler.Today)
		api.GET("/cover/candidates", eventHandler.CoverCandidates)
		api.POST("/cover/decline", eventHandler.CoverDecline)

		api.POST("/command", commandHandler.Execute)
		api.POST("/command/parse", commandHandler.Parse)
		api.GET("/command/suggestions", commandHandler.Suggestions)

		api.GET("/leads", leadHandler.List)
		api.POST("/leads", leadHandler.Create)
		api.POST("/leads/quick-add", leadHandler.QuickAdd)
		api.POST("/leads/sync", leadHandler.Sync)
		api.GET("/leads/:id", leadHandler.Get)
		api.PATCH("/leads/:id", leadHandler.Update)
		api.POST("/leads/:id/contact", leadHandler.Contact)
		api.POST("/leads/:id/convert", leadHandler.Convert)
		api.POST("/leads/:id/follow-up-done", leadHandler.FollowUpDone)
		api.POST("/leads/:id/notes", leadHandler.AddNote)
		api.GET("/leads/:id/history", leadHandler.History)

		api.GET("/bookings", bookingHandler.List)
		api.POST("/bookings", bookingHandler.Create)
		api.GET("/bookings/:id", bookingHandler.Get)
		api.POST("/bookings/:id/assign", bookingHandler.Assign)
		api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
		api.POST("/bookings/:id/mark-paid", bookingHandler.MarkPaid)

		api.GET("/staff", staffHandler.List)
		api.POST("/staff", staffHandler.Create)
		api.POST("/leave", staffHandler.CreateLeave)
		api.POST("/leave/:id/approve", staffHandler.ApproveLeave)
		api.POST("/leave/:id/decline", staffHandler.DeclineLeave)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
