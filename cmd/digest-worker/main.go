package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/digest"
	"github.com/sortedhq/sorted/pkg/model"
	"github.com/sortedhq/sorted/pkg/recalc"
	"github.com/sortedhq/sorted/pkg/score"
	"github.com/sortedhq/sorted/pkg/store/postgres"
	redisclient "github.com/sortedhq/sorted/pkg/store/redis"
)

// The digest worker owns both background score paths: the daily
// per-tenant digest pass and the recalc bus consumer that refreshes a
// tenant's score whenever a mutation publishes a change message.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	tenantRepo := postgres.NewTenantRepository(db.DB())
	complianceRepo := postgres.NewComplianceRepository(db.DB())
	scoreRepo := postgres.NewScoreRepository(db.DB())
	eventRepo := postgres.NewBusinessEventRepository(db.DB())

	calculator := score.NewCalculator(complianceRepo, scoreRepo, logger)
	runner := digest.NewRunner(tenantRepo, calculator, complianceRepo, eventRepo,
		cfg.Digest, cfg.Dashboard, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runner.Run(ctx)

	go func() {
		for msg := range recalc.Subscribe(ctx, redis.Client()) {
			trigger := msg.Trigger
			if trigger == "" {
				trigger = model.TriggerItemChange
			}
			if _, err := calculator.Recalculate(ctx, msg.TenantID, trigger); err != nil {
				logger.Error("recalculation from bus failed",
					zap.String("tenant_id", msg.TenantID.String()),
					zap.String("reason", msg.Reason),
					zap.Error(err),
				)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("digest worker shutting down")
}
