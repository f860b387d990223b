package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/score"
	"github.com/sortedhq/sorted/pkg/seed"
	"github.com/sortedhq/sorted/pkg/store/postgres"
)

// Seeds the UK compliance baseline. Pass -tenant to seed one tenant,
// -name to get-or-create a tenant by name first, or -all to re-seed
// every tenant (safe: the seeder is idempotent).
func main() {
	tenantFlag := flag.String("tenant", "", "tenant id to seed")
	nameFlag := flag.String("name", "", "tenant name to get or create, then seed")
	allFlag := flag.Bool("all", false, "seed every tenant")
	flag.Parse()

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

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	tenantRepo := postgres.NewTenantRepository(db.DB())
	complianceRepo := postgres.NewComplianceRepository(db.DB())
	scoreRepo := postgres.NewScoreRepository(db.DB())
	calculator := score.NewCalculator(complianceRepo, scoreRepo, logger)
	seeder := seed.NewSeeder(complianceRepo, calculator, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var tenantIDs []uuid.UUID
	switch {
	case *allFlag:
		tenants, err := tenantRepo.List(ctx)
		if err != nil {
			logger.Fatal("failed to list tenants", zap.Error(err))
		}
		for _, tenant := range tenants {
			tenantIDs = append(tenantIDs, tenant.ID)
		}
	case *nameFlag != "":
		tenant, err := tenantRepo.GetOrCreateByName(ctx, *nameFlag)
		if err != nil {
			logger.Fatal("failed to resolve tenant by name", zap.Error(err))
		}
		tenantIDs = append(tenantIDs, tenant.ID)
	case *tenantFlag != "":
		id, err := uuid.Parse(*tenantFlag)
		if err != nil {
			logger.Fatal("invalid tenant id", zap.String("tenant", *tenantFlag))
		}
		tenantIDs = append(tenantIDs, id)
	default:
		logger.Fatal("one of -tenant, -name or -all is required")
	}

	total := 0
	for _, id := range tenantIDs {
		created, err := seeder.Run(ctx, id)
		if err != nil {
			logger.Fatal("seeding failed",
				zap.String("tenant_id", id.String()),
				zap.Error(err),
			)
		}
		total += created
	}

	logger.Info("seeding complete",
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("items_created", total),
	)
}
