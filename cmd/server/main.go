package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"control-advisor/internal/assessments"
	"control-advisor/internal/catalog"
	"control-advisor/internal/config"
	"control-advisor/internal/database"
	"control-advisor/internal/gaps"
	"control-advisor/internal/handlers"
	"control-advisor/internal/logging"
	"control-advisor/internal/metrics"
	"control-advisor/internal/section2"
	"control-advisor/internal/server"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	partial, err := gaps.ParsePartialPolicy(cfg.PartialCoveragePolicy)
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	repo := database.NewRepository(db)
	ctx := context.Background()

	// стартовый админ, демо-пользователи и каталог
	if err := database.EnsureAdmin(ctx, repo, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Fatal("failed to create default admin", zap.Error(err))
	}
	if cfg.SeedDemoUsers {
		database.SeedDemoUsers(ctx, repo, logger)
	}
	controls, err := catalog.Load(cfg.CatalogSeed)
	if err != nil {
		logger.Fatal("failed to load catalog seed", zap.String("path", cfg.CatalogSeed), zap.Error(err))
	}
	if err := catalog.Seed(ctx, repo, controls, logger); err != nil {
		logger.Fatal("failed to seed catalog", zap.Error(err))
	}

	m := metrics.New()
	h := handlers.New(
		repo,
		assessments.New(repo, logger.Named("assessments")),
		gaps.New(repo,
			gaps.WithLogger(logger.Named("gaps")),
			gaps.WithMetrics(m),
			gaps.WithPartialPolicy(partial),
		),
		section2.New(repo,
			section2.WithLogger(logger.Named("section2")),
			section2.WithMetrics(m),
		),
		logger.Named("http"),
	)

	r := server.NewRouter(server.Deps{
		SessionSecret: cfg.SessionSecret,
		Handler:       h,
		Users:         repo,
		Metrics:       m,
		Log:           logger.Named("http"),
	})

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	logger.Info("starting server", zap.String("addr", addr), zap.String("partial_policy", string(partial)))
	if err := r.Run(addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
