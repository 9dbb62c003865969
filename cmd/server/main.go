package main

import (
	"context"
	"fmt"
	"os"

	"github.com/northstar-audit/northstar-backend/internal/db"
	"github.com/northstar-audit/northstar-backend/internal/handlers"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/observability"
	"github.com/northstar-audit/northstar-backend/internal/repos"
	"github.com/northstar-audit/northstar-backend/internal/server"
	"github.com/northstar-audit/northstar-backend/internal/services"
	"github.com/northstar-audit/northstar-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "northstar-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	// Postgres
	log.Info("Connecting to Postgres from main...")
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	auditRepo := repos.NewAuditRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	reportsDir := utils.GetEnv("REPORTS_DIR", "generated_reports", log)
	reportStore, err := services.NewLocalReportStore(log, reportsDir)
	if err != nil {
		log.Error("Could not init report store", "error", err)
		os.Exit(1)
	}
	dedalusClient, err := services.NewDedalusClient(log)
	if err != nil {
		log.Warn("Dedalus not configured, audits will use built-in analysis", "error", err)
		dedalusClient = nil
	}
	extractor := services.NewPDFExtractor(log)
	researchService := services.NewResearchService(log)
	analyzerService := services.NewAnalyzerService(log, dedalusClient)
	reportService := services.NewReportService(log, dedalusClient)
	pipelineService := services.NewPipelineService(
		log,
		thePG,
		extractor,
		researchService,
		analyzerService,
		reportService,
		reportStore,
		userRepo,
		auditRepo,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	auditHandler := handlers.NewAuditHandler(log, pipelineService, auditRepo)
	historyHandler := handlers.NewHistoryHandler(log, auditRepo)
	filesHandler := handlers.NewFilesHandler(log, reportStore)

	// Router
	router := server.NewRouter(server.RouterConfig{
		Log:            log,
		AuditHandler:   auditHandler,
		HistoryHandler: historyHandler,
		FilesHandler:   filesHandler,
	})

	port := utils.GetEnv("PORT", "8000", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
