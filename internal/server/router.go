package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/northstar-audit/northstar-backend/internal/handlers"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/middleware"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuditHandler   *handlers.AuditHandler
	HistoryHandler *handlers.HistoryHandler
	FilesHandler   *handlers.FilesHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(otelgin.Middleware("northstar-backend"))

	// Open CORS: the web client and bot may run anywhere.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Requested-With"},
	}))

	api := router.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.POST("/run-audit", cfg.AuditHandler.RunAudit)
		api.GET("/history", cfg.HistoryHandler.GetHistory)
		api.GET("/audit/:audit_id", cfg.AuditHandler.GetAudit)
		api.GET("/files/:filename", cfg.FilesHandler.GetFile)
	}

	return router
}
