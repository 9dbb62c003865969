package main

import (
	"fmt"
	"os"

	"github.com/northstar-audit/northstar-backend/internal/apiclient"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/utils"
	"github.com/northstar-audit/northstar-backend/internal/web"
)

func main() {
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

	backendURL := utils.GetEnv("BACKEND_BASE_URL", "http://localhost:8000", log)
	api := apiclient.New(log, backendURL)

	router, err := web.NewRouter(log, api)
	if err != nil {
		log.Error("Could not init web router", "error", err)
		os.Exit(1)
	}

	port := utils.GetEnv("WEB_PORT", "3000", log)
	log.Info("Web client listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Web client failed", "error", err)
	}
}
