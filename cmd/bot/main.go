package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/northstar-audit/northstar-backend/internal/apiclient"
	"github.com/northstar-audit/northstar-backend/internal/bot"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/utils"
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

	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		log.Error("DISCORD_BOT_TOKEN is not set")
		os.Exit(1)
	}
	backendURL := utils.GetEnv("BACKEND_BASE_URL", "http://localhost:8000", log)

	api := apiclient.New(log, backendURL)
	b, err := bot.New(log, token, api)
	if err != nil {
		log.Error("Could not init bot", "error", err)
		os.Exit(1)
	}
	if err := b.Start(); err != nil {
		log.Error("Could not start bot", "error", err)
		os.Exit(1)
	}
	log.Info("Bot running, press Ctrl+C to exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down bot...")
	if err := b.Stop(); err != nil {
		log.Warn("Bot shutdown error", "error", err)
	}
}
