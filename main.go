package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/agent-stepper-anon/agent-stepper/internal/config"
	"github.com/agent-stepper-anon/agent-stepper/internal/debugger"
	"github.com/agent-stepper-anon/agent-stepper/internal/runlog"
	"github.com/agent-stepper-anon/agent-stepper/internal/runstore"
	"github.com/agent-stepper-anon/agent-stepper/internal/summarizer"
	"github.com/agent-stepper-anon/agent-stepper/internal/version"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting debugger core %s...", version.ServerVersion)
	log.Printf("Agent port: %d", cfg.AgentPort)
	log.Printf("UI port: %d", cfg.UIPort)
	log.Printf("Log directory: %s", cfg.LogDir)

	// Initialize run log
	runLog, err := runlog.Open(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to open run log: %v", err)
	}
	defer runLog.Close()

	// Initialize store and restore persisted history
	store := runstore.New(version.ServerVersion, runLog)
	if err := store.Restore(); err != nil {
		log.Printf("Failed to restore run history: %v", err)
	} else {
		log.Printf("Restored %d runs from the log", len(store.Runs()))
	}

	// Initialize summarizer
	sum := summarizer.New(cfg.SummaryBaseURL, cfg.SummaryAPIKey, cfg.SummaryModel, cfg.SummaryTimeout)

	// Initialize controller
	ctrl := debugger.New(cfg, store, sum)

	// Agent listener
	agentServer := echo.New()
	agentServer.HideBanner = true
	agentServer.HidePort = true
	agentServer.Use(middleware.Logger())
	agentServer.Use(middleware.Recover())
	agentServer.GET("/agent", ctrl.HandleAgent)

	// UI listener
	uiServer := echo.New()
	uiServer.HideBanner = true
	uiServer.HidePort = true
	uiServer.Use(middleware.Logger())
	uiServer.Use(middleware.Recover())
	uiServer.GET("/ui", ctrl.HandleUI)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.AgentPort)
		if err := agentServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start agent listener: %v", err)
		}
	}()
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.UIPort)
		if err := uiServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start UI listener: %v", err)
		}
	}()

	log.Printf("Core listening for agent connections on %s:%d", cfg.Host, cfg.AgentPort)
	log.Printf("Core listening for UI connection on %s:%d", cfg.Host, cfg.UIPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down debugger core...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := agentServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown agent listener gracefully: %v", err)
	}
	if err := uiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown UI listener gracefully: %v", err)
	}

	log.Println("Debugger core stopped")
}
