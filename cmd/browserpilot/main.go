package main

import (
	"log"
	"os"

	"github.com/tlane/browserpilot/internal/agent"
	"github.com/tlane/browserpilot/internal/api"
	"github.com/tlane/browserpilot/internal/config"
	"github.com/tlane/browserpilot/internal/engine"
	"github.com/tlane/browserpilot/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("browserpilot: starting",
		"listen_addr", cfg.ListenAddr,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"db_path", cfg.DBPath,
	)

	var s store.Store
	if cfg.DBPath != "" {
		db, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		s = db
	} else {
		s = store.NewMemoryStore()
	}
	defer s.Close()

	driver, err := agent.NewDriver(cfg.LLMProvider, cfg.LLMModel, cfg.OllamaHost, cfg.LLMAPIKey)
	if err != nil {
		log.Fatalf("failed to configure automation driver: %v", err)
	}

	gw := agent.NewGateway(driver, agent.NewFileSink(cfg.ScreenshotDir), logger)
	eng := engine.NewEngine(s, gw, logger)

	srv := api.NewServer(cfg.ListenAddr, s, eng, api.LLMInfo{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
	}, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Let in-flight tasks reach a terminal status before exit.
	eng.Wait()
}
