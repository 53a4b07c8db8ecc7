package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/boat-builder/tinychat"
	"github.com/boat-builder/tinychat/gateway"
)

func main() {
	addr := flag.String("addr", "", "Listen address (overrides CHAT_ADDR)")
	chatDir := flag.String("chats", "", "Chat directory for the file store (overrides CHAT_DIR)")
	flag.Parse()

	cfg := tinychat.LoadConfig()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *chatDir != "" {
		cfg.ChatDir = *chatDir
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Postgres when a DSN is configured, otherwise one JSON file per chat.
	var store tinychat.Store
	var err error
	if cfg.DatabaseURL != "" {
		store, err = tinychat.NewGormStore(cfg.DatabaseURL)
	} else {
		store, err = tinychat.NewFileStore(cfg.ChatDir)
	}
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	if cfg.APIKey == "" {
		logger.Warn("No API key configured; chat requests will be rejected until DEEPSEEK_API_KEY is set")
	}

	llm := tinychat.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	gw := gateway.New(store, llm, cfg.APIKey, cfg.Model, logger)

	logger.Info("Starting chat server", "addr", cfg.Addr, "model", cfg.Model)
	if err := gw.Router().Run(cfg.Addr); err != nil {
		log.Fatalf("Failed to start chat server: %v", err)
	}
}
