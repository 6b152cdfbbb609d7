package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/knowledge-gateway/internal/adapters/mcp"
	"github.com/kirillkom/knowledge-gateway/internal/bootstrap"
	"github.com/kirillkom/knowledge-gateway/internal/config"
	"github.com/kirillkom/knowledge-gateway/internal/observability/logging"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol stream; everything else goes to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildSearch(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := mcpadapter.New(app.Search, version)
	logger.Info("mcp_serving", "transport", "stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_error", "error", err)
	}
}
