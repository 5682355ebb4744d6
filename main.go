package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athapong/aio-osint/pkg/config"
	"github.com/athapong/aio-osint/pkg/graph/storage"
	"github.com/athapong/aio-osint/prompts"
	"github.com/athapong/aio-osint/tools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	configFile := flag.String("config", "", "Path to YAML configuration file")
	enableSSE := flag.Bool("sse", false, "Enable SSE server")
	sseAddr := flag.String("sse-addr", ":8080", "Address for SSE server to listen on")
	sseBasePath := flag.String("sse-base-path", "/mcp", "Base path for SSE endpoints")
	flag.Parse()

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the stdio transport
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := storage.Open(ctx, cfg.GraphDir, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
	closeStores := func() {
		if err := stores.Close(); err != nil {
			logger.Errorf("Failed to close graph stores: %v", err)
		}
	}
	// Fatal skips deferred calls but runs exit handlers
	logrus.RegisterExitHandler(closeStores)
	defer closeStores()

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"aio-osint",
		"1.0.0",
		server.WithLogging(),
		server.WithPromptCapabilities(true),
		server.WithToolCapabilities(true),
	)

	tools.RegisterInvestigationTools(mcpServer, tools.NewInvestigations(cfg, stores, logger))
	prompts.RegisterInvestigationPrompts(mcpServer)

	if *enableSSE || os.Getenv("ENABLE_SSE") == "true" {
		sseServer := server.NewSSEServer(
			mcpServer,
			server.WithBasePath(*sseBasePath),
			server.WithKeepAlive(true),
		)

		go func() {
			logger.Infof("Starting SSE server on %s with base path %s", *sseAddr, *sseBasePath)
			if err := sseServer.Start(*sseAddr); err != nil {
				logger.Fatalf("Failed to start SSE server: %v", err)
			}
		}()

		<-ctx.Done()
		logger.Info("Shutting down SSE server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error during SSE server shutdown: %v", err)
		}
		logger.Info("SSE server shutdown complete")
		return
	}

	if err := server.ServeStdio(mcpServer); err != nil {
		panic(fmt.Sprintf("Server error: %v", err))
	}
}
