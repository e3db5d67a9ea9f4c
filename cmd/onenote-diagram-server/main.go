// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// main.go - Entry point for the OneNote diagram MCP server.
//
// The server exposes one MCP tool, saveDiagram, which renders Mermaid markup
// to a JPEG in a headless browser and publishes it as a new OneNote page.
//
// Authentication:
//   Graph tokens are provisioned outside the server and read from tokens.json
//   (or TOKEN_FILE). Expired access tokens are refreshed with the stored
//   refresh token and written back.
//
// Configuration:
// - Environment variables: ONENOTE_CLIENT_ID, ONENOTE_TENANT_ID, RENDER_*, PUBLISH_*
// - Optional config file: Set ONENOTE_MCP_CONFIG environment variable
// - Logging: Set MCP_LOG_FILE for file-based logging
//
// Usage:
//   go build -o onenote-diagram-server ./cmd/onenote-diagram-server
//   ./onenote-diagram-server                                # stdio mode (default)
//   ./onenote-diagram-server -mode=streamable -port=8081    # Streamable HTTP mode

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gebl/onenote-diagram-server/internal/auth"
	"github.com/gebl/onenote-diagram-server/internal/config"
	"github.com/gebl/onenote-diagram-server/internal/graph"
	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// Version is the current version of the OneNote diagram server
const Version = "1.0.0"

func main() {
	logging.Initialize()
	logger := logging.MainLogger

	mode := flag.String("mode", "stdio", "Server mode: stdio or streamable")
	port := flag.String("port", "8080", "Port for HTTP server (used with streamable mode)")
	flag.Parse()

	logger.Info("OneNote diagram server starting", "version", Version, "mode", *mode, "port", *port)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitializeFromConfig(cfg)
	logger = logging.MainLogger
	logger.Debug("Logging reconfigured based on loaded configuration")

	tokens := loadTokenSource(cfg)
	graphClient, err := graph.NewClient(tokens)
	if err != nil {
		logger.Error("Failed to create Graph client", "error", err)
		os.Exit(1)
	}

	coordinator := newCoordinator(cfg, graphClient)

	s := server.NewMCPServer("OneNote Diagram Server", Version,
		server.WithToolCapabilities(true))
	registerTools(s, coordinator)

	switch *mode {
	case "streamable":
		if err := serveStreamable(s, cfg, *port); err != nil {
			logger.Error("Streamable HTTP server error", "error", err)
			os.Exit(1)
		}
	case "stdio":
		logger.Info("Starting MCP server", "transport", "stdio")
		if err := server.ServeStdio(s); err != nil {
			logger.Error("Stdio server error", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("Invalid mode specified", "mode", *mode, "valid_modes", []string{"stdio", "streamable"})
		os.Exit(1)
	}
}

// loadTokenSource reads the token cache without blocking startup. A missing
// cache leaves the server running; publishes then fail at the store.
func loadTokenSource(cfg *config.Config) *auth.TokenSource {
	logger := logging.MainLogger
	oauthConfig := auth.NewOAuth2Config(cfg.ClientID, cfg.TenantID, cfg.RedirectURI)

	tokenPath := auth.GetTokenPath("tokens.json")
	absTokenPath, err := filepath.Abs(tokenPath)
	if err != nil {
		absTokenPath = tokenPath
	}
	logger.Debug("Loading tokens", "path", absTokenPath)

	tokenManager, err := auth.LoadTokens(tokenPath)
	switch {
	case err != nil:
		logger.Warn("No valid tokens found, Graph requests will fail until tokens are provisioned", "path", absTokenPath, "error", err)
		tokenManager = &auth.TokenManager{}
	case tokenManager.IsExpired():
		logger.Info("Cached access token expired, it will be refreshed on first use")
	default:
		logger.Info("Valid authentication tokens loaded successfully")
	}

	ts := auth.NewTokenSource(oauthConfig, tokenManager, tokenPath)
	if !ts.CanRefresh() {
		logger.Warn("No refresh token available, the access token cannot be renewed once it expires", "path", absTokenPath)
	}
	return ts
}

// serveStreamable runs the HTTP transport until SIGINT or SIGTERM.
func serveStreamable(s *server.MCPServer, cfg *config.Config, port string) error {
	logger := logging.MainLogger
	streamableServer := server.NewStreamableHTTPServer(s, server.WithStateLess(*cfg.Stateless))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           newHTTPHandler(streamableServer, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Streamable HTTP server listening", "address", fmt.Sprintf("http://localhost:%s/mcp", port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down streamable HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
