// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gebl/onenote-diagram-server/internal/auth"
	"github.com/gebl/onenote-diagram-server/internal/config"
	"github.com/gebl/onenote-diagram-server/internal/graph"
	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/pages"
	"github.com/gebl/onenote-diagram-server/internal/publish"
	"github.com/gebl/onenote-diagram-server/internal/render"
)

// newCoordinator wires the renderer, the Graph page store and the configured
// settle policy into a publish coordinator.
func newCoordinator(cfg *config.Config, graphClient *graph.Client) *publish.Coordinator {
	launcher := render.NewChromeLauncher(render.ChromeOptions{
		ExecPath:    cfg.Render.ChromePath,
		RemoteURL:   cfg.Render.RemoteURL,
		LoadTimeout: cfg.LoadTimeout(),
	})
	renderer := render.NewSandboxRenderer(launcher, render.Options{
		ScriptURL:     cfg.Render.MermaidScriptURL,
		Timeout:       cfg.RenderTimeout(),
		JPEGQuality:   cfg.Render.JPEGQuality,
		MaxWidth:      cfg.Render.MaxWidth,
		MaxConcurrent: cfg.Render.MaxConcurrent,
	})

	store := pages.NewPageClient(graphClient)
	return publish.NewCoordinator(renderer, store, newSettler(cfg, store))
}

func newSettler(cfg *config.Config, reader publish.PageReader) publish.Settler {
	if cfg.Publish.SettleMode == config.SettleModeFixed {
		logging.MainLogger.Debug("Using fixed settle delay", "delay", cfg.SettleDelay())
		return publish.FixedDelay{Delay: cfg.SettleDelay()}
	}
	logging.MainLogger.Debug("Polling placeholder until ready", "timeout", cfg.SettleTimeout())
	return &publish.PollUntilReady{
		Reader:  reader,
		Ready:   pages.PageReady,
		Timeout: cfg.SettleTimeout(),
	}
}

// newHTTPHandler mounts the MCP endpoint, Prometheus metrics and a health
// check, then applies request logging and bearer auth.
func newHTTPHandler(mcpHandler http.Handler, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := applyAuthIfEnabled(mux, cfg)
	return auth.RequestLoggingMiddleware()(handler)
}

// applyAuthIfEnabled applies bearer token authentication middleware if enabled in configuration.
func applyAuthIfEnabled(handler http.Handler, cfg *config.Config) http.Handler {
	logger := logging.MainLogger

	if cfg.MCPAuth != nil && cfg.MCPAuth.Enabled {
		if cfg.MCPAuth.BearerToken == "" {
			logger.Warn("MCP authentication is enabled but no bearer token is configured",
				"recommendation", "set MCP_BEARER_TOKEN environment variable or add bearer_token to config file")
			return handler
		}

		logger.Info("MCP authentication enabled for HTTP transport",
			"token_length", len(cfg.MCPAuth.BearerToken))
		return auth.BearerTokenMiddleware(cfg.MCPAuth.BearerToken)(handler)
	}

	logger.Debug("MCP authentication disabled - HTTP endpoints are not protected")
	return handler
}
