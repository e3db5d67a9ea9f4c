// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// logger.go - Centralized logging configuration for the OneNote diagram server.
//
// Structured logging on top of log/slog with component loggers. Every
// component logger carries a "component" attribute so render, publish and
// graph traffic can be filtered independently.
//
// Usage:
//   logging.RenderLogger.Info("Diagram rendered", "bytes", len(buf))
//   logging.PublishLogger.Error("Patch failed", "page_id", pageID, "error", err)
//
// Configuration:
// - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (DEBUG until config is loaded, then INFO)
// - LOG_FORMAT: "json" or "text" (default: text)
// - MCP_LOG_FILE: optional file path for log output (stderr otherwise; stdout is
//   reserved for the stdio transport)
// - CONTENT_LOG_LEVEL: level at which payloads (markup, XHTML, command JSON) are
//   logged, or OFF

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contentOff is high enough that no record ever passes it.
const contentOff = slog.Level(1000)

var (
	defaultLogger   *slog.Logger
	logLevel        slog.Level = slog.LevelDebug
	contentLogLevel slog.Level = slog.LevelDebug
)

// LoggingConfig is satisfied by config.Config.
type LoggingConfig interface {
	GetLogLevel() string
	GetLogFormat() string
	GetLogFile() string
	GetContentLogLevel() string
}

// Initialize sets up the global logger from the environment. It runs before the
// configuration is loaded, so it defaults to DEBUG to capture config loading.
func Initialize() {
	InitializeFromEnv()
}

// InitializeFromEnv configures logging from environment variables only.
func InitializeFromEnv() {
	logLevel = parseLevel(os.Getenv("LOG_LEVEL"), slog.LevelDebug)
	contentLogLevel = parseContentLevel(os.Getenv("CONTENT_LOG_LEVEL"))
	install(os.Getenv("LOG_FORMAT"), os.Getenv("MCP_LOG_FILE"))
}

// InitializeFromConfig reinitializes logging from a loaded configuration,
// falling back to the environment for empty values. The level default drops to
// INFO once configuration is known.
func InitializeFromConfig(cfg LoggingConfig) {
	if defaultLogger != nil {
		defaultLogger.Debug("Transitioning from config loading verbosity to final logging configuration")
	}

	levelStr := firstNonEmpty(cfg.GetLogLevel(), os.Getenv("LOG_LEVEL"))
	formatStr := firstNonEmpty(cfg.GetLogFormat(), os.Getenv("LOG_FORMAT"))
	fileStr := firstNonEmpty(cfg.GetLogFile(), os.Getenv("MCP_LOG_FILE"))
	contentStr := firstNonEmpty(cfg.GetContentLogLevel(), os.Getenv("CONTENT_LOG_LEVEL"))

	logLevel = parseLevel(levelStr, slog.LevelInfo)
	contentLogLevel = parseContentLevel(contentStr)
	install(formatStr, fileStr)

	defaultLogger.Debug("Logging reconfigured from config",
		"final_log_level", logLevel.String(),
		"final_content_log_level", contentLogLevel.String(),
		"log_format", strings.ToLower(formatStr),
		"log_file", fileStr)
}

func install(format, logFile string) {
	var output io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			slog.Error("Failed to open log file, using stderr", "file", logFile, "error", err)
		} else {
			output = file
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	refreshComponentLoggers()
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return fallback
	}
}

func parseContentLevel(s string) slog.Level {
	if strings.EqualFold(strings.TrimSpace(s), "OFF") {
		return contentOff
	}
	return parseLevel(s, slog.LevelDebug)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetLogger returns a logger tagged with the given component name.
func GetLogger(component string) *slog.Logger {
	if defaultLogger == nil {
		Initialize()
	}
	return defaultLogger.With("component", component)
}

// IsContentLoggingEnabled reports whether content logging is enabled at level.
func IsContentLoggingEnabled(level slog.Level) bool {
	return contentLogLevel <= level
}

// SetLevel sets the log level programmatically (useful for testing).
func SetLevel(level slog.Level) {
	logLevel = level
	install(os.Getenv("LOG_FORMAT"), os.Getenv("MCP_LOG_FILE"))
}

// SetContentLogLevel sets the content log level programmatically.
func SetContentLogLevel(level slog.Level) {
	contentLogLevel = level
}

// LogContent logs payloads only when the content log level allows it.
func LogContent(logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if IsContentLoggingEnabled(level) {
		logger.Log(context.Background(), level, msg, args...)
	}
}

// Component loggers. They are rebuilt whenever the handler is replaced so that
// packages holding them pick up the configured level and output.
var (
	AuthLogger    *slog.Logger
	ConfigLogger  *slog.Logger
	GraphLogger   *slog.Logger
	PageLogger    *slog.Logger
	RenderLogger  *slog.Logger
	PublishLogger *slog.Logger
	ToolsLogger   *slog.Logger
	MainLogger    *slog.Logger
)

func refreshComponentLoggers() {
	AuthLogger = defaultLogger.With("component", "auth")
	ConfigLogger = defaultLogger.With("component", "config")
	GraphLogger = defaultLogger.With("component", "graph")
	PageLogger = defaultLogger.With("component", "page")
	RenderLogger = defaultLogger.With("component", "render")
	PublishLogger = defaultLogger.With("component", "publish")
	ToolsLogger = defaultLogger.With("component", "tools")
	MainLogger = defaultLogger.With("component", "main")
}

func init() {
	Initialize()
}
