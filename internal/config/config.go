// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// config.go - Configuration loading for the OneNote diagram server.
//
// Values are resolved in three layers, later layers winning:
//   1. built-in defaults
//   2. optional JSON file named by ONENOTE_MCP_CONFIG
//   3. environment variables (a .env file in the working directory is loaded first)
//
// Environment variables:
//   ONENOTE_CLIENT_ID, ONENOTE_TENANT_ID, ONENOTE_REDIRECT_URI
//   LOG_LEVEL, LOG_FORMAT, MCP_LOG_FILE, CONTENT_LOG_LEVEL
//   MCP_AUTH_ENABLED, MCP_BEARER_TOKEN, MCP_STATELESS
//   RENDER_CHROME_PATH, RENDER_REMOTE_URL, RENDER_MERMAID_SCRIPT_URL,
//   RENDER_TIMEOUT_SECONDS, RENDER_LOAD_TIMEOUT_SECONDS, RENDER_JPEG_QUALITY, RENDER_MAX_WIDTH, RENDER_MAX_CONCURRENT
//   PUBLISH_SETTLE_MODE, PUBLISH_SETTLE_DELAY_SECONDS, PUBLISH_SETTLE_TIMEOUT_SECONDS

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/render"
)

const (
	SettleModePoll  = "poll"
	SettleModeFixed = "fixed"
)

type Config struct {
	ClientID    string `json:"client_id"`
	TenantID    string `json:"tenant_id"`
	RedirectURI string `json:"redirect_uri"`

	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	LogFile         string `json:"log_file"`
	ContentLogLevel string `json:"content_log_level"`

	MCPAuth   *MCPAuthConfig `json:"mcp_auth"`
	Stateless *bool          `json:"stateless"`

	Render  *RenderConfig  `json:"render"`
	Publish *PublishConfig `json:"publish"`
}

// MCPAuthConfig guards the streamable HTTP transport with a static bearer token.
type MCPAuthConfig struct {
	Enabled     bool   `json:"enabled"`
	BearerToken string `json:"bearer_token"`
}

// RenderConfig controls the headless browser used to rasterize diagrams.
type RenderConfig struct {
	ChromePath         string `json:"chrome_path"`
	RemoteURL          string `json:"remote_url"` // CDP websocket of an already running browser
	MermaidScriptURL   string `json:"mermaid_script_url"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	LoadTimeoutSeconds int    `json:"load_timeout_seconds"` // Mermaid library download budget
	JPEGQuality        int    `json:"jpeg_quality"`
	MaxWidth           int    `json:"max_width"` // 0 disables downscaling
	MaxConcurrent      int    `json:"max_concurrent"`
}

// PublishConfig controls how the coordinator waits for a new page to settle.
type PublishConfig struct {
	SettleMode           string `json:"settle_mode"`
	SettleDelaySeconds   int    `json:"settle_delay_seconds"`
	SettleTimeoutSeconds int    `json:"settle_timeout_seconds"`
}

func defaults() *Config {
	stateless := false
	return &Config{
		LogLevel:        "INFO",
		LogFormat:       "text",
		ContentLogLevel: "INFO",
		MCPAuth:         &MCPAuthConfig{},
		Stateless:       &stateless,
		Render: &RenderConfig{
			MermaidScriptURL:   render.DefaultScriptURL,
			LoadTimeoutSeconds: int(render.DefaultLoadTimeout / time.Second),
			TimeoutSeconds:     5,
			JPEGQuality:        80,
			MaxConcurrent:      2,
		},
		Publish: &PublishConfig{
			SettleMode:           SettleModePoll,
			SettleDelaySeconds:   5,
			SettleTimeoutSeconds: 30,
		},
	}
}

// Load resolves the configuration from defaults, the optional JSON file and the environment.
func Load() (*Config, error) {
	logger := logging.ConfigLogger
	logger.Debug("Loading configuration")

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "error", err)
	}

	cfg := defaults()

	if path := os.Getenv("ONENOTE_MCP_CONFIG"); path != "" {
		logger.Debug("Loading from config file", "path", path)
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillMissing()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded",
		"client_id_set", cfg.ClientID != "",
		"tenant_id", cfg.TenantID,
		"mcp_auth_enabled", cfg.MCPAuth.Enabled,
		"render_timeout", cfg.RenderTimeout(),
		"settle_mode", cfg.Publish.SettleMode)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ClientID, "ONENOTE_CLIENT_ID")
	setString(&c.TenantID, "ONENOTE_TENANT_ID")
	setString(&c.RedirectURI, "ONENOTE_REDIRECT_URI")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogFile, "MCP_LOG_FILE")
	setString(&c.ContentLogLevel, "CONTENT_LOG_LEVEL")

	if c.MCPAuth == nil {
		c.MCPAuth = &MCPAuthConfig{}
	}
	if err := setBool(&c.MCPAuth.Enabled, "MCP_AUTH_ENABLED"); err != nil {
		return err
	}
	setString(&c.MCPAuth.BearerToken, "MCP_BEARER_TOKEN")

	if v := os.Getenv("MCP_STATELESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MCP_STATELESS: %w", err)
		}
		c.Stateless = &b
	}

	if c.Render == nil {
		c.Render = &RenderConfig{}
	}
	setString(&c.Render.ChromePath, "RENDER_CHROME_PATH")
	setString(&c.Render.RemoteURL, "RENDER_REMOTE_URL")
	setString(&c.Render.MermaidScriptURL, "RENDER_MERMAID_SCRIPT_URL")
	for key, dst := range map[string]*int{
		"RENDER_TIMEOUT_SECONDS":      &c.Render.TimeoutSeconds,
		"RENDER_LOAD_TIMEOUT_SECONDS": &c.Render.LoadTimeoutSeconds,
		"RENDER_JPEG_QUALITY":         &c.Render.JPEGQuality,
		"RENDER_MAX_WIDTH":            &c.Render.MaxWidth,
		"RENDER_MAX_CONCURRENT":       &c.Render.MaxConcurrent,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	if c.Publish == nil {
		c.Publish = &PublishConfig{}
	}
	setString(&c.Publish.SettleMode, "PUBLISH_SETTLE_MODE")
	if err := setInt(&c.Publish.SettleDelaySeconds, "PUBLISH_SETTLE_DELAY_SECONDS"); err != nil {
		return err
	}
	return setInt(&c.Publish.SettleTimeoutSeconds, "PUBLISH_SETTLE_TIMEOUT_SECONDS")
}

// fillMissing restores defaults for zero values left by a partial JSON file.
func (c *Config) fillMissing() {
	d := defaults()
	if c.Stateless == nil {
		c.Stateless = d.Stateless
	}
	if c.Render.MermaidScriptURL == "" {
		c.Render.MermaidScriptURL = d.Render.MermaidScriptURL
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = d.Render.TimeoutSeconds
	}
	if c.Render.LoadTimeoutSeconds <= 0 {
		c.Render.LoadTimeoutSeconds = d.Render.LoadTimeoutSeconds
	}
	if c.Render.JPEGQuality <= 0 {
		c.Render.JPEGQuality = d.Render.JPEGQuality
	}
	if c.Render.MaxConcurrent <= 0 {
		c.Render.MaxConcurrent = d.Render.MaxConcurrent
	}
	if c.Publish.SettleMode == "" {
		c.Publish.SettleMode = d.Publish.SettleMode
	}
	c.Publish.SettleMode = strings.ToLower(c.Publish.SettleMode)
	if c.Publish.SettleDelaySeconds <= 0 {
		c.Publish.SettleDelaySeconds = d.Publish.SettleDelaySeconds
	}
	if c.Publish.SettleTimeoutSeconds <= 0 {
		c.Publish.SettleTimeoutSeconds = d.Publish.SettleTimeoutSeconds
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		return fmt.Errorf("render.jpeg_quality must be between 1 and 100, got %d", c.Render.JPEGQuality)
	}
	if c.Render.MaxWidth < 0 {
		return fmt.Errorf("render.max_width cannot be negative")
	}
	switch c.Publish.SettleMode {
	case SettleModePoll, SettleModeFixed:
	default:
		return fmt.Errorf("publish.settle_mode must be %q or %q, got %q", SettleModePoll, SettleModeFixed, c.Publish.SettleMode)
	}
	return nil
}

func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Render.LoadTimeoutSeconds) * time.Second
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Publish.SettleDelaySeconds) * time.Second
}

func (c *Config) SettleTimeout() time.Duration {
	return time.Duration(c.Publish.SettleTimeoutSeconds) * time.Second
}

func (c *Config) GetLogLevel() string        { return c.LogLevel }
func (c *Config) GetLogFormat() string       { return c.LogFormat }
func (c *Config) GetLogFile() string         { return c.LogFile }
func (c *Config) GetContentLogLevel() string { return c.ContentLogLevel }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
