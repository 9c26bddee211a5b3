// Package config provides XML-based configuration management for the attachment widget server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is the name written next to the binary on first run.
const DefaultConfigFile = "attachdrop.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"AttachDrop"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Upload limits and read tuning
	Upload UploadConfig `xml:"Upload"`

	// Widget presentation
	Widget WidgetConfig `xml:"Widget"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// UploadConfig contains ingestion settings
type UploadConfig struct {
	MaxFileSizeBytes   int64  `xml:"MaxFileSizeBytes"`
	ReadChunkSizeKB    int    `xml:"ReadChunkSizeKB"`
	ProgressIntervalMs int    `xml:"ProgressIntervalMs"`
	AllowedExtensions  string `xml:"AllowedExtensions"` // empty keeps the built-in list
}

// WidgetConfig contains page and gallery settings
type WidgetConfig struct {
	DefaultUser  string `xml:"DefaultUser"`
	SeedFile     string `xml:"SeedFile"`
	GalleryLimit int    `xml:"GalleryLimit"`
	MaxStored    int    `xml:"MaxStoredAttachments"` // oldest are evicted past this, 0 keeps all
}

// ProcessingConfig contains session and response settings
type ProcessingConfig struct {
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	MaxSessions            int  `xml:"MaxSessions"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool `xml:"AllowFileDeletion"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	EnableMetrics           bool   `xml:"EnableMetrics"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Upload: UploadConfig{
			MaxFileSizeBytes:   10 * 1024 * 1024,
			ReadChunkSizeKB:    64,
			ProgressIntervalMs: 50,
			AllowedExtensions:  "",
		},
		Widget: WidgetConfig{
			DefaultUser:  "anonymous",
			SeedFile:     "./attachments.yaml",
			GalleryLimit: 100,
			MaxStored:    200,
		},
		Processing: ProcessingConfig{
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			MaxSessions:            256,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			EnableMetrics:           true,
			WebSocketMaxMessageSize: 16 * 1024,
		},
	}
}

// LoadConfig loads configuration from XML file. A .env file next to the
// config is loaded into the environment before overrides are applied.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	loadDotEnv(configDir)

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(configDir)
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(configDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadDotEnv reads .env without overriding variables already set.
func loadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- AttachDrop Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Upload.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("MaxFileSizeBytes must be positive, got %d", c.Upload.MaxFileSizeBytes)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if user := os.Getenv("ATTACHDROP_USER"); user != "" {
		c.Widget.DefaultUser = user
	}

	if seed := os.Getenv("ATTACHDROP_SEED"); seed != "" {
		c.Widget.SeedFile = seed
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Widget.SeedFile != "" && !filepath.IsAbs(c.Widget.SeedFile) {
		c.Widget.SeedFile = filepath.Join(configDir, c.Widget.SeedFile)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ChunkSize returns the read chunk size in bytes.
func (c *AppConfig) ChunkSize() int {
	if c.Upload.ReadChunkSizeKB <= 0 {
		return 64 * 1024
	}
	return c.Upload.ReadChunkSizeKB * 1024
}

// UploadPolicy builds the ingestion policy from the Upload section.
func (c *AppConfig) UploadPolicy() *filetype.Policy {
	return filetype.NewPolicy(c.Upload.MaxFileSizeBytes, filetype.ParseExtensionList(c.Upload.AllowedExtensions))
}

// ProgressInterval returns the minimum gap between progress notifications.
func (c *AppConfig) ProgressInterval() time.Duration {
	return time.Duration(c.Upload.ProgressIntervalMs) * time.Millisecond
}

// SessionTimeout returns how long an idle widget session lives.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// WebSocketReadLimit returns the largest accepted websocket frame in bytes.
// A base64 payload of a maximum size file must fit.
func (c *AppConfig) WebSocketReadLimit() int64 {
	limit := int64(c.Advanced.WebSocketMaxMessageSize) * 1024
	encoded := c.Upload.MaxFileSizeBytes*4/3 + 64*1024
	if limit < encoded {
		return encoded
	}
	return limit
}
