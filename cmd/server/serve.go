package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/attachdrop/backend/internal/api"
	"github.com/attachdrop/backend/internal/config"
	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/session"
	"github.com/attachdrop/backend/internal/storage"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/attachdrop/backend/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the widget server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				// Get the executable's directory for config resolution
				exePath, err := os.Executable()
				if err != nil {
					return fmt.Errorf("failed to get executable path: %w", err)
				}
				configPath = filepath.Join(filepath.Dir(exePath), config.DefaultConfigFile)
			}
			return runServer(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the XML config (default: next to the binary)")
	return cmd
}

func runServer(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setLogLevel(cfg.Advanced.LogLevel)
	api.ShowErrorDetails = cfg.Advanced.LogLevel == "debug"

	if !web.HasEmbeddedFiles() {
		return fmt.Errorf("widget assets are missing from the binary")
	}
	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	// Initialize attachment store
	store := storage.NewMemoryStoreWithLimit(cfg.Widget.MaxStored)
	if n, err := storage.LoadSeed(store, cfg.Widget.SeedFile); err != nil {
		log.Warnf("[Startup] Failed to load seed attachments from %s: %v", cfg.Widget.SeedFile, err)
	} else if n > 0 {
		log.Infof("[Startup] Loaded %d seed attachments", n)
	}

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	uploadMetrics := upload.NewMetrics(reg)

	// Ingestion policy and byte source
	policy := cfg.UploadPolicy()
	source := upload.NewStreamSource(policy.MaxFileSize)
	source.ChunkSize = cfg.ChunkSize()
	source.ProgressInterval = cfg.ProgressInterval()

	// Initialize session manager
	sessionMgr := session.NewManagerWithLimit(
		api.NewIngestorFactory(store, policy, source, uploadMetrics),
		cfg.Processing.MaxSessions,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go cleanupSessions(ctx, sessionMgr, cfg.CleanupInterval(), cfg.SessionTimeout())

	httpMetrics := api.NewHTTPMetrics(reg, sessionMgr)
	handlers := api.NewHandlers(&api.Dependencies{
		Store:         store,
		Sessions:      sessionMgr,
		Metrics:       httpMetrics,
		DefaultUser:   cfg.Widget.DefaultUser,
		GalleryLimit:  cfg.Widget.GalleryLimit,
		MaxFileSize:   policy.MaxFileSize,
		AllowDeletion: cfg.Security.AllowFileDeletion,
		WSReadLimit:   cfg.WebSocketReadLimit(),
		Version:       Version,
	})

	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.Logger.SetLevel(log.Level())

	api.SetupMiddleware(e, httpMetrics)

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/static/") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health" ||
				path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/stream") ||
				strings.Contains(path, "/upload") ||
				strings.HasPrefix(path, "/api/ws/")
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/stream") || strings.HasPrefix(path, "/api/ws/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, api.HeaderUserName},
			AllowCredentials: origins[0] != "*",
		}))
	}

	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	if cfg.Advanced.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	if err := web.RegisterStaticRoutes(e); err != nil {
		return fmt.Errorf("failed to register static routes: %w", err)
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(configPath, cfg, policy)

	e.Logger.Fatal(e.StartServer(s))
	return nil
}

// cleanupSessions sweeps idle widget sessions until ctx is done.
func cleanupSessions(ctx context.Context, m *session.Manager, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupOldSessions(maxAge); n > 0 {
				log.Infof("[Session] Swept %d idle sessions, %d remain", n, m.Count())
			}
		}
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DEBUG)
	case "warn", "warning":
		log.SetLevel(log.WARN)
	case "error":
		log.SetLevel(log.ERROR)
	case "off":
		log.SetLevel(log.OFF)
	default:
		log.SetLevel(log.INFO)
	}
}

func printBanner(configPath string, cfg *config.AppConfig, policy *filetype.Policy) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           AttachDrop Widget Server                        ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Max File:   %-45s║\n", filetype.FormatSize(policy.MaxFileSize))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Seed:      %-46s║\n", cfg.Widget.SeedFile)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
