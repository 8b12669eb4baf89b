// blockdeck server
//
// Features:
// - UI block catalog with filter/search/pagination
// - Per-viewer preview sessions with highlighted code panels
// - SSE preview updates
// - Template marketplace (PostgreSQL)
// - AI layout diagram generation (Gemini)
// - Prometheus metrics & structured logging (zap)
// - Block sources from local disk or S3/MinIO
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/api"
	"github.com/blockdeck/blockdeck/internal/config"
	"github.com/blockdeck/blockdeck/internal/diagram"
	"github.com/blockdeck/blockdeck/internal/events"
	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/marketplace"
	"github.com/blockdeck/blockdeck/internal/metrics"
	"github.com/blockdeck/blockdeck/internal/preview"
	"github.com/blockdeck/blockdeck/internal/registry"
	"github.com/blockdeck/blockdeck/internal/session"
	"github.com/blockdeck/blockdeck/internal/storage"
	"github.com/blockdeck/blockdeck/internal/storage/local"
	s3storage "github.com/blockdeck/blockdeck/internal/storage/s3"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("blockdeck server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the block registry
	reg, err := registry.Load(cfg.RegistryManifest, cfg.BlockSourceRoot)
	if err != nil {
		logging.Fatal("registry load failed", zap.Error(err))
	}
	metrics.SetRegistryBlocks(int64(reg.Len()))
	logging.Info("registry loaded",
		zap.Int("blocks", reg.Len()),
		zap.String("source_root", reg.SourceRoot()))

	// Select the block content source
	var source storage.Backend
	switch cfg.StorageBackend {
	case "s3":
		source, err = s3storage.New(ctx, s3storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		source, err = local.New(local.Config{RootPath: cfg.LocalSourcePath})
	}
	if err != nil {
		logging.Fatal("content source init failed", zap.Error(err))
	}
	defer source.Close()
	logging.Info("content source ready", zap.String("backend", source.Type()))

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()
	logging.Info("SSE broadcaster initialized")

	// Preview pipeline and session store
	pipeline := preview.New(reg, source)
	sessions := session.NewStore(pipeline, broadcaster, cfg.PreviewFetchTimeout)

	// Template marketplace (optional; routes skipped without a database)
	var templates *marketplace.Store
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		templates, err = marketplace.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		defer templates.Close()
		if err := templates.Migrate(); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
		logging.Info("template marketplace initialized")
	} else {
		logging.Warn("DATABASE_URL not set, template marketplace disabled")
	}

	// Diagram generator (optional; routes skipped without an API key)
	var diagrams *diagram.Generator
	if cfg.GenAIAPIKey != "" {
		diagrams, err = diagram.NewGenerator(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			logging.Fatal("diagram generator init failed", zap.Error(err))
		}
		logging.Info("diagram generator initialized", zap.String("model", cfg.GenAIModel))
	} else {
		logging.Warn("GENAI_API_KEY not set, diagram generation disabled")
	}

	// Create API server
	srv := api.NewServer(reg, source, sessions, broadcaster, templates, diagrams)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Sweep expired preview sessions
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Sweep(cfg.PreviewSessionTTL); n > 0 {
					logging.Info("swept expired preview sessions", zap.Int("count", n))
				}
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
