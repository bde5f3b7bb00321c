package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Crazyka51/AudioCleaner/internal/api"
	"github.com/Crazyka51/AudioCleaner/internal/config"
	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/Crazyka51/AudioCleaner/internal/session"
	"github.com/Crazyka51/AudioCleaner/internal/storage"
	"github.com/Crazyka51/AudioCleaner/internal/upload"
	"github.com/Crazyka51/AudioCleaner/internal/web"
)

const shutdownTimeout = 15 * time.Second

// exposeErrorDetails reports whether clients see the causes of 5xx errors.
func exposeErrorDetails(level string) bool {
	return logger.ParseLevel(level) == zapcore.DebugLevel
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, cctx *commandContext) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	log, err := cctx.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), p.formats.KindOf)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	uploadMgr := upload.NewManager(fileStore, p.formats.Check, log.Named("upload"))

	go runCleanup(ctx, cfg, p.sessions, uploadMgr, fileStore, log.Named("cleanup"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		BodyLimit:        cfg.Server.BodyLimit,
		EnableCORS:       cfg.Server.EnableCORS,
		AllowOrigins:     cfg.Server.AllowOrigins,
		RequestLogging:   cfg.Server.EnableRequestLogging,
		Compression:      cfg.Processing.EnableCompression,
		CompressionLevel: cfg.Processing.CompressionLevel,
		ExposeErrors:     exposeErrorDetails(cctx.logLevel(cfg)),
	}, log.Named("http"))

	deps := &api.Dependencies{
		Store:           fileStore,
		Sessions:        p.sessions,
		Uploads:         uploadMgr,
		FFmpeg:          p.ffmpeg,
		Formats:         p.formats,
		AllowFileDelete: cfg.Storage.AllowFileDelete,
		Version:         Version,
		Logger:          log,
	}
	if p.history != nil {
		deps.History = p.history
	} else {
		deps.History = emptyHistory{}
	}

	handlers := api.NewHandlers(deps)
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", zap.Error(err))
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, cctx.configPath, p.enhancer.Name(), embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	uploadMgr.Wait()
	return nil
}

// runCleanup periodically drops idle sessions, finished upload jobs and
// uploads nobody has used.
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, uploads *upload.Manager, store *storage.LocalStore, log *zap.Logger) {
	interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
	maxAge := time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := sessions.CleanupOldSessions(maxAge)
			j := uploads.CleanupOldJobs(maxAge)
			f := store.CleanupOlderThan(maxAge * 2)
			if s+j+f > 0 {
				log.Info("cleanup pass",
					zap.Int("sessions", s),
					zap.Int("jobs", j),
					zap.Int("files", f))
			}
		}
	}
}

func printBanner(cfg *config.AppConfig, configPath, enhancer string, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded UI"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Audio Cleaner                                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Enhancer:   %-45s║\n", enhancer)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
