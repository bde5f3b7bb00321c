// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"
	"time"

	"github.com/Crazyka51/AudioCleaner/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store           storage.Store
	Sessions        SessionManager
	Uploads         UploadJobs
	History         HistoryReader
	FFmpeg          Checker
	Formats         FormatPolicy
	AllowFileDelete bool
	Version         string
	Logger          *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Session   SessionHandler
	History   HistoryHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.FFmpeg, deps.Sessions, deps.Formats),
		Upload:    NewUploadHandler(deps.Store, deps.Uploads, deps.Formats, deps.AllowFileDelete, log.Named("upload")),
		Session:   NewSessionHandler(deps.Store, deps.Sessions, deps.Formats, log.Named("session")),
		History:   NewHistoryHandler(deps.History),
		WebSocket: NewWebSocketHandler(deps.Sessions, log.Named("ws")),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/api/config/formats", handlers.Health.HandleGetFormats)

	// File upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	uploadGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	uploadGroup.GET("/upload/:jobId/status", handlers.Upload.HandleUploadJobStatus)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)

	// Cleaning session routes
	sessionGroup := e.Group("/api/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/clean", handlers.Session.HandleCleanSession)
	sessionGroup.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessionGroup.GET("/:id/progress", handlers.Session.HandleSessionProgressStream)
	sessionGroup.GET("/:id/original", handlers.Session.HandleOriginalAudio)
	sessionGroup.GET("/:id/cleaned", handlers.Session.HandleCleanedAudio)
	sessionGroup.GET("/:id/download", handlers.Session.HandleDownload)
	sessionGroup.GET("/:id/spectrogram.png", handlers.Session.HandleSpectrogramImage)
	sessionGroup.GET("/:id/spectrogram", handlers.Session.HandleSpectrogramData)

	// History routes
	historyGroup := e.Group("/api/history")
	historyGroup.GET("", handlers.History.HandleGetHistory)
	historyGroup.GET("/stats", handlers.History.HandleGetHistoryStats)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/sessions/:id", handlers.WebSocket.HandleSessionSocket)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	BodyLimit        string
	EnableCORS       bool
	AllowOrigins     string
	RequestLogging   bool
	Compression      bool
	CompressionLevel int
	ExposeErrors     bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	e.HTTPErrorHandler = NewErrorHandler(log, cfg.ExposeErrors)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogURI:      true,
			LogMethod:   true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
					zap.String("remote_ip", v.RemoteIP),
				}
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}
				log.Info("request", fields...)
				return nil
			},
		}))
	}

	if cfg.EnableCORS {
		origins := []string{"*"}
		if cfg.AllowOrigins != "" && cfg.AllowOrigins != "*" {
			origins = strings.Split(cfg.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			MaxAge:       int((12 * time.Hour).Seconds()),
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
			// Streams and media previews are served uncompressed.
			Skipper: func(c echo.Context) bool {
				if c.Request().Header.Get("Accept") == "text/event-stream" {
					return true
				}
				p := c.Request().URL.Path
				return strings.HasPrefix(p, "/api/ws/") ||
					strings.HasSuffix(p, "/progress") ||
					strings.HasSuffix(p, "/original") ||
					strings.HasSuffix(p, "/cleaned") ||
					strings.HasSuffix(p, "/download") ||
					strings.HasSuffix(p, ".png")
			},
		}))
	}
}
