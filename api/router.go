package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/api/handlers"
	"github.com/yourusername/mediabridge-go/api/middleware"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
	"github.com/yourusername/mediabridge-go/pkg/logger"
)

// Dependencies are the collaborators the HTTP layer needs
type Dependencies struct {
	Config        *domain.Config
	Acquirer      *app.AcquisitionService
	Transcription *app.TranscriptionService
	Resolver      *infrastructure.BinaryResolver
	Cookies       *infrastructure.CookieStore
	MultiLogger   *logger.MultiLogger // optional; access and error logs go to stdout logger without it
	Logger        *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	if deps.MultiLogger != nil {
		router.Use(middleware.AccessLogger(deps.MultiLogger))
		router.Use(middleware.RecoveryWithMultiLogger(deps.MultiLogger))
	} else {
		router.Use(middleware.Logger(log))
		router.Use(middleware.Recovery(log))
	}
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins...))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.Config, deps.Resolver, deps.Cookies, deps.Acquirer, deps.Transcription)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		acquireHandler := handlers.NewAcquireHandler(deps.Acquirer, log)
		v1.POST("/acquire", acquireHandler.Acquire)
		v1.POST("/acquire/url", acquireHandler.AcquireURL)
		v1.POST("/acquire/stream", acquireHandler.AcquireStream)
		v1.POST("/audio", acquireHandler.Audio)
		v1.POST("/gallery/urls", acquireHandler.GalleryURLs)
		v1.POST("/gallery/zip", acquireHandler.GalleryZip)
		v1.GET("/formats", acquireHandler.Formats)
		v1.GET("/classify", acquireHandler.Classify)

		acquisitions := v1.Group("/acquisitions")
		{
			acquisitions.GET("", acquireHandler.ListAcquisitions)
			acquisitions.GET("/stats", acquireHandler.GetStats)
			acquisitions.GET("/:id", acquireHandler.GetAcquisition)
		}

		transcribeHandler := handlers.NewTranscribeHandler(deps.Transcription, deps.Config.Transcriber.MaxImageBytes, log)
		transcribe := v1.Group("/transcribe")
		{
			transcribe.POST("/media", transcribeHandler.Media)
			transcribe.POST("/image", transcribeHandler.Image)
			transcribe.POST("/carousel", transcribeHandler.Carousel)
		}

		// Log endpoints
		logsDir := deps.Config.Storage.LogsDir()
		logHandler := handlers.NewLogHandler(logsDir)
		wsHandler := handlers.NewLogWebSocketHandler(logsDir, log)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/ws", wsHandler.HandleWebSocket)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})

	return router
}
