package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	resolver      *infrastructure.BinaryResolver
	cookies       *infrastructure.CookieStore
	storage       domain.StorageConfig
	cobaltEnabled bool
	acquirer      *app.AcquisitionService
	transcription *app.TranscriptionService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	cfg *domain.Config,
	resolver *infrastructure.BinaryResolver,
	cookies *infrastructure.CookieStore,
	acquirer *app.AcquisitionService,
	transcription *app.TranscriptionService,
) *HealthHandler {
	return &HealthHandler{
		resolver:      resolver,
		cookies:       cookies,
		storage:       cfg.Storage,
		cobaltEnabled: cfg.Cobalt.Enabled,
		acquirer:      acquirer,
		transcription: transcription,
	}
}

// DirectoryStatus reports one storage directory
type DirectoryStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status      string                                          `json:"status"`
	Version     string                                          `json:"version"`
	Binaries    map[infrastructure.Tool]infrastructure.Location `json:"binaries"`
	Cookies     []infrastructure.JarStatus                      `json:"cookies"`
	Directories map[string]DirectoryStatus                      `json:"directories"`
	InFlight    int                                             `json:"in_flight"`
	Transcriber bool                                            `json:"transcriber"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Binaries: make(map[infrastructure.Tool]infrastructure.Location),
		Directories: map[string]DirectoryStatus{
			"base":    dirStatus(h.storage.BaseDir),
			"temp":    dirStatus(h.storage.TempDir()),
			"cookies": dirStatus(h.storage.CookiesDir()),
			"logs":    dirStatus(h.storage.LogsDir()),
		},
	}
	for _, tool := range infrastructure.AllTools() {
		response.Binaries[tool] = h.resolver.Resolve(tool, domain.PlatformOther)
	}
	response.Binaries[infrastructure.ToolYTDLP+"_impersonate"] = h.resolver.Resolve(infrastructure.ToolYTDLP, domain.PlatformTikTok)
	if h.cookies != nil {
		response.Cookies = h.cookies.Status()
	}
	if h.acquirer != nil {
		response.InFlight = h.acquirer.InFlight()
	}
	if h.transcription != nil {
		response.Transcriber = h.transcription.Enabled()
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready. The service is ready when at least one
// provider can run: the cloud API is enabled or yt-dlp was found.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.cobaltEnabled && !h.resolver.Available(infrastructure.ToolYTDLP) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no provider available: cobalt disabled and yt-dlp not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func dirStatus(path string) DirectoryStatus {
	info, err := os.Stat(path)
	return DirectoryStatus{Path: path, Exists: err == nil && info.IsDir()}
}
