package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// AcquireHandler handles acquisition-related HTTP requests
type AcquireHandler struct {
	acquirer *app.AcquisitionService
	logger   *zap.Logger
}

// NewAcquireHandler creates a new acquire handler
func NewAcquireHandler(acquirer *app.AcquisitionService, logger *zap.Logger) *AcquireHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcquireHandler{
		acquirer: acquirer,
		logger:   logger,
	}
}

// AcquireRequest is the JSON body of every acquire endpoint
type AcquireRequest struct {
	URL         string `json:"url" binding:"required"`
	AudioOnly   bool   `json:"audio_only,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Format      string `json:"format,omitempty"`
	Merge       bool   `json:"merge,omitempty"`
}

func (r AcquireRequest) build(extra ...domain.RequestOption) (domain.MediaRequest, error) {
	opts := []domain.RequestOption{
		domain.WithQuality(domain.Quality(r.Quality)),
		domain.WithFormat(domain.OutputFormat(r.Format)),
		domain.WithMerge(r.Merge),
	}
	if r.AudioOnly {
		opts = append(opts, domain.WithAudioOnly(domain.AudioFormat(r.AudioFormat)))
	}
	return domain.NewMediaRequest(r.URL, append(opts, extra...)...)
}

// Acquire handles POST /api/v1/acquire and returns the media bytes
func (h *AcquireHandler) Acquire(c *gin.Context) {
	h.handle(c, domain.WithDelivery(domain.DeliveryBytes))
}

// AcquireURL handles POST /api/v1/acquire/url and returns direct media links
func (h *AcquireHandler) AcquireURL(c *gin.Context) {
	h.handle(c, domain.WithDelivery(domain.DeliveryURL))
}

// AcquireStream handles POST /api/v1/acquire/stream
func (h *AcquireHandler) AcquireStream(c *gin.Context) {
	h.handle(c, domain.WithDelivery(domain.DeliveryStream))
}

// Audio handles POST /api/v1/audio
func (h *AcquireHandler) Audio(c *gin.Context) {
	h.handleWith(c, func(r *AcquireRequest) { r.AudioOnly = true }, domain.WithDelivery(domain.DeliveryBytes))
}

// GalleryURLs handles POST /api/v1/gallery/urls
func (h *AcquireHandler) GalleryURLs(c *gin.Context) {
	h.handle(c, domain.WithMode(domain.ModeGallery), domain.WithDelivery(domain.DeliveryURL))
}

// GalleryZip handles POST /api/v1/gallery/zip
func (h *AcquireHandler) GalleryZip(c *gin.Context) {
	h.handle(c, domain.WithMode(domain.ModeGallery), domain.WithDelivery(domain.DeliveryBytes))
}

func (h *AcquireHandler) handle(c *gin.Context, opts ...domain.RequestOption) {
	h.handleWith(c, nil, opts...)
}

func (h *AcquireHandler) handleWith(c *gin.Context, adjust func(*AcquireRequest), opts ...domain.RequestOption) {
	start := time.Now()

	var body AcquireRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if adjust != nil {
		adjust(&body)
	}
	req, err := body.build(opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.acquirer.Acquire(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to start acquisition", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Acquisition-Id", result.Acquisition.ID)

	if failure := result.Failure(); failure != nil {
		respondFailure(c, failure, result.Outcome.Provider)
		return
	}

	switch r := result.Outcome.Result.(type) {
	case *domain.Binary:
		writeBinary(c, r, result.Outcome.Provider, start)
	case *domain.DirectURL:
		c.JSON(http.StatusOK, gin.H{
			"id":        result.Acquisition.ID,
			"provider":  result.Outcome.Provider,
			"platform":  result.Acquisition.Platform,
			"url":       r.URL,
			"urls":      []string{r.URL},
			"filename":  r.Filename,
			"thumbnail": r.ThumbnailURL,
		})
	case *domain.MultiURL:
		c.JSON(http.StatusOK, gin.H{
			"id":        result.Acquisition.ID,
			"provider":  result.Outcome.Provider,
			"platform":  result.Acquisition.Platform,
			"url":       result.Outcome.Canonical,
			"urls":      r.URLs,
			"auxiliary": result.Outcome.Auxiliary,
			"count":     len(r.URLs),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected result type " + domain.ResultType(r)})
	}
}

func writeBinary(c *gin.Context, b *domain.Binary, provider domain.ProviderID, start time.Time) {
	filename := b.Filename
	if filename == "" {
		filename = "video.mp4"
	}
	contentType := b.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Header("X-File-Size", strconv.FormatInt(b.SizeBytes, 10))
	c.Header("X-Tool-Used", string(provider))
	c.Header("X-Format", strings.TrimPrefix(filepath.Ext(filename), "."))
	c.Header("X-Processing-Time-Ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	c.Data(http.StatusOK, contentType, b.Data)
}

// Formats handles GET /api/v1/formats?url=
func (h *AcquireHandler) Formats(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'url' is required"})
		return
	}

	formats, err := h.acquirer.ListFormats(c.Request.Context(), rawURL)
	if err != nil {
		if domain.ValidateURL(rawURL) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Warn("Format listing failed", zap.String("url", rawURL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":      rawURL,
		"platform": domain.Classify(rawURL),
		"count":    len(formats),
		"formats":  formats,
	})
}

// Classify handles GET /api/v1/classify?url=
func (h *AcquireHandler) Classify(c *gin.Context) {
	body := AcquireRequest{
		URL:       c.Query("url"),
		AudioOnly: c.Query("audio_only") == "true",
	}
	if body.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'url' is required"})
		return
	}
	req, err := body.build(domain.WithMode(domain.Mode(c.Query("mode"))))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chain, err := h.acquirer.Chain(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := req.Platform()
	c.JSON(http.StatusOK, gin.H{
		"url":                    req.URL,
		"platform":               platform,
		"requires_impersonation": platform.RequiresImpersonation(),
		"chain":                  chain,
	})
}

// ListAcquisitions handles GET /api/v1/acquisitions
func (h *AcquireHandler) ListAcquisitions(c *gin.Context) {
	filters := make(map[string]interface{})
	for _, key := range []string{"status", "platform", "provider", "error_kind", "mode", "delivery"} {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	acquisitions, err := h.acquirer.ListAcquisitions(filters, limit)
	if err != nil {
		h.logger.Error("Failed to list acquisitions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, acquisitions)
}

// GetAcquisition handles GET /api/v1/acquisitions/:id
func (h *AcquireHandler) GetAcquisition(c *gin.Context) {
	id := c.Param("id")

	acquisition, err := h.acquirer.GetAcquisition(id)
	if err != nil {
		if errors.Is(err, domain.ErrAcquisitionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "acquisition not found"})
			return
		}
		h.logger.Error("Failed to get acquisition", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, acquisition)
}

// GetStats handles GET /api/v1/acquisitions/stats
func (h *AcquireHandler) GetStats(c *gin.Context) {
	stats, err := h.acquirer.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":     stats,
		"in_flight": h.acquirer.InFlight(),
	})
}
