package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// TranscribeHandler handles the acquire-then-transcribe endpoints
type TranscribeHandler struct {
	service       *app.TranscriptionService
	maxImageBytes int64
	logger        *zap.Logger
}

// NewTranscribeHandler creates a new transcribe handler
func NewTranscribeHandler(service *app.TranscriptionService, maxImageBytes int64, logger *zap.Logger) *TranscribeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscribeHandler{
		service:       service,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// TranscribeMediaRequest is the body of POST /api/v1/transcribe/media
type TranscribeMediaRequest struct {
	URL      string `json:"url" binding:"required"`
	Language string `json:"language,omitempty"`
}

// TranscribeCarouselRequest is the body of POST /api/v1/transcribe/carousel
type TranscribeCarouselRequest struct {
	URL    string `json:"url" binding:"required"`
	Prompt string `json:"prompt,omitempty"`
}

// Media handles POST /api/v1/transcribe/media
func (h *TranscribeHandler) Media(c *gin.Context) {
	var req TranscribeMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := domain.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	transcript, err := h.service.TranscribeMedia(c.Request.Context(), req.URL, req.Language)
	if err != nil {
		h.logger.Warn("Media transcription failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transcript)
}

// Image handles POST /api/v1/transcribe/image with a multipart "image" file
// and an optional "prompt" field
func (h *TranscribeHandler) Image(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'image' is required"})
		return
	}
	if h.maxImageBytes > 0 && file.Size > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": app.ErrImageTooLarge.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
		return
	}

	text, err := h.service.TranscribeImage(c.Request.Context(), data, file.Header.Get("Content-Type"), c.PostForm("prompt"))
	if err != nil {
		h.logger.Warn("Image transcription failed", zap.String("file", file.Filename), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text":     text,
		"filename": file.Filename,
		"size":     len(data),
	})
}

// Carousel handles POST /api/v1/transcribe/carousel
func (h *TranscribeHandler) Carousel(c *gin.Context) {
	var req TranscribeCarouselRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := domain.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.service.TranscribeCarousel(c.Request.Context(), req.URL, req.Prompt)
	if err != nil {
		h.logger.Warn("Carousel transcription failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"url":    req.URL,
		"count":  len(items),
		"failed": failed,
		"items":  items,
	})
}
