package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

// StatusForKind maps a failure kind to the HTTP status returned to callers
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindPrivateOrRemoved:
		return http.StatusNotFound
	case domain.KindPlatformBlocked:
		return http.StatusForbidden
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUpstreamUnavailable, domain.KindBinaryNotFound:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func respondFailure(c *gin.Context, failure *domain.Failure, provider domain.ProviderID) {
	body := gin.H{
		"error":     failure.Message,
		"kind":      failure.Kind,
		"retryable": failure.Retryable,
	}
	if provider != "" {
		body["provider"] = provider
	}
	c.JSON(StatusForKind(failure.Kind), body)
}

// respondError writes err with the status matching its type
func respondError(c *gin.Context, err error) {
	var failure *domain.Failure
	switch {
	case errors.As(err, &failure):
		respondFailure(c, failure, "")
	case errors.Is(err, app.ErrTranscriberDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrNothingTranscribed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
