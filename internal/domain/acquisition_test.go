package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T) MediaRequest {
	t.Helper()
	req, err := NewMediaRequest("https://www.instagram.com/reel/ABC/")
	require.NoError(t, err)
	return req
}

func TestNewAcquisition(t *testing.T) {
	req := newTestRequest(t)
	chain, err := NewProviderChain(ProviderCobalt, ProviderYTDLP)
	require.NoError(t, err)

	acq := NewAcquisition(req, chain)

	assert.NotEmpty(t, acq.ID)
	assert.Equal(t, req.URL, acq.URL)
	assert.Equal(t, PlatformInstagram, acq.Platform)
	assert.Equal(t, "cobalt -> yt-dlp", acq.Chain)
	assert.Equal(t, StatusRunning, acq.Status)
	assert.False(t, acq.IsTerminal())
}

func TestAcquisition_MarkSucceeded(t *testing.T) {
	acq := NewAcquisition(newTestRequest(t), ProviderChain{ProviderYTDLP})

	acq.MarkSucceeded(ProviderYTDLP, NewBinary([]byte("data"), "clip.mp4", "video/mp4"))

	assert.Equal(t, StatusSucceeded, acq.Status)
	assert.Equal(t, ProviderYTDLP, acq.Provider)
	assert.Equal(t, "binary", acq.ResultType)
	assert.Equal(t, "clip.mp4", acq.Filename)
	assert.Equal(t, int64(4), acq.SizeBytes)
	assert.NotNil(t, acq.CompletedAt)
	assert.True(t, acq.IsTerminal())
}

func TestAcquisition_MarkFailed(t *testing.T) {
	acq := NewAcquisition(newTestRequest(t), ProviderChain{ProviderCobalt})

	acq.MarkFailed(ProviderCobalt, NewFailure(KindRateLimited, "slow down"))

	assert.Equal(t, StatusFailed, acq.Status)
	assert.Equal(t, KindRateLimited, acq.ErrorKind)
	assert.Equal(t, "slow down", acq.ErrorMessage)
	assert.Equal(t, "failure", acq.ResultType)
	assert.True(t, acq.IsTerminal())
}

func TestResultType(t *testing.T) {
	assert.Equal(t, "binary", ResultType(&Binary{}))
	assert.Equal(t, "direct_url", ResultType(&DirectURL{}))
	assert.Equal(t, "multi_url", ResultType(&MultiURL{}))
	assert.Equal(t, "failure", ResultType(&Failure{}))
	assert.Equal(t, "", ResultType(nil))
}
