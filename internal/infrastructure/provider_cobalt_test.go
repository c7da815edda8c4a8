package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

func newTestCobalt(t *testing.T, handler http.HandlerFunc, apiKey string) (*CobaltProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := domain.DefaultConfig().Cobalt
	cfg.APIURL = server.URL
	cfg.APIKey = apiKey
	provider := NewCobaltProvider(cfg, server.Client(), NewFetcher(server.Client(), 5*time.Second, nil), nil)
	provider.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return provider, server
}

func mustRequest(t *testing.T, rawURL string, opts ...domain.RequestOption) domain.MediaRequest {
	t.Helper()
	req, err := domain.NewMediaRequest(rawURL, opts...)
	require.NoError(t, err)
	return req
}

func TestCobaltProvider_RedirectDownloadsBytes(t *testing.T) {
	var captured cobaltRequest
	var server *httptest.Server
	provider, server := newTestCobalt(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]string{"status": "redirect", "url": server.URL + "/media"})
		case "/media":
			assert.Equal(t, "https://www.youtube.com/watch?v=abc", r.Header.Get("Referer"))
			w.Header().Set("Content-Type", "video/mp4")
			w.Write(mp4Header)
		}
	}, "secret")

	req := mustRequest(t, "https://www.youtube.com/watch?v=abc")
	result := provider.Fetch(context.Background(), req, domain.FetchHint{Platform: domain.PlatformYouTube})

	bin, ok := result.(*domain.Binary)
	require.True(t, ok, "expected binary, got %#v", result)
	assert.Equal(t, mp4Header, bin.Data)
	assert.Equal(t, "youtube_20240102_030405.mp4", bin.Filename)
	assert.Equal(t, "video/mp4", bin.ContentType)

	assert.Equal(t, "auto", captured.DownloadMode)
	assert.Equal(t, "classic", captured.FilenameStyle)
	assert.Equal(t, "max", captured.VideoQuality)
	assert.Equal(t, "h264", captured.VideoCodec)
}

func TestCobaltProvider_AudioPayload(t *testing.T) {
	var captured cobaltRequest
	provider, _ := newTestCobalt(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"status": "tunnel", "url": "https://cdn.example/a.mp3", "filename": "song.mp3"})
	}, "")

	req := mustRequest(t, "https://soundcloud.com/a/b", domain.WithAudioOnly(domain.AudioMP3), domain.WithDelivery(domain.DeliveryURL))
	result := provider.Fetch(context.Background(), req, domain.FetchHint{Platform: domain.PlatformSoundCloud})

	direct, ok := result.(*domain.DirectURL)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/a.mp3", direct.URL)
	assert.Equal(t, "song.mp3", direct.Filename)
	assert.Equal(t, "audio", captured.DownloadMode)
	assert.Equal(t, "mp3", captured.AudioFormat)
}

func TestCobaltProvider_Picker(t *testing.T) {
	provider, _ := newTestCobalt(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"picker","picker":[{"type":"photo","url":"https://cdn/1.jpg"},{"type":"video","url":"https://cdn/2.mp4"}]}`))
	}, "")

	result := provider.Fetch(context.Background(), mustRequest(t, "https://x.com/a/status/1"), domain.FetchHint{})
	multi, ok := result.(*domain.MultiURL)
	require.True(t, ok)
	assert.Equal(t, "https://cdn/1.jpg", multi.Canonical())
	assert.Equal(t, []string{"https://cdn/2.mp4"}, multi.Auxiliary())
}

func TestCobaltProvider_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		kind      domain.ErrorKind
		retryable bool
	}{
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "30")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			kind:      domain.KindRateLimited,
			retryable: true,
		},
		{
			name: "v7 shut down",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":"error","text":"cobalt v7 api has been shut down"}`))
			},
			kind:      domain.KindUpstreamUnavailable,
			retryable: true,
		},
		{
			name: "error status with code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"error","error":{"code":"error.api.link.invalid"}}`))
			},
			kind:      domain.KindUnknown,
			retryable: true,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>maintenance</html>`))
			},
			kind:      domain.KindUnknown,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newTestCobalt(t, tt.handler, "")
			result := provider.Fetch(context.Background(), mustRequest(t, "https://vimeo.com/1"), domain.FetchHint{})
			failure, ok := result.(*domain.Failure)
			require.True(t, ok)
			assert.Equal(t, tt.kind, failure.Kind)
			assert.Equal(t, tt.retryable, failure.Retryable)
		})
	}
}

func TestCobaltProvider_HTMLPayloadRejected(t *testing.T) {
	var server *httptest.Server
	provider, server := newTestCobalt(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			json.NewEncoder(w).Encode(map[string]string{"status": "stream", "url": server.URL + "/media"})
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("<html>error</html>"))
	}, "")

	result := provider.Fetch(context.Background(), mustRequest(t, "https://vimeo.com/1"), domain.FetchHint{Platform: domain.PlatformVimeo})
	failure, ok := result.(*domain.Failure)
	require.True(t, ok)
	assert.Equal(t, domain.KindUnknown, failure.Kind)
}
