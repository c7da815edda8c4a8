package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    domain.ErrorKind
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
				assert.Equal(t, "https://ref.example/", r.Header.Get("Referer"))
				w.Header().Set("Content-Type", "video/mp4")
				w.Header().Set("Content-Disposition", `attachment; filename="a.mp4"`)
				w.Write(mp4Header)
			},
		},
		{
			name: "zero content length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusOK)
			},
			kind: domain.KindZeroLength,
		},
		{
			name: "empty chunked body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.(http.Flusher).Flush()
			},
			kind: domain.KindEmptyContent,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			kind: domain.KindRateLimited,
		},
		{
			name: "bad gateway",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			kind: domain.KindUpstreamUnavailable,
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			kind: domain.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := NewFetcher(server.Client(), 5*time.Second, nil)
			media, failure := fetcher.Fetch(context.Background(), server.URL, "https://ref.example/")
			if tt.kind == "" {
				require.Nil(t, failure)
				assert.Equal(t, mp4Header, media.Data)
				assert.Equal(t, "video/mp4", media.ContentType)
				assert.Equal(t, "a.mp4", FilenameFromContentDisposition(media.ContentDisposition))
				return
			}
			require.NotNil(t, failure)
			assert.Equal(t, tt.kind, failure.Kind)
		})
	}
}

func TestFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 50*time.Millisecond, nil)
	_, failure := fetcher.Fetch(context.Background(), server.URL, "")
	require.NotNil(t, failure)
	assert.Equal(t, domain.KindTimeout, failure.Kind)
	assert.True(t, failure.Retryable)
}

func TestFetcher_TransportErrorIgnoresURLText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), time.Second, nil)
	for _, path := range []string{"/private/video.mp4", "/blocked/429/not_available.mp4"} {
		_, failure := fetcher.Fetch(context.Background(), server.URL+path, "")
		require.NotNil(t, failure, path)
		assert.Equal(t, domain.KindUpstreamUnavailable, failure.Kind, path)
		assert.True(t, failure.Retryable, path)
	}
}
