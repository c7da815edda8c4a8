package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

const tiktokURL = "https://www.tiktok.com/@dancer/video/7301234567890"

func newTestTikwm(t *testing.T, handler http.HandlerFunc, extractor AudioExtractor) *TikwmProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := domain.TikwmConfig{Enabled: true, APIURL: server.URL + "/api/", Timeout: 5 * time.Second}
	return NewTikwmProvider(cfg, server.Client(), NewFetcher(server.Client(), 5*time.Second, nil), extractor, nil)
}

func tikwmHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/":
			assert.Equal(t, tiktokURL, r.URL.Query().Get("url"))
			w.Write([]byte(body))
		case "/video/media/hdplay/7301234567890.mp4", "/video/media/play/7301234567890.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write(mp4Header)
		default:
			http.NotFound(w, r)
		}
	}
}

const tikwmOK = `{"code":0,"msg":"success","data":{"id":"7301234567890","cover":"/video/cover/7301234567890.webp",` +
	`"play":"/video/media/play/7301234567890.mp4","hdplay":"/video/media/hdplay/7301234567890.mp4",` +
	`"wmplay":"/video/media/wmplay/7301234567890.mp4","author":{"unique_id":"dancer"}}}`

func TestTikwmProvider_DirectURL(t *testing.T) {
	provider := newTestTikwm(t, tikwmHandler(t, tikwmOK), nil)
	req := mustRequest(t, tiktokURL, domain.WithDelivery(domain.DeliveryURL))

	result := provider.Fetch(context.Background(), req, domain.FetchHint{Platform: domain.PlatformTikTok})

	direct, ok := result.(*domain.DirectURL)
	require.True(t, ok, "got %#v", result)
	assert.Contains(t, direct.URL, "/video/media/hdplay/7301234567890.mp4")
	assert.Equal(t, "tiktok_dancer_7301234567890.mp4", direct.Filename)
	assert.Contains(t, direct.ThumbnailURL, "/video/cover/7301234567890.webp")
}

func TestTikwmProvider_PrefersPlayWithoutHD(t *testing.T) {
	body := `{"code":0,"data":{"id":"7301234567890","play":"/video/media/play/7301234567890.mp4","wmplay":"/wm.mp4","author":{"unique_id":"dancer"}}}`
	provider := newTestTikwm(t, tikwmHandler(t, body), nil)

	result := provider.Fetch(context.Background(), mustRequest(t, tiktokURL), domain.FetchHint{Platform: domain.PlatformTikTok})

	bin, ok := result.(*domain.Binary)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, mp4Header, bin.Data)
	assert.Equal(t, "tiktok_dancer_7301234567890.mp4", bin.Filename)
}

type fakeExtractor struct {
	failure *domain.Failure
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, input string, format domain.AudioFormat) (string, *domain.Failure) {
	if f.failure != nil {
		return "", f.failure
	}
	output := input[:len(input)-len(filepath.Ext(input))] + "." + string(format)
	return output, domain.AsFailure(os.WriteFile(output, []byte("ID3fakeaudio"), 0644))
}

func TestTikwmProvider_AudioOnly(t *testing.T) {
	provider := newTestTikwm(t, tikwmHandler(t, tikwmOK), &fakeExtractor{})
	req := mustRequest(t, tiktokURL, domain.WithAudioOnly(domain.AudioMP3))

	result := provider.Fetch(context.Background(), req, domain.FetchHint{Platform: domain.PlatformTikTok, WorkDir: t.TempDir()})

	bin, ok := result.(*domain.Binary)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, "tiktok_dancer_7301234567890.mp3", bin.Filename)
	assert.Equal(t, []byte("ID3fakeaudio"), bin.Data)
}

func TestTikwmProvider_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		platform domain.Platform
		kind     domain.ErrorKind
	}{
		{"non-zero code", `{"code":-1,"msg":"Url parsing is failed! Please check url."}`, domain.PlatformTikTok, domain.KindUnknown},
		{"private wording stays retryable", `{"code":-1,"msg":"video is private"}`, domain.PlatformTikTok, domain.KindUnknown},
		{"no play url", `{"code":0,"data":{"id":"1"}}`, domain.PlatformTikTok, domain.KindEmptyContent},
		{"invalid json", `<html>`, domain.PlatformTikTok, domain.KindUpstreamUnavailable},
		{"wrong platform", tikwmOK, domain.PlatformYouTube, domain.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestTikwm(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, nil)

			result := provider.Fetch(context.Background(), mustRequest(t, tiktokURL), domain.FetchHint{Platform: tt.platform})
			failure, ok := result.(*domain.Failure)
			require.True(t, ok, "got %#v", result)
			assert.Equal(t, tt.kind, failure.Kind)
			assert.True(t, failure.Retryable)
		})
	}
}

func TestTikwmFilename(t *testing.T) {
	assert.Equal(t, "tiktok_user_video.mp4", TikwmFilename("", ""))
	assert.Equal(t, "tiktok_a_1.mp4", TikwmFilename("a", "1"))
}

func hangUp(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}
}

func TestTikwmProvider_DroppedConnectionStaysRetryable(t *testing.T) {
	provider := newTestTikwm(t, hangUp(t), nil)
	// the source URL ends up in the transport error text
	req := mustRequest(t, "https://www.tiktok.com/@private_chef_blocked/video/7301429")

	result := provider.Fetch(context.Background(), req, domain.FetchHint{Platform: domain.PlatformTikTok})

	failure, ok := result.(*domain.Failure)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, domain.KindUpstreamUnavailable, failure.Kind)
	assert.True(t, failure.Retryable)
}
