package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

func TestTransition(t *testing.T) {
	chain := domain.ProviderChain{domain.ProviderTikwm, domain.ProviderCobalt, domain.ProviderYTDLP}
	binary := domain.NewBinary([]byte("x"), "x.mp4", "video/mp4")
	rateLimited := domain.NewFailure(domain.KindRateLimited, "slow down")
	private := domain.NewFailure(domain.KindPrivateOrRemoved, "gone")

	tests := []struct {
		name      string
		state     State
		policy    TransitionPolicy
		result    domain.ProviderResult
		wantPhase Phase
		wantIndex int
	}{
		{"success ends the walk", State{Phase: PhaseTrying, Index: 1}, TransitionPolicy{FallbackEnabled: true}, binary, PhaseSucceeded, 1},
		{"direct url ends the walk", State{Phase: PhaseTrying}, TransitionPolicy{}, &domain.DirectURL{URL: "https://cdn/x"}, PhaseSucceeded, 0},
		{"retryable advances", State{Phase: PhaseTrying, Index: 1}, TransitionPolicy{FallbackEnabled: true}, rateLimited, PhaseTrying, 2},
		{"non-retryable stops", State{Phase: PhaseTrying, Index: 0}, TransitionPolicy{FallbackEnabled: true}, private, PhaseFailed, 0},
		{"last provider exhausts", State{Phase: PhaseTrying, Index: 2}, TransitionPolicy{FallbackEnabled: true}, rateLimited, PhaseExhausted, 2},
		{"fallback disabled stops", State{Phase: PhaseTrying, Index: 1}, TransitionPolicy{}, rateLimited, PhaseFailed, 1},
		{"fast path advances with fallback disabled", State{Phase: PhaseTrying, Index: 0},
			TransitionPolicy{AlwaysAdvance: []domain.ProviderID{domain.ProviderTikwm}}, rateLimited, PhaseTrying, 1},
		{"empty multi url is a retryable failure", State{Phase: PhaseTrying, Index: 0}, TransitionPolicy{FallbackEnabled: true}, &domain.MultiURL{}, PhaseTrying, 1},
		{"nil result is a retryable failure", State{Phase: PhaseTrying, Index: 0}, TransitionPolicy{FallbackEnabled: true}, nil, PhaseTrying, 1},
		{"terminal state is unchanged", State{Phase: PhaseSucceeded, Index: 0, Result: binary}, TransitionPolicy{}, rateLimited, PhaseSucceeded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Transition(tt.state, chain, tt.policy, tt.result)
			assert.Equal(t, tt.wantPhase, next.Phase)
			assert.Equal(t, tt.wantIndex, next.Index)
			// pure: same inputs, same state
			assert.Equal(t, next, Transition(tt.state, chain, tt.policy, tt.result))
		})
	}
}

func TestStart(t *testing.T) {
	assert.Equal(t, State{Phase: PhaseTrying, Index: 0}, Start(domain.ProviderChain{domain.ProviderYTDLP}))

	empty := Start(nil)
	assert.Equal(t, PhaseExhausted, empty.Phase)
	assert.True(t, empty.Terminal())
	_, isFailure := empty.Result.(*domain.Failure)
	assert.True(t, isFailure)
}

func newTestController(t *testing.T, fallback bool, providers ...domain.Provider) *Controller {
	t.Helper()
	policy := ChainPolicy{FallbackEnabled: fallback}.TransitionPolicy()
	return NewController(providers, newTestWorkspace(t), policy, nil)
}

func TestController_FallsBackAndCleansUp(t *testing.T) {
	first := fail(domain.ProviderCobalt, domain.KindUpstreamUnavailable)
	first.artifact = "partial.mp4.part"
	second := succeed(domain.ProviderYTDLP)
	controller := newTestController(t, true, first, second)

	req := mustRequest(t, "https://vimeo.com/123")
	outcome := controller.Run(context.Background(), req, mustChain(t, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	require.Equal(t, PhaseSucceeded, outcome.Phase)
	assert.Equal(t, domain.ProviderYTDLP, outcome.Provider)
	binary, ok := outcome.Result.(*domain.Binary)
	require.True(t, ok)
	assert.Equal(t, "bytes from yt-dlp", string(binary.Data))
	require.Len(t, outcome.Attempts, 2)

	// every attempt got its own directory and none survive the walk
	require.Len(t, first.workDirs, 1)
	require.Len(t, second.workDirs, 1)
	assert.NotEqual(t, first.workDirs[0], second.workDirs[0])
	for _, dir := range append(first.workDirs, second.workDirs...) {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "%s should be removed", dir)
	}
}

func TestController_NonRetryableStopsChain(t *testing.T) {
	first := fail(domain.ProviderCobalt, domain.KindPrivateOrRemoved)
	second := succeed(domain.ProviderYTDLP)
	controller := newTestController(t, true, first, second)

	outcome := controller.Run(context.Background(), mustRequest(t, "https://vimeo.com/1"),
		mustChain(t, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	assert.Equal(t, PhaseFailed, outcome.Phase)
	assert.Equal(t, 0, second.calls)
	require.NotNil(t, outcome.Failure())
	assert.Equal(t, domain.KindPrivateOrRemoved, outcome.Failure().Kind)
	assert.Equal(t, domain.ProviderCobalt, outcome.Provider)
}

func TestController_ExhaustedSurfacesLastFailure(t *testing.T) {
	controller := newTestController(t, true,
		fail(domain.ProviderCobalt, domain.KindRateLimited),
		fail(domain.ProviderYTDLP, domain.KindTimeout))

	outcome := controller.Run(context.Background(), mustRequest(t, "https://vimeo.com/1"),
		mustChain(t, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	assert.Equal(t, PhaseExhausted, outcome.Phase)
	assert.Equal(t, domain.KindTimeout, outcome.Failure().Kind)
	assert.Equal(t, domain.ProviderYTDLP, outcome.Provider)
	assert.Contains(t, outcome.String(), "exhausted after 2 attempt(s)")
}

func TestController_NeverRepeatsProvider(t *testing.T) {
	providers := []*fakeProvider{
		fail(domain.ProviderTikwm, domain.KindRateLimited),
		fail(domain.ProviderCobalt, domain.KindEmptyContent),
		fail(domain.ProviderYTDLP, domain.KindUnknown),
	}
	controller := newTestController(t, true, providers[0], providers[1], providers[2])

	var seen []domain.ProviderID
	controller.Run(context.Background(), mustRequest(t, "https://www.tiktok.com/@a/video/1"),
		mustChain(t, domain.ProviderTikwm, domain.ProviderCobalt, domain.ProviderYTDLP),
		func(a Attempt) { seen = append(seen, a.Provider) })

	assert.Equal(t, []domain.ProviderID{domain.ProviderTikwm, domain.ProviderCobalt, domain.ProviderYTDLP}, seen)
	for _, p := range providers {
		assert.Equal(t, 1, p.calls, "provider %s", p.id)
	}
}

func TestController_FallbackDisabled(t *testing.T) {
	tikwm := fail(domain.ProviderTikwm, domain.KindRateLimited)
	cobalt := fail(domain.ProviderCobalt, domain.KindRateLimited)
	ytdlp := succeed(domain.ProviderYTDLP)
	controller := newTestController(t, false, tikwm, cobalt, ytdlp)

	outcome := controller.Run(context.Background(), mustRequest(t, "https://www.tiktok.com/@a/video/1"),
		mustChain(t, domain.ProviderTikwm, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	// the fast path always hands over, cobalt does not
	assert.Equal(t, 1, tikwm.calls)
	assert.Equal(t, 1, cobalt.calls)
	assert.Equal(t, 0, ytdlp.calls)
	assert.Equal(t, PhaseFailed, outcome.Phase)
	assert.Equal(t, domain.KindRateLimited, outcome.Failure().Kind)
}

func TestController_MultiURLNormalized(t *testing.T) {
	picker := &fakeProvider{id: domain.ProviderCobalt, results: []domain.ProviderResult{
		&domain.MultiURL{URLs: []string{"https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/3.jpg"}},
	}}
	controller := newTestController(t, true, picker)

	outcome := controller.Run(context.Background(), mustRequest(t, "https://www.instagram.com/p/X/"),
		mustChain(t, domain.ProviderCobalt), nil)

	assert.Equal(t, "https://cdn/1.jpg", outcome.Canonical)
	assert.Equal(t, []string{"https://cdn/2.jpg", "https://cdn/3.jpg"}, outcome.Auxiliary)
}

func TestController_UnregisteredProviderAdvances(t *testing.T) {
	ytdlp := succeed(domain.ProviderYTDLP)
	controller := newTestController(t, true, ytdlp)

	outcome := controller.Run(context.Background(), mustRequest(t, "https://vimeo.com/1"),
		mustChain(t, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	assert.Equal(t, PhaseSucceeded, outcome.Phase)
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, domain.KindUnknown, outcome.Attempts[0].Failure().Kind)
}

func TestController_CancelledContext(t *testing.T) {
	ytdlp := succeed(domain.ProviderYTDLP)
	controller := newTestController(t, true, ytdlp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := controller.Run(ctx, mustRequest(t, "https://vimeo.com/1"), mustChain(t, domain.ProviderYTDLP), nil)

	assert.Equal(t, 0, ytdlp.calls)
	assert.Equal(t, domain.KindTimeout, outcome.Failure().Kind)
}

type panickingProvider struct{}

func (panickingProvider) ID() domain.ProviderID { return domain.ProviderCobalt }
func (panickingProvider) Fetch(context.Context, domain.MediaRequest, domain.FetchHint) domain.ProviderResult {
	panic("boom")
}

func TestController_RecoversProviderPanic(t *testing.T) {
	controller := newTestController(t, true, panickingProvider{}, succeed(domain.ProviderYTDLP))

	outcome := controller.Run(context.Background(), mustRequest(t, "https://vimeo.com/1"),
		mustChain(t, domain.ProviderCobalt, domain.ProviderYTDLP), nil)

	assert.Equal(t, PhaseSucceeded, outcome.Phase)
	assert.Equal(t, domain.ProviderYTDLP, outcome.Provider)
}

// A TikTok URL goes to the fast path first, which answers with a clean play URL.
func TestScenario_TikTokFastPathDirectURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"msg":"success","data":{"id":"7301","play":"https://cdn.tikwm.test/play/7301.mp4",` +
			`"wmplay":"https://cdn.tikwm.test/wm/7301.mp4","author":{"unique_id":"dancer"}}}`))
	}))
	defer server.Close()

	cfg := domain.DefaultConfig()
	cfg.Tikwm.APIURL = server.URL + "/api/"
	cfg.Tikwm.RequestsPerSecond = 100
	tikwm := infrastructure.NewTikwmProvider(cfg.Tikwm, server.Client(),
		infrastructure.NewFetcher(server.Client(), 5*time.Second, nil), nil, nil)
	ytdlp := succeed(domain.ProviderYTDLP)

	policy := ChainPolicy{CobaltEnabled: false, TikwmEnabled: true, FallbackEnabled: true}
	req := mustRequest(t, "https://www.tiktok.com/@dancer/video/7301", domain.WithDelivery(domain.DeliveryURL))
	chain, err := policy.BuildChain(req)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderChain{domain.ProviderTikwm, domain.ProviderYTDLP}, chain)

	controller := NewController([]domain.Provider{tikwm, ytdlp}, newTestWorkspace(t), policy.TransitionPolicy(), nil)
	outcome := controller.Run(context.Background(), req, chain, nil)

	direct, ok := outcome.Result.(*domain.DirectURL)
	require.True(t, ok, "got %#v", outcome.Result)
	assert.Equal(t, "https://cdn.tikwm.test/play/7301.mp4", direct.URL)
	assert.Equal(t, "tiktok_dancer_7301.mp4", direct.Filename)
	assert.Equal(t, 0, ytdlp.calls)
}

// Cobalt answers 429, the chain moves on to yt-dlp which succeeds.
func TestScenario_CobaltRateLimitedFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":"error","error":{"code":"error.api.rate_exceeded"}}`))
	}))
	defer server.Close()

	cfg := domain.DefaultConfig()
	cfg.Cobalt.APIURL = server.URL
	cobalt := infrastructure.NewCobaltProvider(cfg.Cobalt, server.Client(),
		infrastructure.NewFetcher(server.Client(), 5*time.Second, nil), nil)
	ytdlp := succeed(domain.ProviderYTDLP)

	policy := NewChainPolicy(cfg)
	req := mustRequest(t, "https://www.youtube.com/watch?v=abc")
	chain, err := policy.BuildChain(req)
	require.NoError(t, err)

	var attempts []Attempt
	controller := NewController([]domain.Provider{cobalt, ytdlp}, newTestWorkspace(t), policy.TransitionPolicy(), nil)
	outcome := controller.Run(context.Background(), req, chain, func(a Attempt) { attempts = append(attempts, a) })

	require.Len(t, attempts, 2)
	assert.Equal(t, domain.KindRateLimited, attempts[0].Failure().Kind)
	assert.True(t, attempts[0].Failure().Retryable)
	assert.Equal(t, PhaseSucceeded, outcome.Phase)
	assert.Equal(t, domain.ProviderYTDLP, outcome.Provider)
}

// Cobalt cannot reach an Instagram reel; gallery-dl picks it up before yt-dlp.
func TestScenario_InstagramFallsBackToGalleryDL(t *testing.T) {
	cobalt := fail(domain.ProviderCobalt, domain.KindUpstreamUnavailable)
	gallery := succeed(domain.ProviderGalleryDL)
	ytdlp := succeed(domain.ProviderYTDLP)

	policy := ChainPolicy{CobaltEnabled: true, FallbackEnabled: true}
	req := mustRequest(t, "https://www.instagram.com/reel/C0abc/")
	chain, err := policy.BuildChain(req)
	require.NoError(t, err)

	controller := NewController([]domain.Provider{cobalt, gallery, ytdlp}, newTestWorkspace(t), policy.TransitionPolicy(), nil)
	outcome := controller.Run(context.Background(), req, chain, nil)

	require.Equal(t, PhaseSucceeded, outcome.Phase)
	assert.Equal(t, domain.ProviderGalleryDL, outcome.Provider)
	binary, ok := outcome.Result.(*domain.Binary)
	require.True(t, ok)
	assert.Equal(t, "bytes from gallery-dl", string(binary.Data))
	assert.Equal(t, 1, cobalt.calls)
	assert.Equal(t, 1, gallery.calls)
	assert.Equal(t, 0, ytdlp.calls)
}
