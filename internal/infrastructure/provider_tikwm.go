package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Cover  string `json:"cover"`
		HDPlay string `json:"hdplay"`
		Play   string `json:"play"`
		WMPlay string `json:"wmplay"`
		Author struct {
			UniqueID string `json:"unique_id"`
		} `json:"author"`
	} `json:"data"`
}

// TikwmProvider is the TikTok fast path backed by the tikwm query API
type TikwmProvider struct {
	cfg       domain.TikwmConfig
	client    *http.Client
	fetcher   *Fetcher
	extractor AudioExtractor
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewTikwmProvider creates the fast-path provider. extractor may be nil, in
// which case audio-only requests fail over to the next provider.
func NewTikwmProvider(cfg domain.TikwmConfig, client *http.Client, fetcher *Fetcher, extractor AudioExtractor, logger *zap.Logger) *TikwmProvider {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &TikwmProvider{
		cfg:       cfg,
		client:    client,
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// ID implements domain.Provider
func (p *TikwmProvider) ID() domain.ProviderID {
	return domain.ProviderTikwm
}

// Fetch implements domain.Provider. tikwm never ends the chain: a failure
// that would be terminal is reported as a retryable Unknown so the general
// providers still get their turn.
func (p *TikwmProvider) Fetch(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	result := p.fetch(ctx, req, hint)
	if failure, ok := result.(*domain.Failure); ok && !failure.Retryable {
		return domain.NewFailure(domain.KindUnknown, "tikwm %s: %s", failure.Kind, failure.Message)
	}
	return result
}

func (p *TikwmProvider) fetch(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	if hint.Platform != domain.PlatformTikTok {
		return domain.NewFailure(domain.KindUnknown, "tikwm only serves tiktok urls, got %s", hint.Platform)
	}

	info, failure := p.query(ctx, req.URL)
	if failure != nil {
		return failure
	}

	mediaURL := firstNonEmpty(info.Data.HDPlay, info.Data.Play, info.Data.WMPlay)
	if mediaURL == "" {
		return domain.NewFailure(domain.KindEmptyContent, "tikwm response has no playable url")
	}
	mediaURL = p.absolute(mediaURL)
	filename := TikwmFilename(info.Data.Author.UniqueID, info.Data.ID)

	if req.Delivery == domain.DeliveryURL && !req.WantAudioOnly {
		return &domain.DirectURL{
			URL:          mediaURL,
			Filename:     filename,
			ThumbnailURL: p.absolute(info.Data.Cover),
		}
	}

	media, failure := p.fetcher.Fetch(ctx, mediaURL, req.URL)
	if failure != nil {
		return failure
	}
	if failure := ValidateContent(media.Data, "mp4"); failure != nil {
		return failure
	}

	if !req.WantAudioOnly {
		return domain.NewBinary(media.Data, filename, "video/mp4")
	}
	return p.extractAudio(ctx, req, hint, media.Data, filename)
}

func (p *TikwmProvider) extractAudio(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint, video []byte, filename string) domain.ProviderResult {
	if p.extractor == nil {
		return domain.NewFailure(domain.KindBinaryNotFound, "no audio extractor configured")
	}
	if hint.WorkDir == "" {
		return domain.NewFailure(domain.KindUnknown, "audio extraction needs a work directory")
	}

	input := filepath.Join(hint.WorkDir, filename)
	if err := os.WriteFile(input, video, 0644); err != nil {
		return domain.NewFailure(domain.KindUnknown, "failed to write video: %v", err)
	}
	output, failure := p.extractor.ExtractAudio(ctx, input, req.AudioFormat)
	if failure != nil {
		return failure
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return domain.NewFailure(domain.KindUnknown, "failed to read extracted audio: %v", err)
	}
	if len(data) == 0 {
		return domain.NewFailure(domain.KindEmptyContent, "extracted audio is empty")
	}
	return domain.NewBinary(data, filepath.Base(output), DetectContentType(data))
}

func (p *TikwmProvider) query(ctx context.Context, sourceURL string) (*tikwmResponse, *domain.Failure) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, domain.NewFailure(domain.KindRateLimited, "tikwm rate limiter: %v", err)
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	endpoint := p.cfg.APIURL
	if !strings.Contains(endpoint, "?") {
		endpoint += "?"
	} else {
		endpoint += "&"
	}
	endpoint += "url=" + url.QueryEscape(sourceURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "invalid tikwm endpoint: %v", err)
	}
	httpReq.Header.Set("User-Agent", BrowserUserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	if failure := statusFailure(resp.StatusCode); failure != nil {
		return nil, failure
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	var decoded tikwmResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewFailure(domain.KindUpstreamUnavailable, "invalid tikwm response: %v", err)
	}
	if decoded.Code != 0 {
		msg := decoded.Msg
		if msg == "" {
			msg = fmt.Sprintf("code %d", decoded.Code)
		}
		return nil, domain.NewFailure(ClassifyMessage(msg), "tikwm: %s", msg)
	}

	p.logger.Debug("tikwm resolved",
		zap.String("id", decoded.Data.ID),
		zap.String("author", decoded.Data.Author.UniqueID))
	return &decoded, nil
}

// absolute resolves a media path returned relative to the API origin
func (p *TikwmProvider) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(p.cfg.APIURL)
	if err != nil {
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return resolved.String()
}

// TikwmFilename builds tiktok_<author>_<id>.mp4
func TikwmFilename(author, id string) string {
	if author == "" {
		author = "user"
	}
	if id == "" {
		id = "video"
	}
	return SanitizeFilename(fmt.Sprintf("tiktok_%s_%s.mp4", author, id))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
