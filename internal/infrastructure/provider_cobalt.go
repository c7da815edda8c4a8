package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// cobaltRequest is the job description POSTed to the Cobalt API
type cobaltRequest struct {
	URL             string `json:"url"`
	VideoQuality    string `json:"videoQuality"`
	FilenameStyle   string `json:"filenameStyle"`
	DownloadMode    string `json:"downloadMode"`
	AudioFormat     string `json:"audioFormat,omitempty"`
	VideoCodec      string `json:"videoCodec,omitempty"`
	AudioBitrate    string `json:"audioBitrate,omitempty"`
	DisableMetadata bool   `json:"disableMetadata,omitempty"`
}

type cobaltPickerItem struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Thumb string `json:"thumb"`
}

type cobaltResponse struct {
	Status   string             `json:"status"`
	URL      string             `json:"url"`
	Filename string             `json:"filename"`
	Picker   []cobaltPickerItem `json:"picker"`
	Text     string             `json:"text"`
	Error    *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (r *cobaltResponse) errorText() string {
	if r.Text != "" {
		return r.Text
	}
	if r.Error != nil && r.Error.Code != "" {
		return r.Error.Code
	}
	return "cobalt returned an error without details"
}

// CobaltProvider resolves media through a Cobalt instance and downloads the
// resulting direct URL
type CobaltProvider struct {
	cfg     domain.CobaltConfig
	client  *http.Client
	fetcher *Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewCobaltProvider creates the cloud provider
func NewCobaltProvider(cfg domain.CobaltConfig, client *http.Client, fetcher *Fetcher, logger *zap.Logger) *CobaltProvider {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CobaltProvider{
		cfg:     cfg,
		client:  client,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// ID implements domain.Provider
func (p *CobaltProvider) ID() domain.ProviderID {
	return domain.ProviderCobalt
}

// Fetch implements domain.Provider
func (p *CobaltProvider) Fetch(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	resolved, failure := p.resolve(ctx, req)
	if failure != nil {
		return failure
	}

	switch resolved.Status {
	case "redirect", "stream", "tunnel":
		if resolved.URL == "" {
			return domain.NewFailure(domain.KindEmptyContent, "cobalt %s response carried no url", resolved.Status)
		}
		if req.Delivery == domain.DeliveryURL {
			return &domain.DirectURL{URL: resolved.URL, Filename: SanitizeFilename(resolved.Filename)}
		}
		return p.download(ctx, req, hint, resolved.URL, resolved.Filename)

	case "picker":
		urls := make([]string, 0, len(resolved.Picker))
		for _, item := range resolved.Picker {
			if item.URL != "" {
				urls = append(urls, item.URL)
			}
		}
		if len(urls) == 0 {
			return domain.NewFailure(domain.KindEmptyContent, "cobalt picker response carried no urls")
		}
		return &domain.MultiURL{URLs: urls}

	case "error":
		text := resolved.errorText()
		return domain.NewFailure(ClassifyCobaltError(0, text), "cobalt: %s", text)

	default:
		return domain.NewFailure(domain.KindUnknown, "unexpected cobalt status %q", resolved.Status)
	}
}

func (p *CobaltProvider) resolve(ctx context.Context, req domain.MediaRequest) (*cobaltResponse, *domain.Failure) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "failed to encode cobalt request: %v", err)
	}

	endpoint := strings.TrimRight(p.cfg.APIURL, "/") + "/"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "invalid cobalt endpoint: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Api-Key "+p.cfg.APIKey)
	}

	p.logger.Info("Cobalt request",
		zap.String("url", req.URL),
		zap.String("quality", string(req.Quality)),
		zap.Bool("audio_only", req.WantAudioOnly))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportFailure(ctx, err)
	}

	var decoded cobaltResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewFailure(domain.KindRateLimited, "cobalt rate limit exceeded (retry after %s)", retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		text := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Status == "error" {
			text = decoded.errorText()
		}
		return nil, domain.NewFailure(ClassifyCobaltError(resp.StatusCode, text), "cobalt HTTP %d: %s", resp.StatusCode, text)
	}
	if decodeErr != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "invalid cobalt response: %v", decodeErr)
	}

	p.logger.Debug("Cobalt response", zap.String("status", decoded.Status))
	return &decoded, nil
}

func (p *CobaltProvider) buildRequest(req domain.MediaRequest) cobaltRequest {
	quality := string(req.Quality)
	if quality == "" {
		quality = p.cfg.DefaultQuality
	}
	body := cobaltRequest{
		URL:             req.URL,
		VideoQuality:    quality,
		FilenameStyle:   "classic",
		DownloadMode:    "auto",
		VideoCodec:      p.cfg.VideoCodec,
		AudioBitrate:    p.cfg.AudioBitrate,
		DisableMetadata: p.cfg.DisableMetadata,
	}
	if req.WantAudioOnly {
		body.DownloadMode = "audio"
		body.AudioFormat = string(req.AudioFormat)
	}
	return body
}

func (p *CobaltProvider) download(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint, mediaURL, suggested string) domain.ProviderResult {
	media, failure := p.fetcher.Fetch(ctx, mediaURL, req.URL)
	if failure != nil {
		return failure
	}

	ext := "mp4"
	switch {
	case req.WantAudioOnly:
		ext = string(req.AudioFormat)
	case strings.Contains(strings.ToLower(media.ContentType), "webm"):
		ext = "webm"
	}
	if failure := validateDownloaded(media.Data, ext); failure != nil {
		return failure
	}

	filename := FilenameFromContentDisposition(media.ContentDisposition)
	if filename == "" && suggested != "" {
		filename = SanitizeFilename(suggested)
	}
	if filename == "" {
		filename = TimestampedFilename(string(hint.Platform), ext, p.now())
	}

	contentType := media.ContentType
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = DetectContentType(media.Data)
	}
	return domain.NewBinary(media.Data, filename, contentType)
}

// validateDownloaded runs the container check unless the payload sniffs as
// an image or audio file, which providers legitimately return for photo posts
// and audio-only jobs
func validateDownloaded(data []byte, ext string) *domain.Failure {
	if len(data) > 0 {
		sniffed := DetectContentType(data)
		if strings.HasPrefix(sniffed, "image/") || strings.HasPrefix(sniffed, "audio/") {
			return nil
		}
	}
	return ValidateContent(data, ext)
}

func retryAfter(resp *http.Response) string {
	if v := resp.Header.Get("Retry-After"); v != "" {
		return v
	}
	return "unknown"
}
