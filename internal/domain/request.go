package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Quality is the requested video quality
type Quality string

const (
	QualityMax  Quality = "max"
	Quality2160 Quality = "2160"
	Quality1440 Quality = "1440"
	Quality1080 Quality = "1080"
	Quality720  Quality = "720"
	Quality480  Quality = "480"
	Quality360  Quality = "360"
)

// OutputFormat is the requested container format
type OutputFormat string

const (
	FormatMP4  OutputFormat = "mp4"
	FormatWebM OutputFormat = "webm"
	FormatBest OutputFormat = "best"
)

// AudioFormat is the requested audio container when only audio is wanted
type AudioFormat string

const (
	AudioMP3 AudioFormat = "mp3"
	AudioM4A AudioFormat = "m4a"
	AudioWAV AudioFormat = "wav"
)

// Delivery selects what shape of result the caller wants back
type Delivery string

const (
	DeliveryBytes  Delivery = "bytes"  // Binary payload
	DeliveryURL    Delivery = "url"    // Direct media URL(s), no byte download
	DeliveryStream Delivery = "stream" // Downloader stdout, nothing written to disk
)

// Mode selects the provider family
type Mode string

const (
	ModeMedia   Mode = "media"
	ModeGallery Mode = "gallery"
)

// MediaRequest describes one acquisition. Treat it as immutable once built.
type MediaRequest struct {
	URL           string       `json:"url"`
	WantAudioOnly bool         `json:"audio_only"`
	AudioFormat   AudioFormat  `json:"audio_format,omitempty"`
	Quality       Quality      `json:"quality"`
	OutputFormat  OutputFormat `json:"format"`
	Language      string       `json:"language,omitempty"`
	Delivery      Delivery     `json:"delivery"`
	Mode          Mode         `json:"mode"`
	Merge         bool         `json:"merge,omitempty"`
}

// RequestOption customizes a MediaRequest at construction time
type RequestOption func(*MediaRequest)

// WithAudioOnly requests an audio-only result in the given format
func WithAudioOnly(format AudioFormat) RequestOption {
	return func(r *MediaRequest) {
		r.WantAudioOnly = true
		if format != "" {
			r.AudioFormat = format
		}
	}
}

// WithQuality sets the requested quality
func WithQuality(q Quality) RequestOption {
	return func(r *MediaRequest) {
		if q != "" {
			r.Quality = q
		}
	}
}

// WithFormat sets the requested container format
func WithFormat(f OutputFormat) RequestOption {
	return func(r *MediaRequest) {
		if f != "" {
			r.OutputFormat = f
		}
	}
}

// WithDelivery sets the result delivery shape
func WithDelivery(d Delivery) RequestOption {
	return func(r *MediaRequest) {
		if d != "" {
			r.Delivery = d
		}
	}
}

// WithMode sets the provider family
func WithMode(m Mode) RequestOption {
	return func(r *MediaRequest) {
		if m != "" {
			r.Mode = m
		}
	}
}

// WithLanguage sets the transcription language hint
func WithLanguage(lang string) RequestOption {
	return func(r *MediaRequest) {
		r.Language = lang
	}
}

// WithMerge asks the CLI downloader to merge separate best video and audio streams
func WithMerge(merge bool) RequestOption {
	return func(r *MediaRequest) {
		r.Merge = merge
	}
}

// NewMediaRequest validates rawURL and builds a request with defaults applied
func NewMediaRequest(rawURL string, opts ...RequestOption) (MediaRequest, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return MediaRequest{}, err
	}

	req := MediaRequest{
		URL:          rawURL,
		AudioFormat:  AudioMP3,
		Quality:      QualityMax,
		OutputFormat: FormatMP4,
		Delivery:     DeliveryBytes,
		Mode:         ModeMedia,
	}
	for _, opt := range opts {
		opt(&req)
	}

	if err := req.Validate(); err != nil {
		return MediaRequest{}, err
	}
	return req, nil
}

// Validate checks the enumerated fields of the request
func (r MediaRequest) Validate() error {
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	switch r.OutputFormat {
	case FormatMP4, FormatWebM, FormatBest:
	default:
		return fmt.Errorf("invalid output format: %q", r.OutputFormat)
	}
	switch r.AudioFormat {
	case AudioMP3, AudioM4A, AudioWAV:
	default:
		return fmt.Errorf("invalid audio format: %q", r.AudioFormat)
	}
	switch r.Delivery {
	case DeliveryBytes, DeliveryURL, DeliveryStream:
	default:
		return fmt.Errorf("invalid delivery: %q", r.Delivery)
	}
	switch r.Mode {
	case ModeMedia, ModeGallery:
	default:
		return fmt.Errorf("invalid mode: %q", r.Mode)
	}
	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %q", rawURL)
	}
	return nil
}

// Platform classifies the request URL
func (r MediaRequest) Platform() Platform {
	return Classify(r.URL)
}

// TargetExtension returns the file extension the request is expected to produce
func (r MediaRequest) TargetExtension() string {
	if r.WantAudioOnly {
		return string(r.AudioFormat)
	}
	if r.OutputFormat == FormatWebM {
		return "webm"
	}
	return "mp4"
}
