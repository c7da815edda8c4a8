package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure
type ErrorKind string

const (
	KindRateLimited         ErrorKind = "rate_limited"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindEmptyContent        ErrorKind = "empty_content"
	KindZeroLength          ErrorKind = "zero_length"
	KindPlatformBlocked     ErrorKind = "platform_blocked"
	KindPrivateOrRemoved    ErrorKind = "private_or_removed"
	KindTimeout             ErrorKind = "timeout"
	KindBinaryNotFound      ErrorKind = "binary_not_found"
	KindUnknown             ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may be retried with the
// next provider. The answer is fixed per kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindPlatformBlocked, KindPrivateOrRemoved:
		return false
	default:
		return true
	}
}

// ProviderResult is the outcome of a single provider attempt. It is exactly
// one of *Binary, *DirectURL, *MultiURL or *Failure.
type ProviderResult interface {
	isProviderResult()
}

// Binary is a fully downloaded payload
type Binary struct {
	Data        []byte `json:"-"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// DirectURL points at a single downloadable media file
type DirectURL struct {
	URL          string `json:"url"`
	Filename     string `json:"filename,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// MultiURL holds several media URLs for one source, in upstream order
type MultiURL struct {
	URLs []string `json:"urls"`
}

// Failure is a classified provider failure
type Failure struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (*Binary) isProviderResult()    {}
func (*DirectURL) isProviderResult() {}
func (*MultiURL) isProviderResult()  {}
func (*Failure) isProviderResult()   {}

// NewBinary wraps data, deriving SizeBytes from its length
func NewBinary(data []byte, filename, contentType string) *Binary {
	return &Binary{
		Data:        data,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}
}

// NewFailure builds a failure whose retryable flag follows its kind
func NewFailure(kind ErrorKind, format string, args ...interface{}) *Failure {
	return &Failure{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: kind.Retryable(),
	}
}

// Error implements error
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// AsFailure extracts a *Failure from err, classifying anything else as Unknown
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(KindUnknown, "%s", err.Error())
}

// Canonical returns the primary URL of a successful URL-shaped result
func (m *MultiURL) Canonical() string {
	if len(m.URLs) == 0 {
		return ""
	}
	return m.URLs[0]
}

// Auxiliary returns every URL after the canonical one
func (m *MultiURL) Auxiliary() []string {
	if len(m.URLs) < 2 {
		return nil
	}
	return m.URLs[1:]
}

// IsSuccess reports whether the result terminates a chain successfully
func IsSuccess(result ProviderResult) bool {
	switch r := result.(type) {
	case *Binary:
		return r != nil
	case *DirectURL:
		return r != nil && r.URL != ""
	case *MultiURL:
		return r != nil && len(r.URLs) > 0
	default:
		return false
	}
}
