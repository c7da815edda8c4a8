package infrastructure

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/yourusername/mediabridge-go/internal/domain"
)

type classifierRule struct {
	substring string
	kind      domain.ErrorKind
}

// cliErrorRules maps downloader stderr fragments to error kinds. Order
// matters: the first rule whose substring occurs in the lowercased text wins.
// Status codes only match next to their HTTP wording so digits inside
// video IDs never trigger them.
var cliErrorRules = []classifierRule{
	{"error 429", domain.KindRateLimited},
	{"status code 429", domain.KindRateLimited},
	{"status 429", domain.KindRateLimited},
	{"too many requests", domain.KindRateLimited},
	{"rate limit", domain.KindRateLimited},
	{"rate-limit", domain.KindRateLimited},
	{"requested format is not available", domain.KindUnknown},
	{"ip address is blocked", domain.KindPlatformBlocked},
	{"sign in to confirm", domain.KindPlatformBlocked},
	{"blocked", domain.KindPlatformBlocked},
	{"private", domain.KindPrivateOrRemoved},
	{"video unavailable", domain.KindPrivateOrRemoved},
	{"has been removed", domain.KindPrivateOrRemoved},
	{"not available", domain.KindPrivateOrRemoved},
	{"account has been terminated", domain.KindPrivateOrRemoved},
	{"shut down", domain.KindUpstreamUnavailable},
	{"unable to extract", domain.KindUpstreamUnavailable},
	{"unable to download", domain.KindUpstreamUnavailable},
	{"connection refused", domain.KindUpstreamUnavailable},
	{"error 502", domain.KindUpstreamUnavailable},
	{"error 503", domain.KindUpstreamUnavailable},
	{"status code 502", domain.KindUpstreamUnavailable},
	{"status code 503", domain.KindUpstreamUnavailable},
	{"bad gateway", domain.KindUpstreamUnavailable},
	{"service unavailable", domain.KindUpstreamUnavailable},
	{"timed out", domain.KindTimeout},
	{"timeout", domain.KindTimeout},
	{"fetch.fail", domain.KindTimeout},
	{"empty", domain.KindEmptyContent},
}

var (
	// "[extractor] <id>: " as yt-dlp and gallery-dl prefix their messages
	extractorPrefix = regexp.MustCompile(`^(error:\s*)?\[[^\]]*\]\s*(\S+:\s+)?`)
	urlPattern      = regexp.MustCompile(`https?://\S+`)
)

// ClassifyMessage maps free-form error text to an error kind using the
// ordered rule table. The extractor prefix and any URLs are dropped first,
// since they carry caller input. Unmatched text is Unknown.
func ClassifyMessage(text string) domain.ErrorKind {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = extractorPrefix.ReplaceAllString(lower, "")
	lower = urlPattern.ReplaceAllString(lower, "")
	for _, rule := range cliErrorRules {
		if strings.Contains(lower, rule.substring) {
			return rule.kind
		}
	}
	return domain.KindUnknown
}

// ClassifyCommandError turns a failed external command into a Failure.
// BinaryNotFound is reported only when the resolver fell back to the bare
// tool name and the OS could not find it either.
func ClassifyCommandError(err error, stderr []byte, loc Location) *domain.Failure {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCommandTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewFailure(domain.KindTimeout, "%v", err)
	}
	if loc.Bare && isMissingBinary(err) {
		return domain.NewFailure(domain.KindBinaryNotFound, "%s not found", loc.Path)
	}

	message := lastErrorLine(stderr)
	if message == "" {
		message = err.Error()
	}
	return domain.NewFailure(ClassifyMessage(message), "%s", message)
}

// ClassifyCobaltError maps an error reported by the cloud API
func ClassifyCobaltError(statusCode int, text string) domain.ErrorKind {
	lower := strings.ToLower(text)
	switch {
	case statusCode == 429 || strings.Contains(lower, "rate_exceeded") || strings.Contains(lower, "rate limit"):
		return domain.KindRateLimited
	case strings.Contains(lower, "shut down") || strings.Contains(lower, "v7"):
		return domain.KindUpstreamUnavailable
	default:
		return domain.KindUnknown
	}
}

// lastErrorLine picks the most informative line from downloader stderr:
// the last line starting with "ERROR", else the last non-empty line.
func lastErrorLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR") {
			return line
		}
		if last == "" {
			last = line
		}
	}
	return last
}
