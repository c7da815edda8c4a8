package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// Notification methods
const (
	NotifyOSAScript  = "osascript"
	NotifyNotifySend = "notify-send"
)

const notifyTimeout = 5 * time.Second

// DesktopNotifier shows desktop notifications when acquisitions finish
type DesktopNotifier struct {
	method string
	runner CommandRunner
	logger *zap.Logger
}

// NewDesktopNotifier creates a notifier. An empty method picks the native
// tool for the current OS; unsupported systems get a no-op notifier.
func NewDesktopNotifier(method string, runner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if method == "" {
		switch runtime.GOOS {
		case "darwin":
			method = NotifyOSAScript
		case "linux", "freebsd", "openbsd":
			method = NotifyNotifySend
		}
	}
	return &DesktopNotifier{method: method, runner: runner, logger: logger}
}

// Send shows one notification
func (n *DesktopNotifier) Send(ctx context.Context, title, message string) error {
	var spec CommandSpec
	switch n.method {
	case NotifyOSAScript:
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(message), appleScriptString(title))
		spec = CommandSpec{Binary: "osascript", Args: []string{"-e", script}}
	case NotifyNotifySend:
		spec = CommandSpec{Binary: "notify-send", Args: []string{title, message}}
	default:
		n.logger.Debug("No notification method, skipping", zap.String("title", title))
		return nil
	}
	spec.Timeout = notifyTimeout
	spec.Label = "notify"

	if _, err := n.runner.Run(ctx, spec); err != nil {
		n.logger.Warn("Failed to send notification", zap.String("method", n.method), zap.Error(err))
		return err
	}
	return nil
}

// NotifyAcquisition reports a finished acquisition
func (n *DesktopNotifier) NotifyAcquisition(ctx context.Context, acq *domain.Acquisition) error {
	if acq.Status == domain.StatusSucceeded {
		name := acq.Filename
		if name == "" {
			name = truncateString(acq.URL, 40)
		}
		return n.Send(ctx, "Media ready", fmt.Sprintf("%s via %s (%s)", name, acq.Provider, acq.Platform))
	}
	return n.Send(ctx, "Media failed", fmt.Sprintf("%s: %s (%s)", truncateString(acq.URL, 40), acq.ErrorKind, acq.Platform))
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
