package infrastructure

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxFilenameLength  = 200
	maxUsernameLength  = 50
	maxCarouselNameLen = 100
	defaultFilename    = "video"
)

// SanitizeFilename makes name safe on every common filesystem: reserved
// characters and control characters become underscores, leading and trailing
// dots or spaces are trimmed and the result is capped at 200 bytes.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	clean := strings.Trim(b.String(), ". ")
	if len(clean) > maxFilenameLength {
		clean = truncateKeepingExt(clean, maxFilenameLength)
	}
	if clean == "" {
		return defaultFilename
	}
	return clean
}

// truncateKeepingExt cuts name to at most limit bytes, preserving a short
// extension and never splitting a UTF-8 sequence
func truncateKeepingExt(name string, limit int) string {
	ext := filepath.Ext(name)
	if len(ext) > 10 {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	budget := limit - len(ext)
	for len(base) > budget {
		_, size := lastRune(base)
		base = base[:len(base)-size]
	}
	return strings.TrimRight(base, ". ") + ext
}

func lastRune(s string) (rune, int) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i]&0xC0 != 0x80 {
			return rune(s[i]), len(s) - i
		}
	}
	return 0, 1
}

// FilenameFromContentDisposition extracts the filename parameter, preferring
// the RFC 5987 filename* form. Returns "" when absent.
func FilenameFromContentDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	if name := params["filename"]; name != "" {
		return SanitizeFilename(filepath.Base(name))
	}
	return ""
}

// TimestampedFilename builds "<prefix>_YYYYmmdd_HHMMSS.<ext>"
func TimestampedFilename(prefix, ext string, now time.Time) string {
	if prefix == "" {
		prefix = defaultFilename
	}
	return SanitizeFilename(fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), strings.TrimPrefix(ext, ".")))
}

var (
	instagramPostOwner    = regexp.MustCompile(`instagram\.com/([^/]+)/(reel|p|stories|tv)/`)
	instagramProfileOwner = regexp.MustCompile(`instagram\.com/([^/?#]+)/?(?:\?|#|$)`)
	instagramReserved     = map[string]bool{
		"reel": true, "p": true, "stories": true, "tv": true, "explore": true, "accounts": true,
	}
	usernameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// InstagramUsername extracts the account name from an Instagram URL, or
// "instagram" when the URL does not carry one
func InstagramUsername(rawURL string) string {
	for _, re := range []*regexp.Regexp{instagramPostOwner, instagramProfileOwner} {
		m := re.FindStringSubmatch(rawURL)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimPrefix(m[1], "@")
		if instagramReserved[strings.ToLower(name)] {
			continue
		}
		name = strings.Trim(usernameUnsafe.ReplaceAllString(name, "_"), "._")
		if len(name) > maxUsernameLength {
			name = name[:maxUsernameLength]
		}
		if name != "" {
			return name
		}
	}
	return "instagram"
}

var carouselImageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true}

// CarouselFilename names the index-th (1-based) image of an Instagram
// carousel: instagram_<user>_<NN>.<ext>
func CarouselFilename(rawURL string, index int, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !carouselImageExts[ext] {
		ext = "jpg"
	}
	name := fmt.Sprintf("instagram_%s_%02d.%s", InstagramUsername(rawURL), index, ext)
	if len(name) > maxCarouselNameLen {
		name = truncateKeepingExt(name, maxCarouselNameLen)
	}
	return SanitizeFilename(name)
}

// Workspace hands out per-attempt temporary directories under one root
type Workspace struct {
	root   string
	logger *zap.Logger
}

// NewWorkspace creates a workspace rooted at root
func NewWorkspace(root string, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{root: expandPath(root), logger: logger}
}

// Root returns the workspace root directory
func (w *Workspace) Root() string {
	return w.root
}

// AttemptDir creates a fresh directory for one provider attempt. The caller
// must invoke the returned cleanup once the attempt is over.
func (w *Workspace) AttemptDir(label string) (string, func(), error) {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return "", func() {}, fmt.Errorf("failed to create workspace root: %w", err)
	}
	prefix := SanitizeFilename(label)
	dir := filepath.Join(w.root, fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8]))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", func() {}, fmt.Errorf("failed to create attempt directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			w.logger.Warn("Failed to remove attempt directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	return dir, cleanup, nil
}

// Sweep removes entries under the root older than maxAge and returns how many
// were removed
func (w *Workspace) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(w.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			w.logger.Warn("Failed to remove stale workspace entry", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
