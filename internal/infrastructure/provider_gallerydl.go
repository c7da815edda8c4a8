package infrastructure

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

var (
	blockedGalleryExts = map[string]bool{"json": true, "txt": true, "html": true, "xml": true}
	allowedGalleryExts = map[string]bool{
		"mp4": true, "webm": true, "mov": true, "m4v": true, "mp3": true, "m4a": true, "aac": true,
		"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "m3u8": true, "mpd": true,
	}
	instagramCDNs = []string{"cdninstagram.com", "fbcdn.net"}
	httpURLRe     = regexp.MustCompile(`https?://\S+`)
	digitRunRe    = regexp.MustCompile(`\d+|\D+`)
)

// GalleryItem is one downloaded gallery file in display order
type GalleryItem struct {
	Path     string
	Name     string
	Position int // 1-based position from metadata, 0 when unknown
}

// GalleryDLProvider drives the gallery-dl CLI
type GalleryDLProvider struct {
	resolver *BinaryResolver
	cookies  *CookieStore
	runner   CommandRunner
	timeouts domain.TimeoutsConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewGalleryDLProvider creates the gallery provider
func NewGalleryDLProvider(resolver *BinaryResolver, cookies *CookieStore, runner CommandRunner, timeouts domain.TimeoutsConfig, logger *zap.Logger) *GalleryDLProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryDLProvider{
		resolver: resolver,
		cookies:  cookies,
		runner:   runner,
		timeouts: timeouts,
		logger:   logger,
		now:      time.Now,
	}
}

// ID implements domain.Provider
func (p *GalleryDLProvider) ID() domain.ProviderID {
	return domain.ProviderGalleryDL
}

// Fetch implements domain.Provider. URL delivery lists direct media URLs;
// otherwise the gallery is downloaded and returned as the single file or a
// zip of every item in order.
func (p *GalleryDLProvider) Fetch(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	if req.Delivery == domain.DeliveryURL {
		urls, failure := p.ListURLs(ctx, req.URL)
		if failure != nil {
			return failure
		}
		return &domain.MultiURL{URLs: urls}
	}

	items, failure := p.Collect(ctx, req.URL, hint.WorkDir)
	if failure != nil {
		return failure
	}

	if len(items) == 1 {
		data, err := os.ReadFile(items[0].Path)
		if err != nil {
			return domain.NewFailure(domain.KindUnknown, "failed to read %s: %v", items[0].Name, err)
		}
		if len(data) == 0 {
			return domain.NewFailure(domain.KindEmptyContent, "gallery item %s is empty", items[0].Name)
		}
		return domain.NewBinary(data, SanitizeFilename(items[0].Name), DetectContentType(data))
	}

	archive, err := ZipItems(items)
	if err != nil {
		return domain.NewFailure(domain.KindUnknown, "failed to build gallery archive: %v", err)
	}
	platform := hint.Platform
	if platform == "" {
		platform = req.Platform()
	}
	filename := TimestampedFilename("gallery_"+string(platform), "zip", p.now())
	return domain.NewBinary(archive, filename, "application/zip")
}

func (p *GalleryDLProvider) baseArgs(rawURL string) []string {
	if p.cookies == nil {
		return nil
	}
	return p.cookies.ArgsFor(rawURL)
}

// ListURLs runs gallery-dl in -g mode and returns the filtered media URLs
func (p *GalleryDLProvider) ListURLs(ctx context.Context, rawURL string) ([]string, *domain.Failure) {
	loc := p.resolver.Resolve(ToolGalleryDL, domain.Classify(rawURL))
	args := append([]string{"-g"}, p.baseArgs(rawURL)...)
	args = append(args, rawURL)

	out, err := p.runner.Run(ctx, CommandSpec{
		Binary:  loc.Path,
		Args:    args,
		Timeout: p.timeouts.URLQuery,
		Label:   "gallery-dl urls " + rawURL,
	})
	if err != nil {
		return nil, ClassifyCommandError(err, stderrOf(out), loc)
	}

	urls := FilterMediaURLs(string(out.Stdout))
	if len(urls) == 0 {
		return nil, domain.NewFailure(domain.KindEmptyContent, "gallery-dl returned no media urls")
	}
	return urls, nil
}

// Collect downloads the gallery into dir and returns its media files ordered
// by carousel position, then by natural filename order
func (p *GalleryDLProvider) Collect(ctx context.Context, rawURL, dir string) ([]GalleryItem, *domain.Failure) {
	if dir == "" {
		return nil, domain.NewFailure(domain.KindUnknown, "gallery download needs a work directory")
	}
	loc := p.resolver.Resolve(ToolGalleryDL, domain.Classify(rawURL))
	args := append(p.baseArgs(rawURL), "-d", dir, "--write-metadata", rawURL)

	out, err := p.runner.Run(ctx, CommandSpec{
		Binary:  loc.Path,
		Args:    args,
		Timeout: p.timeouts.Gallery,
		Label:   "gallery-dl " + rawURL,
	})
	if err != nil {
		return nil, ClassifyCommandError(err, stderrOf(out), loc)
	}

	items, scanErr := OrderedGalleryItems(dir)
	if scanErr != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "failed to scan gallery directory: %v", scanErr)
	}
	if len(items) == 0 {
		return nil, domain.NewFailure(domain.KindEmptyContent, "gallery-dl finished without producing files")
	}
	p.logger.Debug("gallery-dl collected items", zap.Int("count", len(items)))
	return items, nil
}

// OrderedGalleryItems lists media files under dir. Items whose sidecar
// <file>.json carries num, count or position come first in that order; the
// rest follow in natural filename order.
func OrderedGalleryItems(dir string) ([]GalleryItem, error) {
	files, err := listMediaFiles(dir)
	if err != nil {
		return nil, err
	}
	items := make([]GalleryItem, 0, len(files))
	for _, f := range files {
		items = append(items, GalleryItem{
			Path:     f,
			Name:     filepath.Base(f),
			Position: sidecarPosition(f + ".json"),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.Position > 0 && b.Position > 0:
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.Name < b.Name
		case a.Position > 0:
			return true
		case b.Position > 0:
			return false
		default:
			return naturalLess(a.Name, b.Name)
		}
	})
	return items, nil
}

func sidecarPosition(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return 0
	}
	for _, key := range []string{"num", "count", "position"} {
		switch v := meta[key].(type) {
		case float64:
			if v > 0 {
				return int(v)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// naturalLess compares names treating digit runs as numbers, so img2 < img10
func naturalLess(a, b string) bool {
	pa, pb := digitRunRe.FindAllString(a, -1), digitRunRe.FindAllString(b, -1)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			continue
		}
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA == nil && errB == nil {
			if na != nb {
				return na < nb
			}
			continue
		}
		return pa[i] < pb[i]
	}
	return len(pa) < len(pb)
}

// FilterMediaURLs extracts media URLs from gallery-dl -g output: ytdl: lines
// are skipped, leading pipes stripped, duplicates and non-media URLs dropped.
func FilterMediaURLs(output string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "ytdl:") {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "|"))

		candidate := httpURLRe.FindString(line)
		if candidate == "" {
			continue
		}
		candidate = strings.TrimRight(candidate, `|,"'`)
		if seen[candidate] || !looksLikeMedia(candidate) {
			continue
		}
		seen[candidate] = true
		urls = append(urls, candidate)
	}
	return urls
}

func looksLikeMedia(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Host)
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")

	if blockedGalleryExts[ext] {
		return false
	}
	if allowedGalleryExts[ext] {
		return true
	}
	if strings.Contains(host, "instagram.com") && !containsAny(host, instagramCDNs) {
		return false
	}
	if strings.Contains(host, "tiktok.com") && ext == "" {
		return false
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ZipItems archives items in order. Entry names carry a two-digit position
// prefix so unzip tools list them in carousel order.
func ZipItems(items []GalleryItem) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, item := range items {
		if err := addZipEntry(zw, fmt.Sprintf("%02d_%s", i+1, SanitizeFilename(item.Name)), item.Path); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addZipEntry(zw *zip.Writer, name, source string) error {
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func stderrOf(out *CommandOutput) []byte {
	if out == nil {
		return nil
	}
	return out.Stderr
}
