package infrastructure

import (
	"bufio"
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

var cookieJarHeaders = []string{"# Netscape", "# HTTP Cookie File"}

// cookieEntry caches the validation result of one jar at one mtime
type cookieEntry struct {
	mtime time.Time
	size  int64
	valid bool
}

// CookieStore picks a Netscape cookie jar for a URL and renders it as CLI
// arguments. Validation results are cached per path until the file changes.
type CookieStore struct {
	rules     []domain.CookieRule
	fallbacks []string
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]cookieEntry
}

// NewCookieStore creates a store for cfg
func NewCookieStore(cfg domain.CookiesConfig, logger *zap.Logger) *CookieStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CookieStore{
		rules:     cfg.Domains,
		fallbacks: cfg.Fallbacks,
		logger:    logger,
		cache:     make(map[string]cookieEntry),
	}
}

// ArgsFor returns ["--cookies", path] for the first valid jar that applies to
// rawURL, or nil when none does.
func (s *CookieStore) ArgsFor(rawURL string) []string {
	path := s.PathFor(rawURL)
	if path == "" {
		return nil
	}
	return []string{"--cookies", path}
}

// PathFor returns the first valid cookie jar path for rawURL, or ""
func (s *CookieStore) PathFor(rawURL string) string {
	for _, candidate := range s.Candidates(rawURL) {
		if s.isValid(candidate) {
			return candidate
		}
	}
	return ""
}

// Candidates lists jar paths for rawURL: matching domain rules with the most
// specific domain first, then the generic fallbacks.
func (s *CookieStore) Candidates(rawURL string) []string {
	host := hostOf(rawURL)

	matched := make([]domain.CookieRule, 0, len(s.rules))
	for _, rule := range s.rules {
		d := strings.ToLower(rule.Domain)
		if host == d || strings.HasSuffix(host, "."+d) {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Domain) > len(matched[j].Domain)
	})

	var candidates []string
	for _, rule := range matched {
		for _, p := range rule.Paths {
			candidates = append(candidates, absPath(p))
		}
	}
	for _, p := range s.fallbacks {
		candidates = append(candidates, absPath(p))
	}
	return candidates
}

// JarStatus reports one configured cookie jar
type JarStatus struct {
	Domain string `json:"domain,omitempty"` // empty for generic fallbacks
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Valid  bool   `json:"valid"`
}

// Status lists every configured jar with its presence and validity
func (s *CookieStore) Status() []JarStatus {
	var out []JarStatus
	add := func(d, p string) {
		path := absPath(p)
		_, err := os.Stat(path)
		out = append(out, JarStatus{Domain: d, Path: path, Exists: err == nil, Valid: s.isValid(path)})
	}
	for _, rule := range s.rules {
		for _, p := range rule.Paths {
			add(rule.Domain, p)
		}
	}
	for _, p := range s.fallbacks {
		add("", p)
	}
	return out
}

// Reset clears the validation cache
func (s *CookieStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cookieEntry)
}

func (s *CookieStore) isValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	s.mu.Lock()
	entry, ok := s.cache[path]
	s.mu.Unlock()
	if ok && entry.mtime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.valid
	}

	valid := s.validate(path, info.Size())

	s.mu.Lock()
	s.cache[path] = cookieEntry{mtime: info.ModTime(), size: info.Size(), valid: valid}
	s.mu.Unlock()
	return valid
}

func (s *CookieStore) validate(path string, size int64) bool {
	if size == 0 {
		s.logger.Warn("Skipping empty cookie file", zap.String("path", path))
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn("Cannot read cookie file", zap.String("path", path), zap.Error(err))
		return false
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := bufio.NewReader(file).Read(head)
	trimmed := bytes.TrimLeft(head[:n], " \t\r\n\ufeff")
	for _, header := range cookieJarHeaders {
		if bytes.HasPrefix(trimmed, []byte(header)) {
			return true
		}
	}
	s.logger.Warn("Skipping cookie file without Netscape header", zap.String("path", path))
	return false
}

// hostOf returns the lowercased host of rawURL, or the lowercased input when
// it does not parse
func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}

func absPath(p string) string {
	p = expandPath(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
