package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

const netscapeJar = "# Netscape HTTP Cookie File\n.tiktok.com\tTRUE\t/\tTRUE\t0\tsid\tabc\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCookieStore_ArgsFor(t *testing.T) {
	dir := t.TempDir()
	tiktok := filepath.Join(dir, "tiktok.txt")
	generic := filepath.Join(dir, "cookies.txt")
	empty := filepath.Join(dir, "empty.txt")
	malformed := filepath.Join(dir, "bad.txt")

	writeFile(t, tiktok, netscapeJar)
	writeFile(t, generic, "# HTTP Cookie File\n")
	writeFile(t, empty, "")
	writeFile(t, malformed, "sid=abc; path=/\n")

	tests := []struct {
		name     string
		cfg      domain.CookiesConfig
		url      string
		expected []string
	}{
		{
			name: "domain file beats fallback",
			cfg: domain.CookiesConfig{
				Domains:   []domain.CookieRule{{Domain: "tiktok.com", Paths: []string{tiktok}}},
				Fallbacks: []string{generic},
			},
			url:      "https://www.tiktok.com/@user/video/1",
			expected: []string{"--cookies", tiktok},
		},
		{
			name: "fallback for unmatched host",
			cfg: domain.CookiesConfig{
				Domains:   []domain.CookieRule{{Domain: "tiktok.com", Paths: []string{tiktok}}},
				Fallbacks: []string{generic},
			},
			url:      "https://vimeo.com/1",
			expected: []string{"--cookies", generic},
		},
		{
			name: "empty file is skipped",
			cfg: domain.CookiesConfig{
				Domains:   []domain.CookieRule{{Domain: "tiktok.com", Paths: []string{empty}}},
				Fallbacks: []string{generic},
			},
			url:      "https://tiktok.com/@user/video/1",
			expected: []string{"--cookies", generic},
		},
		{
			name: "malformed file is skipped",
			cfg: domain.CookiesConfig{
				Fallbacks: []string{malformed},
			},
			url:      "https://tiktok.com/@user/video/1",
			expected: nil,
		},
		{
			name:     "only empty candidates",
			cfg:      domain.CookiesConfig{Fallbacks: []string{empty, filepath.Join(dir, "missing.txt")}},
			url:      "https://youtube.com/watch?v=1",
			expected: nil,
		},
		{
			name: "suffix match requires a dot boundary",
			cfg: domain.CookiesConfig{
				Domains: []domain.CookieRule{{Domain: "x.com", Paths: []string{tiktok}}},
			},
			url:      "https://notx.com/a",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewCookieStore(tt.cfg, nil)
			assert.Equal(t, tt.expected, store.ArgsFor(tt.url))
		})
	}
}

func TestCookieStore_MostSpecificDomainFirst(t *testing.T) {
	store := NewCookieStore(domain.CookiesConfig{
		Domains: []domain.CookieRule{
			{Domain: "google.com", Paths: []string{"/c/google.txt"}},
			{Domain: "music.google.com", Paths: []string{"/c/music.txt"}},
		},
		Fallbacks: []string{"/c/all.txt"},
	}, nil)

	got := store.Candidates("https://music.google.com/x")
	assert.Equal(t, []string{"/c/music.txt", "/c/google.txt", "/c/all.txt"}, got)
}

func TestCookieStore_RevalidatesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	writeFile(t, path, "")
	store := NewCookieStore(domain.CookiesConfig{Fallbacks: []string{path}}, nil)

	assert.Nil(t, store.ArgsFor("https://example.com"))

	writeFile(t, path, netscapeJar)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Equal(t, []string{"--cookies", path}, store.ArgsFor("https://example.com"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.tiktok.com", hostOf("https://WWW.TikTok.com/@a"))
	assert.Equal(t, "not a url", hostOf("Not A URL"))
}

func TestCookieStore_Status(t *testing.T) {
	dir := t.TempDir()
	tiktok := filepath.Join(dir, "tiktok.txt")
	bad := filepath.Join(dir, "bad.txt")
	writeFile(t, tiktok, netscapeJar)
	writeFile(t, bad, "not a jar")

	store := NewCookieStore(domain.CookiesConfig{
		Domains:   []domain.CookieRule{{Domain: "tiktok.com", Paths: []string{tiktok}}},
		Fallbacks: []string{bad, filepath.Join(dir, "missing.txt")},
	}, nil)

	status := store.Status()
	require.Len(t, status, 3)
	assert.Equal(t, JarStatus{Domain: "tiktok.com", Path: tiktok, Exists: true, Valid: true}, status[0])
	assert.True(t, status[1].Exists)
	assert.False(t, status[1].Valid)
	assert.False(t, status[2].Exists)
}

func TestCookieStore_DefaultsCoverYouTubeShortLinks(t *testing.T) {
	store := NewCookieStore(domain.DefaultConfig().Cookies, nil)

	short := store.Candidates("https://youtu.be/dQw4w9WgXcQ")
	long := store.Candidates("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NotEmpty(t, short)
	require.NotEmpty(t, long)
	assert.Equal(t, long[0], short[0])
	assert.Contains(t, short[0], "www.youtube.com_cookies.txt")
}
