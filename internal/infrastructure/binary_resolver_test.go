package infrastructure

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestBinaryResolver_Order(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}
	root := t.TempDir()
	t.Setenv("PATH", filepath.Join(root, "empty-path"))

	overrideDir := filepath.Join(root, "override")
	impersonate := filepath.Join(root, "imp", "yt-dlp_impersonate")
	localDir := filepath.Join(root, "bin")
	bundledDir := filepath.Join(root, "venv")

	writeExecutable(t, filepath.Join(overrideDir, "gallery-dl"))
	writeExecutable(t, impersonate)
	writeExecutable(t, filepath.Join(localDir, "yt-dlp"))
	writeExecutable(t, filepath.Join(bundledDir, "ffmpeg"))

	r := NewBinaryResolver(domain.BinariesConfig{
		GalleryDL:        overrideDir,
		YTDLPImpersonate: impersonate,
		LocalBinDir:      localDir,
		BundledDir:       bundledDir,
	}, nil)

	tests := []struct {
		name     string
		tool     Tool
		platform domain.Platform
		source   string
		path     string
	}{
		{"override directory", ToolGalleryDL, domain.PlatformInstagram, "override", filepath.Join(overrideDir, "gallery-dl")},
		{"impersonation for tiktok", ToolYTDLP, domain.PlatformTikTok, "impersonate", impersonate},
		{"local bin for youtube", ToolYTDLP, domain.PlatformYouTube, "local", filepath.Join(localDir, "yt-dlp")},
		{"bundled", ToolFFmpeg, domain.PlatformOther, "bundled", filepath.Join(bundledDir, "ffmpeg")},
		{"bare sentinel", ToolAria2c, domain.PlatformOther, "bare", "aria2c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := r.Resolve(tt.tool, tt.platform)
			assert.Equal(t, tt.source, loc.Source)
			assert.Equal(t, tt.path, loc.Path)
			assert.Equal(t, tt.source == "bare", loc.Bare)
		})
	}
}

func TestBinaryResolver_OverrideFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "custom-ytdlp")
	writeExecutable(t, path)

	r := NewBinaryResolver(domain.BinariesConfig{YTDLP: path}, nil)
	loc := r.Resolve(ToolYTDLP, domain.PlatformYouTube)
	assert.Equal(t, path, loc.Path)
	assert.Equal(t, "override", loc.Source)
}

func TestBinaryResolver_CacheAndSeed(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	r := NewBinaryResolver(domain.BinariesConfig{}, nil)

	first := r.Resolve(ToolFFmpeg, domain.PlatformOther)
	assert.True(t, first.Bare)
	assert.False(t, r.Available(ToolFFmpeg))

	r.Seed(ToolFFmpeg, false, Location{Path: "/opt/ffmpeg", Source: "override"})
	assert.Equal(t, "/opt/ffmpeg", r.Resolve(ToolFFmpeg, domain.PlatformOther).Path)
	assert.True(t, r.Available(ToolFFmpeg))

	r.Reset()
	assert.True(t, r.Resolve(ToolFFmpeg, domain.PlatformOther).Bare)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("MB_TEST_DIR", "/data")
	assert.Equal(t, "/data/cookies.txt", expandPath("$MB_TEST_DIR/cookies.txt"))
	assert.Equal(t, "", expandPath(""))

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, "bin"), expandPath("~/bin"))
	}
}
