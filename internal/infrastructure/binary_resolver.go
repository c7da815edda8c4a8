package infrastructure

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// Tool names an external executable
type Tool string

const (
	ToolYTDLP     Tool = "yt-dlp"
	ToolGalleryDL Tool = "gallery-dl"
	ToolFFmpeg    Tool = "ffmpeg"
	ToolAria2c    Tool = "aria2c"
)

// AllTools lists every tool the resolver knows about
func AllTools() []Tool {
	return []Tool{ToolYTDLP, ToolGalleryDL, ToolFFmpeg, ToolAria2c}
}

// Location is a resolved executable path
type Location struct {
	Path   string `json:"path"`
	Source string `json:"source"` // override, impersonate, local, path, bundled, bare
	// Bare means nothing was found and Path is just the tool name, left for
	// the OS to resolve at exec time
	Bare bool `json:"bare"`
}

type resolverKey struct {
	tool        Tool
	impersonate bool
}

// BinaryResolver finds external tools. Lookups are cached per process.
type BinaryResolver struct {
	cfg    domain.BinariesConfig
	logger *zap.Logger

	mu    sync.Mutex
	cache map[resolverKey]Location
}

// NewBinaryResolver creates a resolver for cfg
func NewBinaryResolver(cfg domain.BinariesConfig, logger *zap.Logger) *BinaryResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinaryResolver{
		cfg:    cfg,
		logger: logger,
		cache:  make(map[resolverKey]Location),
	}
}

// Resolve returns the executable for tool. The impersonation build of yt-dlp
// is preferred for platforms that require it.
func (r *BinaryResolver) Resolve(tool Tool, platform domain.Platform) Location {
	key := resolverKey{tool: tool, impersonate: tool == ToolYTDLP && platform.RequiresImpersonation()}

	r.mu.Lock()
	defer r.mu.Unlock()
	if loc, ok := r.cache[key]; ok {
		return loc
	}

	loc := r.lookup(key)
	r.cache[key] = loc
	r.logger.Debug("Resolved binary",
		zap.String("tool", string(tool)),
		zap.String("path", loc.Path),
		zap.String("source", loc.Source))
	return loc
}

// Available reports whether tool resolved to a real file
func (r *BinaryResolver) Available(tool Tool) bool {
	return !r.Resolve(tool, domain.PlatformOther).Bare
}

// Reset clears the lookup cache
func (r *BinaryResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[resolverKey]Location)
}

// Seed pins a location for tool, bypassing lookup
func (r *BinaryResolver) Seed(tool Tool, impersonate bool, loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[resolverKey{tool: tool, impersonate: impersonate}] = loc
}

func (r *BinaryResolver) lookup(key resolverKey) Location {
	name := executableName(string(key.tool))

	if override := r.override(key.tool); override != "" {
		if isExecutableFile(override) {
			return Location{Path: override, Source: "override"}
		}
		candidate := filepath.Join(override, name)
		if isExecutableFile(candidate) {
			return Location{Path: candidate, Source: "override"}
		}
	}

	if key.impersonate && r.cfg.YTDLPImpersonate != "" {
		if path := expandPath(r.cfg.YTDLPImpersonate); isExecutableFile(path) {
			return Location{Path: path, Source: "impersonate"}
		}
	}

	if r.cfg.LocalBinDir != "" {
		if path := filepath.Join(expandPath(r.cfg.LocalBinDir), name); isExecutableFile(path) {
			return Location{Path: path, Source: "local"}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return Location{Path: path, Source: "path"}
	}

	if r.cfg.BundledDir != "" {
		if path := filepath.Join(expandPath(r.cfg.BundledDir), name); isExecutableFile(path) {
			return Location{Path: path, Source: "bundled"}
		}
	}

	return Location{Path: name, Source: "bare", Bare: true}
}

func (r *BinaryResolver) override(tool Tool) string {
	var value string
	switch tool {
	case ToolYTDLP:
		value = r.cfg.YTDLP
	case ToolGalleryDL:
		value = r.cfg.GalleryDL
	case ToolFFmpeg:
		value = r.cfg.FFmpeg
	case ToolAria2c:
		value = r.cfg.Aria2c
	}
	return expandPath(value)
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// expandPath expands $VARS and a leading ~
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	path = os.ExpandEnv(path)
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == '\\') {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}
