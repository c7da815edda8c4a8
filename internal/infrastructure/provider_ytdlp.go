package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

const (
	tiktokFormat  = "bv*[ext=mp4][protocol!*=dash][protocol!*=m3u8][acodec!=none]/b[ext=mp4]/best"
	youtubeFormat = "best[height>=1080][ext=mp4]/bv*[height>=1080][ext=mp4]+ba[ext=m4a]/bv*[height>=1080]+ba/bv+ba/b"
	h264Format    = "bv*[vcodec^=avc1][ext=mp4]+ba[ext=m4a]/bv*[vcodec^=h264][ext=mp4]+ba[ext=m4a]/b[ext=mp4]"
	webmFormat    = "bestvideo[ext=webm]+bestaudio[ext=webm]/best[ext=webm]/best"
	mergeFormat   = "bv*+ba/bestvideo+bestaudio/best"

	aria2cArgs = "aria2c:-x 16 -s 16 -k 2M --min-split-size=1M --max-connection-per-server=16 --enable-http-pipelining=true"
)

// YTDLPProvider drives the yt-dlp CLI
type YTDLPProvider struct {
	resolver *BinaryResolver
	cookies  *CookieStore
	runner   CommandRunner
	timeouts domain.TimeoutsConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewYTDLPProvider creates the general CLI provider
func NewYTDLPProvider(resolver *BinaryResolver, cookies *CookieStore, runner CommandRunner, timeouts domain.TimeoutsConfig, logger *zap.Logger) *YTDLPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLPProvider{
		resolver: resolver,
		cookies:  cookies,
		runner:   runner,
		timeouts: timeouts,
		logger:   logger,
		now:      time.Now,
	}
}

// ID implements domain.Provider
func (p *YTDLPProvider) ID() domain.ProviderID {
	return domain.ProviderYTDLP
}

// Fetch implements domain.Provider
func (p *YTDLPProvider) Fetch(ctx context.Context, req domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	platform := hint.Platform
	if platform == "" {
		platform = req.Platform()
	}
	loc := p.resolver.Resolve(ToolYTDLP, platform)

	switch {
	case req.Delivery == domain.DeliveryURL:
		return p.fetchURLs(ctx, req, platform, loc)
	case req.Delivery == domain.DeliveryStream && !req.WantAudioOnly && !req.Merge:
		return p.fetchStream(ctx, req, platform, loc)
	default:
		return p.fetchFile(ctx, req, platform, loc, hint.WorkDir)
	}
}

// FormatSelector returns the -f expression for a full download
func FormatSelector(req domain.MediaRequest, platform domain.Platform) string {
	if req.Merge {
		return mergeFormat
	}
	switch req.OutputFormat {
	case domain.FormatWebM:
		return webmFormat
	case domain.FormatBest:
		return "best"
	}
	if capped := heightCapped(req.Quality); capped != "" {
		return capped
	}
	switch platform {
	case domain.PlatformTikTok:
		return tiktokFormat
	case domain.PlatformYouTube:
		return youtubeFormat
	default:
		return h264Format
	}
}

// heightCapped builds an mp4 selector limited to the requested height, or ""
// when no cap applies
func heightCapped(q domain.Quality) string {
	if q == "" || q == domain.QualityMax {
		return ""
	}
	h := string(q)
	return fmt.Sprintf("bv*[height<=%s][ext=mp4]+ba[ext=m4a]/b[height<=%s][ext=mp4]/bv*[height<=%s]+ba/b[height<=%s]", h, h, h, h)
}

// StreamFormatSelector returns the -f expression for stdout streaming, which
// must avoid fragmented protocols and separate audio tracks
func StreamFormatSelector(format domain.OutputFormat, platform domain.Platform) string {
	if platform == domain.PlatformTikTok {
		return tiktokFormat
	}
	switch format {
	case domain.FormatMP4:
		return "best[ext=mp4][vcodec!=none][acodec!=none][protocol!*=m3u8]/best[ext=mp4][vcodec!=none][acodec!=none]/best[ext=mp4][protocol!*=m3u8]/best[protocol!*=m3u8]"
	case domain.FormatWebM:
		return "best[ext=webm][vcodec!=none][acodec!=none][protocol!*=m3u8]/best[ext=webm][vcodec!=none][acodec!=none]/best[ext=webm][protocol!*=m3u8]/best[protocol!*=m3u8]"
	default:
		return "best"
	}
}

// OutputTemplate names downloaded files: titles for YouTube, uploader and id
// elsewhere
func OutputTemplate(platform domain.Platform) string {
	if platform == domain.PlatformYouTube {
		return "%(title)s.%(ext)s"
	}
	return "%(uploader)s_%(id)s.%(ext)s"
}

// commonArgs are prepended to every invocation: cookies, impersonation and
// the ffmpeg location
func (p *YTDLPProvider) commonArgs(rawURL string, loc Location) []string {
	var args []string
	if p.cookies != nil {
		args = append(args, p.cookies.ArgsFor(rawURL)...)
	}
	if loc.Source == "impersonate" {
		args = append(args, "--impersonate", "chrome")
	}
	if ffmpeg := p.resolver.Resolve(ToolFFmpeg, domain.PlatformOther); !ffmpeg.Bare {
		args = append(args, "--ffmpeg-location", ffmpeg.Path)
	}
	return args
}

// BuildDownloadArgs assembles the arguments of a file download into workDir
func (p *YTDLPProvider) BuildDownloadArgs(req domain.MediaRequest, platform domain.Platform, loc Location, workDir string) []string {
	args := p.commonArgs(req.URL, loc)
	youtube := platform == domain.PlatformYouTube

	if req.WantAudioOnly {
		if youtube {
			args = append(args, "--extractor-args", "youtube:player_client=android", "--http-chunk-size", "10M")
			args = append(args, p.aria2cArgs()...)
		}
		args = append(args, "-x", "--audio-format", string(req.AudioFormat))
	} else {
		args = append(args, "-f", FormatSelector(req, platform))
		switch {
		case req.Merge:
			args = append(args, "--merge-output-format", mergeContainer(req.OutputFormat))
		case req.OutputFormat != domain.FormatMP4:
			// webm and best take the selector as is
		case youtube:
			args = append(args,
				"--extractor-args", "youtube:player_client=ios,web",
				"--concurrent-fragments", "16",
				"--http-chunk-size", "10M",
				"--retries", "3",
				"--fragment-retries", "3")
			args = append(args, p.aria2cArgs()...)
		case platform != domain.PlatformTikTok:
			args = append(args, "--merge-output-format", "mp4", "--remux-video", "mp4")
		}
	}
	if platform == domain.PlatformTikTok {
		args = append(args, "--concurrent-fragments", "8")
	}

	args = append(args,
		"-o", filepath.Join(workDir, OutputTemplate(platform)),
		"--no-playlist",
		"--restrict-filenames",
		"--trim-filenames", "200",
		"--progress",
		"--newline",
		"--no-warnings",
		req.URL)
	return args
}

// BuildStreamArgs assembles the arguments of a stdout download
func (p *YTDLPProvider) BuildStreamArgs(req domain.MediaRequest, platform domain.Platform, loc Location) []string {
	args := p.commonArgs(req.URL, loc)
	args = append(args,
		"-f", StreamFormatSelector(req.OutputFormat, platform),
		"-o", "-",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"--no-progress")
	if platform == domain.PlatformTikTok {
		args = append(args, "--concurrent-fragments", "8")
	}
	return append(args, req.URL)
}

// BuildURLArgs assembles the arguments of a URL-only query
func (p *YTDLPProvider) BuildURLArgs(req domain.MediaRequest, platform domain.Platform, loc Location) []string {
	args := p.commonArgs(req.URL, loc)
	if req.WantAudioOnly {
		args = append(args, "-f", "bestaudio/best")
	} else if req.OutputFormat == domain.FormatWebM {
		args = append(args, "-f", webmFormat)
	}
	args = append(args, "--skip-download", "--no-warnings", "--print", "thumbnail", "--print", "url", "--no-playlist")
	if platform == domain.PlatformTikTok {
		args = append(args, "--concurrent-fragments", "8")
	}
	return append(args, req.URL)
}

func (p *YTDLPProvider) aria2cArgs() []string {
	aria := p.resolver.Resolve(ToolAria2c, domain.PlatformOther)
	if aria.Bare {
		return nil
	}
	return []string{"--external-downloader", aria.Path, "--external-downloader-args", aria2cArgs}
}

func mergeContainer(f domain.OutputFormat) string {
	if f == domain.FormatWebM {
		return "webm"
	}
	return "mp4"
}

func (p *YTDLPProvider) run(ctx context.Context, loc Location, args []string, timeout time.Duration, label string, captureOnly bool) (*CommandOutput, *domain.Failure) {
	out, err := p.runner.Run(ctx, CommandSpec{
		Binary:      loc.Path,
		Args:        args,
		Timeout:     timeout,
		Label:       label,
		CaptureOnly: captureOnly,
	})
	if err != nil {
		return out, ClassifyCommandError(err, stderrOf(out), loc)
	}
	return out, nil
}

func (p *YTDLPProvider) fetchFile(ctx context.Context, req domain.MediaRequest, platform domain.Platform, loc Location, workDir string) domain.ProviderResult {
	if workDir == "" {
		return domain.NewFailure(domain.KindUnknown, "yt-dlp download needs a work directory")
	}
	timeout := p.timeouts.CLIDownload
	if req.Merge {
		timeout = p.timeouts.CLIMerge
	}

	args := p.BuildDownloadArgs(req, platform, loc, workDir)
	if _, failure := p.run(ctx, loc, args, timeout, "yt-dlp "+req.URL, false); failure != nil {
		return failure
	}

	path, err := newestMediaFile(workDir)
	if err != nil {
		return domain.NewFailure(domain.KindUnknown, "failed to scan work directory: %v", err)
	}
	if path == "" {
		return domain.NewFailure(domain.KindEmptyContent, "yt-dlp finished without producing a media file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NewFailure(domain.KindUnknown, "failed to read %s: %v", filepath.Base(path), err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if failure := ValidateContent(data, ext); failure != nil {
		return failure
	}
	p.logger.Debug("yt-dlp produced file", zap.String("file", filepath.Base(path)), zap.Int("bytes", len(data)))
	return domain.NewBinary(data, SanitizeFilename(filepath.Base(path)), DetectContentType(data))
}

func (p *YTDLPProvider) fetchStream(ctx context.Context, req domain.MediaRequest, platform domain.Platform, loc Location) domain.ProviderResult {
	args := p.BuildStreamArgs(req, platform, loc)
	out, failure := p.run(ctx, loc, args, p.timeouts.CLIDownload, "yt-dlp stream "+req.URL, true)
	if failure != nil {
		return failure
	}

	ext := "mp4"
	if req.OutputFormat == domain.FormatWebM {
		ext = "webm"
	}
	check := ext
	if req.OutputFormat == domain.FormatBest {
		check = ""
	}
	if failure := ValidateContent(out.Stdout, check); failure != nil {
		return failure
	}
	if check == "" {
		ext = ExtensionForContent(out.Stdout, ext)
	}
	filename := TimestampedFilename(string(platform), ext, p.now())
	return domain.NewBinary(out.Stdout, filename, DetectContentType(out.Stdout))
}

func (p *YTDLPProvider) fetchURLs(ctx context.Context, req domain.MediaRequest, platform domain.Platform, loc Location) domain.ProviderResult {
	args := p.BuildURLArgs(req, platform, loc)
	out, failure := p.run(ctx, loc, args, p.timeouts.URLQuery, "yt-dlp urls "+req.URL, false)
	if failure != nil {
		return failure
	}

	thumbnail, urls := ParsePrintedURLs(string(out.Stdout))
	switch len(urls) {
	case 0:
		return domain.NewFailure(domain.KindEmptyContent, "yt-dlp returned no direct url")
	case 1:
		return &domain.DirectURL{URL: urls[0], ThumbnailURL: thumbnail}
	default:
		return &domain.MultiURL{URLs: urls}
	}
}

// ParsePrintedURLs splits `--print thumbnail --print url` output. With two or
// more lines the first is the thumbnail; "NA" and "none" placeholders are
// dropped.
func ParsePrintedURLs(stdout string) (thumbnail string, urls []string) {
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	if len(lines) == 1 {
		if !isPlaceholder(lines[0]) {
			urls = append(urls, lines[0])
		}
		return "", urls
	}
	if !isPlaceholder(lines[0]) {
		thumbnail = lines[0]
	}
	for _, line := range lines[1:] {
		if !isPlaceholder(line) {
			urls = append(urls, line)
		}
	}
	return thumbnail, urls
}

func isPlaceholder(s string) bool {
	lower := strings.ToLower(s)
	return lower == "na" || lower == "none"
}

// FormatOption is one labelled entry of `yt-dlp -F`
type FormatOption struct {
	FormatID   string `json:"format_id"`
	Extension  string `json:"ext"`
	Resolution string `json:"resolution"`
	Filesize   string `json:"filesize,omitempty"`
	Note       string `json:"note"`
}

var (
	resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)
	heightPattern     = regexp.MustCompile(`^\d+p\d*$`)
)

// ListFormats runs `yt-dlp -F` and returns the formats that map to a known
// quality label
func (p *YTDLPProvider) ListFormats(ctx context.Context, rawURL string) ([]FormatOption, error) {
	platform := domain.Classify(rawURL)
	loc := p.resolver.Resolve(ToolYTDLP, platform)

	args := p.commonArgs(rawURL, loc)
	args = append(args, "-F", "--no-warnings", "--no-playlist", "--playlist-end", "1", rawURL)

	out, failure := p.run(ctx, loc, args, p.timeouts.FormatList, "yt-dlp formats "+rawURL, false)
	if failure != nil {
		return nil, failure
	}
	return ParseFormatTable(string(out.Stdout)), nil
}

// ParseFormatTable parses the table printed by `yt-dlp -F`
func ParseFormatTable(output string) []FormatOption {
	var formats []FormatOption
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if trimmed == "" || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "[") ||
			strings.Contains(lower, "format code") || strings.HasPrefix(lower, "id ") {
			continue
		}
		parts := strings.Fields(trimmed)
		if len(parts) < 3 {
			continue
		}

		option := FormatOption{FormatID: parts[0], Extension: parts[1]}
		audioOnly := strings.Contains(lower, "audio only")
		if audioOnly {
			option.Resolution = "audio only"
		}
		for i, part := range parts {
			switch {
			case resolutionPattern.MatchString(part), heightPattern.MatchString(part):
				option.Resolution = part
			case strings.HasSuffix(part, "MiB") || strings.HasSuffix(part, "KiB") || strings.HasSuffix(part, "GiB"):
				size := strings.TrimLeft(part, "|~≈")
				if size == "MiB" || size == "KiB" || size == "GiB" {
					if i > 0 {
						size = strings.TrimLeft(parts[i-1], "|~≈") + " " + size
					}
				}
				option.Filesize = "~" + size
			}
		}

		option.Note = qualityLabel(resolutionHeight(option.Resolution), audioOnly)
		if option.Note != "" {
			formats = append(formats, option)
		}
	}
	return formats
}

// resolutionHeight reads the height from "1920x1080" or "1080p60", 0 if absent
func resolutionHeight(resolution string) int {
	var w, h int
	if _, err := fmt.Sscanf(resolution, "%dx%d", &w, &h); err == nil {
		return h
	}
	if _, err := fmt.Sscanf(resolution, "%dp", &h); err == nil {
		return h
	}
	return 0
}

func qualityLabel(height int, audioOnly bool) string {
	switch {
	case audioOnly:
		return "audio"
	case height >= 2160:
		return "4K Ultra HD"
	case height >= 1440:
		return "2K Quad HD"
	case height >= 1080:
		return "Full HD 1080p"
	case height >= 720:
		return "HD 720p"
	case height >= 480:
		return "SD 480p"
	case height >= 360:
		return "SD 360p"
	default:
		return ""
	}
}
