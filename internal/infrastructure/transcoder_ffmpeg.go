package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// AudioExtractor turns a downloaded video into an audio file
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input string, format domain.AudioFormat) (string, *domain.Failure)
}

// FFmpegTranscoder runs ffmpeg for local post-processing
type FFmpegTranscoder struct {
	resolver *BinaryResolver
	runner   CommandRunner
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFFmpegTranscoder creates a transcoder
func NewFFmpegTranscoder(resolver *BinaryResolver, runner CommandRunner, timeout time.Duration, logger *zap.Logger) *FFmpegTranscoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegTranscoder{resolver: resolver, runner: runner, timeout: timeout, logger: logger}
}

// audioCodecArgs maps a target container to ffmpeg encoder flags
func audioCodecArgs(format domain.AudioFormat) []string {
	switch format {
	case domain.AudioM4A:
		return []string{"-acodec", "aac"}
	case domain.AudioWAV:
		return []string{"-acodec", "pcm_s16le", "-ar", "16000"}
	default:
		return []string{"-acodec", "libmp3lame"}
	}
}

// ExtractAudio writes <input-stem>.<format> next to input and returns its
// path. The input file is left in place.
func (t *FFmpegTranscoder) ExtractAudio(ctx context.Context, input string, format domain.AudioFormat) (string, *domain.Failure) {
	if format == "" {
		format = domain.AudioMP3
	}
	output := strings.TrimSuffix(input, filepath.Ext(input)) + "." + string(format)
	if output == input {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".audio." + string(format)
	}

	args := []string{"-y", "-i", input, "-vn"}
	args = append(args, audioCodecArgs(format)...)
	args = append(args, output)

	loc := t.resolver.Resolve(ToolFFmpeg, domain.PlatformOther)
	out, err := t.runner.Run(ctx, CommandSpec{
		Binary:  loc.Path,
		Args:    args,
		Timeout: t.timeout,
		Label:   fmt.Sprintf("ffmpeg extract %s", format),
	})
	if err != nil {
		failure := ClassifyCommandError(err, stderrOf(out), loc)
		t.logger.Warn("Audio extraction failed", zap.String("input", input), zap.Error(failure))
		return "", failure
	}

	info, statErr := os.Stat(output)
	if statErr != nil {
		return "", domain.NewFailure(domain.KindEmptyContent, "ffmpeg produced no output file")
	}
	if info.Size() == 0 {
		return "", domain.NewFailure(domain.KindEmptyContent, "ffmpeg produced an empty file")
	}
	return output, nil
}
