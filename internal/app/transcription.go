package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

var (
	// ErrTranscriberDisabled is returned when no transcription backend is configured
	ErrTranscriberDisabled = errors.New("transcription is not configured")
	// ErrImageTooLarge is returned for images above the size cap
	ErrImageTooLarge = errors.New("image exceeds size limit")
	// ErrNothingTranscribed is returned when a carousel yields no items
	ErrNothingTranscribed = errors.New("no items could be processed")
)

// GalleryCollector downloads and lists gallery items
type GalleryCollector interface {
	ListURLs(ctx context.Context, rawURL string) ([]string, *domain.Failure)
	Collect(ctx context.Context, rawURL, dir string) ([]infrastructure.GalleryItem, *domain.Failure)
}

// MediaTranscript is the text of one acquired media file
type MediaTranscript struct {
	Text          string            `json:"text"`
	Filename      string            `json:"filename"`
	Provider      domain.ProviderID `json:"provider"`
	AcquisitionID string            `json:"acquisition_id"`
	DurationMs    int64             `json:"duration_ms"`
}

// CarouselItem is one transcribed gallery entry, in carousel order
type CarouselItem struct {
	Index    int    `json:"index"`
	File     string `json:"file"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename"`
	IsVideo  bool   `json:"is_video"`
	Text     string `json:"text"`
	Error    string `json:"error,omitempty"`
}

// TranscriptionService builds the acquire-then-transcribe flows
type TranscriptionService struct {
	acquirer      *AcquisitionService
	gallery       GalleryCollector
	transcriber   domain.Transcriber
	workspace     *infrastructure.Workspace
	workers       int
	maxImageBytes int64
	logger        *zap.Logger
}

// NewTranscriptionService creates the service; transcriber may be nil, in
// which case every flow returns ErrTranscriberDisabled
func NewTranscriptionService(
	acquirer *AcquisitionService,
	gallery GalleryCollector,
	transcriber domain.Transcriber,
	workspace *infrastructure.Workspace,
	cfg domain.TranscriberConfig,
	logger *zap.Logger,
) *TranscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &TranscriptionService{
		acquirer:      acquirer,
		gallery:       gallery,
		transcriber:   transcriber,
		workspace:     workspace,
		workers:       workers,
		maxImageBytes: cfg.MaxImageBytes,
		logger:        logger,
	}
}

// Enabled reports whether a transcription backend is configured
func (s *TranscriptionService) Enabled() bool {
	return s.transcriber != nil
}

// TranscribeMedia acquires the audio of rawURL through the normal chain and
// transcribes it
func (s *TranscriptionService) TranscribeMedia(ctx context.Context, rawURL, language string) (*MediaTranscript, error) {
	if s.transcriber == nil {
		return nil, ErrTranscriberDisabled
	}
	start := time.Now()

	req, err := domain.NewMediaRequest(rawURL,
		domain.WithAudioOnly(domain.AudioMP3),
		domain.WithLanguage(language),
		domain.WithDelivery(domain.DeliveryBytes))
	if err != nil {
		return nil, err
	}

	result, err := s.acquirer.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	if failure := result.Failure(); failure != nil {
		return nil, failure
	}
	audio, ok := result.Outcome.Result.(*domain.Binary)
	if !ok {
		return nil, domain.NewFailure(domain.KindUnknown, "expected audio bytes, got %s", domain.ResultType(result.Outcome.Result))
	}

	dir, cleanup, err := s.workspace.AttemptDir("transcribe")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	filename := audio.Filename
	if filename == "" {
		filename = "audio.mp3"
	}
	audioPath := filepath.Join(dir, infrastructure.SanitizeFilename(filename))
	if err := os.WriteFile(audioPath, audio.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}

	text, err := s.transcriber.TranscribeAudio(ctx, audioPath, language)
	if err != nil {
		s.logger.Error("Audio transcription failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	return &MediaTranscript{
		Text:          text,
		Filename:      audio.Filename,
		Provider:      result.Outcome.Provider,
		AcquisitionID: result.Acquisition.ID,
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// TranscribeImage extracts the text of one image. An empty mimeType is sniffed.
func (s *TranscriptionService) TranscribeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	if s.transcriber == nil {
		return "", ErrTranscriberDisabled
	}
	if len(data) == 0 {
		return "", domain.NewFailure(domain.KindEmptyContent, "image is empty")
	}
	if s.maxImageBytes > 0 && int64(len(data)) > s.maxImageBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	return s.transcriber.TranscribeImage(ctx, data, mimeType, prompt)
}

// carouselTask is one gallery file waiting to be transcribed
type carouselTask struct {
	item     CarouselItem
	path     string
	mimeType string
	skip     string
}

// TranscribeCarousel downloads every item of a gallery and transcribes the
// images concurrently. Videos are returned without text; oversized files carry
// an error. Items keep carousel order.
func (s *TranscriptionService) TranscribeCarousel(ctx context.Context, rawURL, prompt string) ([]CarouselItem, error) {
	if s.transcriber == nil {
		return nil, ErrTranscriberDisabled
	}
	if err := domain.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	start := time.Now()

	directURLs, failure := s.gallery.ListURLs(ctx, rawURL)
	if failure != nil {
		s.logger.Warn("Carousel URL listing failed, continuing without direct links",
			zap.String("url", rawURL), zap.String("kind", string(failure.Kind)))
	}

	dir, cleanup, err := s.workspace.AttemptDir("carousel")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	files, failure := s.gallery.Collect(ctx, rawURL, dir)
	if failure != nil {
		return nil, failure
	}

	tasks := s.carouselTasks(rawURL, files, directURLs)
	if len(tasks) == 0 {
		return nil, ErrNothingTranscribed
	}

	items := make([]CarouselItem, len(tasks))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				items[i] = tasks[i].item
				items[i].Error = ctx.Err().Error()
				return
			}
			items[i] = s.transcribeTask(ctx, tasks[i], prompt)
		}(i)
	}
	wg.Wait()

	s.logger.Info("Carousel transcribed",
		zap.String("url", rawURL),
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)))
	return items, nil
}

func (s *TranscriptionService) carouselTasks(rawURL string, files []infrastructure.GalleryItem, directURLs []string) []carouselTask {
	tasks := make([]carouselTask, 0, len(files))
	for i, file := range files {
		index := i + 1
		info, err := os.Stat(file.Path)
		if err != nil {
			continue
		}

		task := carouselTask{
			path: file.Path,
			item: CarouselItem{Index: index, File: file.Name},
		}
		ext := strings.TrimPrefix(filepath.Ext(file.Name), ".")
		if i < len(directURLs) {
			task.item.URL = directURLs[i]
			if u, err := url.Parse(directURLs[i]); err == nil && path.Ext(u.Path) != "" {
				ext = strings.TrimPrefix(path.Ext(u.Path), ".")
			}
		}
		task.item.Filename = infrastructure.CarouselFilename(rawURL, index, ext)

		switch {
		case s.maxImageBytes > 0 && info.Size() > s.maxImageBytes:
			task.skip = fmt.Sprintf("file larger than %d bytes, skipped", s.maxImageBytes)
		default:
			task.mimeType = "image/png"
			if mt, err := mimetype.DetectFile(file.Path); err == nil {
				task.mimeType = mt.String()
			}
			if strings.HasPrefix(task.mimeType, "video/") {
				task.item.IsVideo = true
			}
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func (s *TranscriptionService) transcribeTask(ctx context.Context, task carouselTask, prompt string) CarouselItem {
	item := task.item
	if task.skip != "" {
		item.Error = task.skip
		return item
	}
	if item.IsVideo {
		return item
	}

	data, err := os.ReadFile(task.path)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	text, err := s.transcriber.TranscribeImage(ctx, data, task.mimeType, prompt)
	if err != nil {
		s.logger.Warn("Carousel item transcription failed", zap.String("file", item.File), zap.Error(err))
		item.Error = err.Error()
		return item
	}
	item.Text = text
	return item
}
