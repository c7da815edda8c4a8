package infrastructure

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/internal/domain"
)

const (
	defaultAudioModel  = "whisper-1"
	defaultVisionModel = "gpt-4o-mini"

	// DefaultImagePrompt is sent with an image when the caller gives no prompt
	DefaultImagePrompt = "Transcribe all text in this image exactly as written. Keep line breaks."

	imageSystemPrompt = "Extract all visible text from the image and return only the text."
	imageMaxTokens    = 800
)

// OpenAITranscriber implements domain.Transcriber with the Whisper and
// chat-completions vision APIs.
type OpenAITranscriber struct {
	client      *openai.Client
	audioModel  string
	visionModel string
	prompt      string
	logger      *zap.Logger
}

// NewOpenAITranscriber creates a transcriber from cfg
func NewOpenAITranscriber(cfg domain.TranscriberConfig, logger *zap.Logger) (*OpenAITranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	t := &OpenAITranscriber{
		client:      openai.NewClientWithConfig(clientConfig),
		audioModel:  cfg.AudioModel,
		visionModel: cfg.VisionModel,
		prompt:      cfg.Prompt,
		logger:      logger,
	}
	if t.audioModel == "" {
		t.audioModel = defaultAudioModel
	}
	if t.visionModel == "" {
		t.visionModel = defaultVisionModel
	}
	if t.prompt == "" {
		t.prompt = DefaultImagePrompt
	}
	return t, nil
}

// Name returns the backend name
func (t *OpenAITranscriber) Name() string {
	return "openai"
}

// TranscribeAudio sends the audio file at path to Whisper
func (t *OpenAITranscriber) TranscribeAudio(ctx context.Context, path, language string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.audioModel,
		FilePath: path,
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription API error: %w", err)
	}

	t.logger.Debug("Audio transcribed",
		zap.String("model", t.audioModel),
		zap.Int("chars", len(resp.Text)))
	return strings.TrimSpace(resp.Text), nil
}

// TranscribeImage asks the vision model for the text visible in data
func (t *OpenAITranscriber) TranscribeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	if prompt == "" {
		prompt = t.prompt
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.visionModel,
		Temperature: 0,
		MaxTokens:   imageMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: imageSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
