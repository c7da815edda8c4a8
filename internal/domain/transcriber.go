package domain

import "context"

// Transcriber turns audio or images into text
type Transcriber interface {
	// TranscribeAudio transcribes the audio file at path
	TranscribeAudio(ctx context.Context, path, language string) (string, error)

	// TranscribeImage extracts visible text from an image
	TranscribeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error)

	// Name returns the backend name
	Name() string
}
