package infrastructure

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

const markerWindow = 128

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// ValidateContent checks that data is playable media of the declared format.
// Formats other than mp4 and webm only need to be non-empty.
func ValidateContent(data []byte, format string) *domain.Failure {
	if len(data) == 0 {
		return domain.NewFailure(domain.KindEmptyContent, "payload is empty")
	}

	head := data
	if len(head) > markerWindow {
		head = head[:markerWindow]
	}

	switch strings.ToLower(format) {
	case "mp4":
		if !bytes.Contains(head, []byte("ftyp")) {
			return domain.NewFailure(domain.KindUnknown, "payload is not an mp4 container (%s)", DetectContentType(data))
		}
	case "webm":
		if !bytes.HasPrefix(data, ebmlMagic) && !bytes.Contains(bytes.ToLower(head), []byte("webm")) {
			return domain.NewFailure(domain.KindUnknown, "payload is not a webm container (%s)", DetectContentType(data))
		}
	}
	return nil
}

// DetectContentType sniffs the MIME type of data
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// ExtensionForContent returns the sniffed file extension of data without the
// leading dot, or fallback when sniffing gives nothing useful
func ExtensionForContent(data []byte, fallback string) string {
	ext := strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
	if ext == "" || ext == "bin" || ext == "txt" {
		return fallback
	}
	return ext
}
