package infrastructure

import (
	"os"
	"path/filepath"
	"strings"
)

var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true, ".m4v": true,
	".mp3": true, ".m4a": true, ".aac": true, ".opus": true, ".ogg": true, ".wav": true, ".flac": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true, ".m4v": true,
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isMediaFile checks the extension; partial downloads and sidecars are not media
func isMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// listMediaFiles walks dir and returns every media file below it
func listMediaFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isMediaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// newestMediaFile returns the most recently modified non-empty media file
// under dir, or "" when there is none
func newestMediaFile(dir string) (string, error) {
	files, err := listMediaFiles(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestInfo os.FileInfo
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() == 0 {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = f, info
		}
	}
	return newest, nil
}
