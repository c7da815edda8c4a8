package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe media, images or carousels via the server",
}

var transcribeMediaCmd = &cobra.Command{
	Use:   "media [url]",
	Short: "Transcribe the audio track of a video",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		language, _ := cmd.Flags().GetString("language")

		var result struct {
			Text     string `json:"text"`
			Provider string `json:"provider"`
		}
		body := map[string]string{"url": args[0], "language": language}
		exitOnError(newAPIClient(serverURL).postJSON("/api/v1/transcribe/media", body, &result))

		color.New(color.Faint).Printf("(audio via %s)\n", result.Provider)
		fmt.Println(result.Text)
	},
}

var transcribeImageCmd = &cobra.Command{
	Use:   "image [file]",
	Short: "Transcribe the text and content of a local image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		prompt, _ := cmd.Flags().GetString("prompt")

		req, err := newImageUpload(serverURL+"/api/v1/transcribe/image", args[0], prompt)
		exitOnError(err)
		resp, err := newAPIClient(serverURL).send(req)
		exitOnError(err)
		defer resp.Body.Close()

		var result struct {
			Text string `json:"text"`
		}
		exitOnError(json.NewDecoder(resp.Body).Decode(&result))
		fmt.Println(result.Text)
	},
}

var transcribeCarouselCmd = &cobra.Command{
	Use:   "carousel [url]",
	Short: "Transcribe every image of a gallery post",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		prompt, _ := cmd.Flags().GetString("prompt")

		var result struct {
			Count  int `json:"count"`
			Failed int `json:"failed"`
			Items  []struct {
				Index    int    `json:"index"`
				Filename string `json:"filename"`
				IsVideo  bool   `json:"is_video"`
				Text     string `json:"text"`
				Error    string `json:"error"`
			} `json:"items"`
		}
		body := map[string]string{"url": args[0], "prompt": prompt}
		exitOnError(newAPIClient(serverURL).postJSON("/api/v1/transcribe/carousel", body, &result))

		cyan := color.New(color.FgCyan)
		for _, item := range result.Items {
			cyan.Printf("[%d] %s\n", item.Index+1, item.Filename)
			switch {
			case item.Error != "":
				fmt.Println("  " + color.RedString(item.Error))
			case item.IsVideo:
				fmt.Println("  (video, skipped)")
			default:
				fmt.Println("  " + item.Text)
			}
		}
		fmt.Printf("\n%d items, %d failed\n", result.Count, result.Failed)
	},
}

func newImageUpload(endpoint, path, prompt string) (*http.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func init() {
	transcribeMediaCmd.Flags().StringP("language", "l", "", "Spoken language hint (ISO-639-1)")
	transcribeImageCmd.Flags().StringP("prompt", "p", "", "Custom instruction for the vision model")
	transcribeCarouselCmd.Flags().StringP("prompt", "p", "", "Custom instruction for the vision model")

	transcribeCmd.AddCommand(transcribeMediaCmd)
	transcribeCmd.AddCommand(transcribeImageCmd)
	transcribeCmd.AddCommand(transcribeCarouselCmd)
}
