package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// acquireBody mirrors the server's acquire request
type acquireBody struct {
	URL         string `json:"url"`
	AudioOnly   bool   `json:"audio_only,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Format      string `json:"format,omitempty"`
	Merge       bool   `json:"merge,omitempty"`
}

// urlResult is the JSON body of url-delivery acquisitions
type urlResult struct {
	ID        string   `json:"id"`
	Provider  string   `json:"provider"`
	Platform  string   `json:"platform"`
	URL       string   `json:"url"`
	URLs      []string `json:"urls"`
	Auxiliary []string `json:"auxiliary"`
	Filename  string   `json:"filename"`
}

var acquireCmd = &cobra.Command{
	Use:     "acquire [url]",
	Aliases: []string{"get"},
	Short:   "Fetch media for a URL",
	Long: `Fetch media for a URL through the provider chain.

By default the file is saved into --output. With --urls the server returns
direct links instead of bytes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		audio, _ := cmd.Flags().GetBool("audio")
		gallery, _ := cmd.Flags().GetBool("gallery")
		urlsOnly, _ := cmd.Flags().GetBool("urls")
		outDir, _ := cmd.Flags().GetString("output")

		body := acquireBody{URL: args[0]}
		body.AudioOnly = audio
		body.AudioFormat, _ = cmd.Flags().GetString("audio-format")
		body.Quality, _ = cmd.Flags().GetString("quality")
		body.Format, _ = cmd.Flags().GetString("format")
		body.Merge, _ = cmd.Flags().GetBool("merge")

		notify, _ := cmd.Flags().GetBool("notify")
		acq := &domain.Acquisition{URL: body.URL, Platform: domain.Classify(body.URL)}
		err := runAcquire(body, acquirePath(gallery, urlsOnly), outDir, urlsOnly, acq)
		if notify {
			if err != nil {
				acq.Status = domain.StatusFailed
				acq.ErrorKind = domain.KindUnknown
				var apiErr *apiError
				if errors.As(err, &apiErr) && apiErr.Kind != "" {
					acq.ErrorKind = domain.ErrorKind(apiErr.Kind)
				}
			}
			notifier := infrastructure.NewDesktopNotifier("", infrastructure.NewExecRunner("", nil), nil)
			notifier.NotifyAcquisition(context.Background(), acq)
		}
		exitOnError(err)
	},
}

// runAcquire performs one acquisition and fills acq with what came back
func runAcquire(body acquireBody, path, outDir string, urlsOnly bool, acq *domain.Acquisition) error {
	client := newAPIClient(serverURL)

	if urlsOnly {
		var result urlResult
		if err := client.postJSON(path, body, &result); err != nil {
			return err
		}
		printURLResult(result)
		acq.ID = result.ID
		acq.Status = domain.StatusSucceeded
		acq.Provider = domain.ProviderID(result.Provider)
		acq.Filename = result.Filename
		return nil
	}

	resp, err := client.do(http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	saved, size, err := saveAttachment(resp, outDir)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Saved %s", saved)
	fmt.Printf(" (%s, via %s)\n", humanBytes(size), resp.Header.Get("X-Tool-Used"))
	if id := resp.Header.Get("X-Acquisition-Id"); id != "" {
		fmt.Printf("ID: %s\n", id)
	}

	acq.ID = resp.Header.Get("X-Acquisition-Id")
	acq.Status = domain.StatusSucceeded
	acq.Provider = domain.ProviderID(resp.Header.Get("X-Tool-Used"))
	acq.Filename = filepath.Base(saved)
	acq.SizeBytes = size
	return nil
}

var formatsCmd = &cobra.Command{
	Use:   "formats [url]",
	Short: "List the formats yt-dlp offers for a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Platform string `json:"platform"`
			Formats  []struct {
				FormatID   string `json:"format_id"`
				Extension  string `json:"ext"`
				Resolution string `json:"resolution"`
				Filesize   string `json:"filesize"`
				Note       string `json:"note"`
			} `json:"formats"`
		}
		client := newAPIClient(serverURL)
		exitOnError(client.getJSON("/api/v1/formats", url.Values{"url": {args[0]}}, &result))

		if len(result.Formats) == 0 {
			fmt.Println("No formats found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEXT\tRESOLUTION\tSIZE\tLABEL")
		for _, f := range result.Formats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.FormatID, f.Extension, f.Resolution, f.Filesize, f.Note)
		}
		w.Flush()
	},
}

func acquirePath(gallery, urlsOnly bool) string {
	switch {
	case gallery && urlsOnly:
		return "/api/v1/gallery/urls"
	case gallery:
		return "/api/v1/gallery/zip"
	case urlsOnly:
		return "/api/v1/acquire/url"
	default:
		return "/api/v1/acquire"
	}
}

func printURLResult(result urlResult) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Printf("Provider: ")
	fmt.Printf("%s (%s)\n", result.Provider, result.Platform)
	if result.Filename != "" {
		bold.Printf("Filename: ")
		fmt.Println(result.Filename)
	}
	for i, u := range result.URLs {
		cyan.Printf("[%d] ", i+1)
		fmt.Println(u)
	}
	for _, u := range result.Auxiliary {
		color.New(color.Faint).Printf("    aux: %s\n", u)
	}
	fmt.Printf("ID: %s\n", result.ID)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	acquireCmd.Flags().BoolP("audio", "a", false, "Extract audio only")
	acquireCmd.Flags().String("audio-format", "", "Audio format (mp3, m4a, wav)")
	acquireCmd.Flags().StringP("quality", "q", "", "Video quality (max, 2160, 1440, 1080, 720, 480, 360)")
	acquireCmd.Flags().StringP("format", "f", "", "Container format (mp4, webm, best)")
	acquireCmd.Flags().Bool("merge", false, "Merge best video and audio streams")
	acquireCmd.Flags().BoolP("gallery", "g", false, "Fetch every item of a gallery or carousel")
	acquireCmd.Flags().Bool("urls", false, "Return direct URLs instead of downloading")
	acquireCmd.Flags().StringP("output", "o", ".", "Directory to save files into")
	acquireCmd.Flags().Bool("notify", false, "Show a desktop notification when done")
}
