package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// classify and binaries run in-process and never need the server

var classifyCmd = &cobra.Command{
	Use:   "classify [url]",
	Short: "Show the platform and provider chain for a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(configPath)
		exitOnError(err)

		audio, _ := cmd.Flags().GetBool("audio")
		gallery, _ := cmd.Flags().GetBool("gallery")

		opts := []domain.RequestOption{}
		if audio {
			opts = append(opts, domain.WithAudioOnly(""))
		}
		if gallery {
			opts = append(opts, domain.WithMode(domain.ModeGallery))
		}
		req, err := domain.NewMediaRequest(args[0], opts...)
		exitOnError(err)

		chain, err := app.NewChainPolicy(config).BuildChain(req)
		exitOnError(err)

		platform := req.Platform()
		bold := color.New(color.Bold)
		bold.Printf("Platform: ")
		fmt.Println(platform)
		bold.Printf("Impersonation: ")
		if platform.RequiresImpersonation() {
			color.Yellow("required")
		} else {
			fmt.Println("no")
		}
		bold.Printf("Chain: ")
		fmt.Println(chain.String())
	},
}

var binariesCmd = &cobra.Command{
	Use:   "binaries",
	Short: "Show where each external tool resolves to",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(configPath)
		exitOnError(err)

		resolver := infrastructure.NewBinaryResolver(config.Binaries, zap.NewNop())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tSTATUS\tSOURCE\tPATH")
		for _, tool := range infrastructure.AllTools() {
			printLocation(w, string(tool), resolver.Resolve(tool, domain.PlatformOther))
		}
		printLocation(w, "yt-dlp (tiktok)", resolver.Resolve(infrastructure.ToolYTDLP, domain.PlatformTikTok))
		w.Flush()

		cookies := infrastructure.NewCookieStore(config.Cookies, zap.NewNop())
		fmt.Println()
		color.New(color.Bold).Println("Cookie jars:")
		for _, jar := range cookies.Status() {
			state := color.RedString("missing")
			if jar.Exists && jar.Valid {
				state = color.GreenString("ok")
			} else if jar.Exists {
				state = color.YellowString("invalid")
			}
			name := jar.Domain
			if name == "" {
				name = "(fallback)"
			}
			fmt.Printf("  %-20s %-8s %s\n", name, state, jar.Path)
		}
	},
}

func printLocation(w *tabwriter.Writer, name string, loc infrastructure.Location) {
	status := color.GreenString("found")
	if loc.Bare {
		status = color.RedString("missing")
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, status, loc.Source, loc.Path)
}

func init() {
	classifyCmd.Flags().BoolP("audio", "a", false, "Classify as an audio-only request")
	classifyCmd.Flags().BoolP("gallery", "g", false, "Classify as a gallery request")
}
