package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	configPath  string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "mediabridge",
		Short: "MediaBridge CLI - fetch media from social platforms",
		Long: `A command-line interface for the MediaBridge server.

Media is fetched through a chain of providers (Cobalt, tikwm, yt-dlp,
gallery-dl); the server falls back to the next provider on retryable failures.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file used by local commands and auto-start")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(acquireCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(binariesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serverCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// exitOnError prints err in red and exits
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	os.Exit(1)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
