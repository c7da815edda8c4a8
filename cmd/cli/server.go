package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	serverBinary       = "mediabridge-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the local MediaBridge server",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background if it is not running",
	Run: func(cmd *cobra.Command, args []string) {
		if isServerRunning() {
			fmt.Println("Server already running at " + serverURL)
			return
		}
		exitOnError(ensureServerRunning())
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health, tool and cookie status",
	Run: func(cmd *cobra.Command, args []string) {
		var health struct {
			Status      string `json:"status"`
			Version     string `json:"version"`
			InFlight    int    `json:"in_flight"`
			Transcriber bool   `json:"transcriber"`
			Binaries    map[string]struct {
				Path   string `json:"path"`
				Source string `json:"source"`
				Bare   bool   `json:"bare"`
			} `json:"binaries"`
		}
		client := &apiClient{baseURL: serverURL, http: &http.Client{Timeout: 5 * time.Second}}
		if err := client.getJSON("/health", nil, &health); err != nil {
			fmt.Println(color.RedString("Server not reachable at %s", serverURL))
			os.Exit(1)
		}

		bold := color.New(color.Bold)
		bold.Printf("Status: ")
		color.Green("%s (v%s)", health.Status, health.Version)
		fmt.Printf("In flight:   %d\n", health.InFlight)
		fmt.Printf("Transcriber: %v\n", health.Transcriber)

		names := make([]string, 0, len(health.Binaries))
		for name := range health.Binaries {
			names = append(names, name)
		}
		sort.Strings(names)
		bold.Println("Binaries:")
		for _, name := range names {
			loc := health.Binaries[name]
			state := color.GreenString("found")
			if loc.Bare {
				state = color.RedString("missing")
			}
			fmt.Printf("  %-20s %-8s %s\n", name, state, loc.Path)
		}
	},
}

func init() {
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStatusCmd)
}

// isServerRunning checks if the server is responding to health checks
func isServerRunning() bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findServerBinary locates the mediabridge-server binary
func findServerBinary() (string, error) {
	// 1. Check same directory as CLI binary
	execPath, err := os.Executable()
	if err == nil {
		serverPath := filepath.Join(filepath.Dir(execPath), serverBinary)
		if _, err := os.Stat(serverPath); err == nil {
			return serverPath, nil
		}
	}

	// 2. Check PATH
	if serverPath, err := exec.LookPath(serverBinary); err == nil {
		return serverPath, nil
	}

	// 3. Check common locations
	home, _ := os.UserHomeDir()
	commonPaths := []string{
		"/usr/local/bin/" + serverBinary,
		"/usr/bin/" + serverBinary,
		filepath.Join(home, "go/bin", serverBinary),
		filepath.Join(home, ".local/bin", serverBinary),
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// startServerBackground launches the server, which daemonizes itself
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	var args []string
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	cmd := exec.Command(serverPath, args...)
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// reap the launcher; the daemon it forks keeps running
	go func() {
		cmd.Wait()
	}()

	return nil
}

// waitForServerReady polls the server until it's ready or timeout
func waitForServerReady() error {
	deadline := time.Now().Add(serverStartTimeout)

	for time.Now().Before(deadline) {
		if isServerRunning() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}

	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// ensureServerRunning checks if server is running, starts it if not
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")

	if err := startServerBackground(); err != nil {
		return err
	}

	if err := waitForServerReady(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, color.GreenString("Server started"))
	return nil
}
