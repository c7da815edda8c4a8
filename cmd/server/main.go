package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/api"
	"github.com/yourusername/mediabridge-go/api/handlers"
	"github.com/yourusername/mediabridge-go/internal/app"
	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
	"github.com/yourusername/mediabridge-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	configPath = flag.String("config", "", "Path to config file (default: ./configs, ~/.mediabridge, /etc/mediabridge)")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon re-executes the binary in server mode, detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := createDirectories(config); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logsDir := config.Storage.LogsDir()

	// Category files: acquire, access, error
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: logsDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer multiLog.Close()

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		Service:    "mediabridge-server",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting MediaBridge server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("cobalt", config.Cobalt.Enabled),
		zap.Bool("tikwm", config.Tikwm.Enabled),
		zap.Bool("fallback", config.Fallback.Enabled))

	repo, err := infrastructure.NewSQLiteAcquisitionRepository(config.Storage.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	resolver := infrastructure.NewBinaryResolver(config.Binaries, log)
	for _, tool := range infrastructure.AllTools() {
		loc := resolver.Resolve(tool, domain.PlatformOther)
		if loc.Bare {
			log.Warn("Tool not found, relying on PATH at exec time", zap.String("tool", string(tool)))
		}
	}
	cookies := infrastructure.NewCookieStore(config.Cookies, log)
	runner := infrastructure.NewExecRunner(logsDir, log)
	workspace := infrastructure.NewWorkspace(config.Storage.TempDir(), log)

	httpClient := &http.Client{}
	fetcher := infrastructure.NewFetcher(httpClient, config.Timeouts.DirectDownload, log)
	transcoder := infrastructure.NewFFmpegTranscoder(resolver, runner, config.Timeouts.Transcode, log)

	ytdlp := infrastructure.NewYTDLPProvider(resolver, cookies, runner, config.Timeouts, log)
	gallery := infrastructure.NewGalleryDLProvider(resolver, cookies, runner, config.Timeouts, log)
	providers := []domain.Provider{
		infrastructure.NewCobaltProvider(config.Cobalt, httpClient, fetcher, log),
		infrastructure.NewTikwmProvider(config.Tikwm, httpClient, fetcher, transcoder, log),
		ytdlp,
		gallery,
	}

	policy := app.NewChainPolicy(config)
	controller := app.NewController(providers, workspace, policy.TransitionPolicy(), log)
	acquirer := app.NewAcquisitionService(controller, policy, repo, ytdlp, multiLog, log)

	var transcriber domain.Transcriber
	if config.Transcriber.APIKey != "" {
		t, err := infrastructure.NewOpenAITranscriber(config.Transcriber, log)
		if err != nil {
			log.Warn("Transcription disabled", zap.Error(err))
		} else {
			transcriber = t
		}
	} else {
		log.Info("Transcription disabled: no API key configured")
	}
	transcription := app.NewTranscriptionService(acquirer, gallery, transcriber, workspace, config.Transcriber, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var janitor *app.Janitor
	if config.Janitor.Enabled {
		janitor = app.NewJanitor(workspace, config.Janitor, log)
		if err := janitor.Start(ctx); err != nil {
			log.Fatal("Failed to start janitor", zap.Error(err))
		}
	}

	router := api.SetupRouter(api.Dependencies{
		Config:        config,
		Acquirer:      acquirer,
		Transcription: transcription,
		Resolver:      resolver,
		Cookies:       cookies,
		MultiLogger:   multiLog,
		Logger:        log,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", zap.Int("in_flight", acquirer.InFlight()))

	// Running acquisitions may take minutes; give them a bounded grace period
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if janitor != nil && janitor.IsRunning() {
		if err := janitor.Stop(); err != nil {
			log.Error("Error stopping janitor", zap.Error(err))
		}
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Storage.BaseDir,
		config.Storage.TempDir(),
		config.Storage.CookiesDir(),
		config.Storage.LogsDir(),
		filepath.Dir(config.Storage.DatabasePath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
