package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// Janitor periodically removes attempt directories left behind by crashed
// or killed requests. Normal cleanup happens per attempt.
type Janitor struct {
	workspace *infrastructure.Workspace
	config    domain.JanitorConfig
	logger    *zap.Logger
	mu        sync.RWMutex
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewJanitor creates a new janitor
func NewJanitor(workspace *infrastructure.Workspace, config domain.JanitorConfig, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		workspace: workspace,
		config:    config,
		logger:    logger,
	}
}

// Start starts the sweep loop
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor already running")
	}
	if j.config.Interval <= 0 {
		j.mu.Unlock()
		return fmt.Errorf("janitor interval must be positive")
	}
	j.running = true
	j.stopChan = make(chan struct{})
	j.mu.Unlock()

	j.wg.Add(1)
	go j.loop(ctx)
	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (j *Janitor) Stop() error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor not running")
	}
	j.running = false
	close(j.stopChan)
	j.mu.Unlock()

	j.wg.Wait()
	return nil
}

// IsRunning returns whether the sweep loop is running
func (j *Janitor) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.running
}

// SweepOnce removes stale entries immediately
func (j *Janitor) SweepOnce() int {
	removed, err := j.workspace.Sweep(j.config.MaxAge)
	if err != nil {
		j.logger.Warn("Workspace sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		j.logger.Info("Removed stale workspace entries",
			zap.Int("count", removed),
			zap.String("root", j.workspace.Root()))
	}
	return removed
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.SweepOnce()
	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("Janitor stopped", zap.String("reason", "context_cancelled"))
			j.mu.Lock()
			j.running = false
			j.mu.Unlock()
			return
		case <-j.stopChan:
			j.logger.Debug("Janitor stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			j.SweepOnce()
		}
	}
}
