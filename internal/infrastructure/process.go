package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCommandTimeout is returned when a command exceeds its time budget
var ErrCommandTimeout = errors.New("command timed out")

// CommandSpec describes one external tool invocation
type CommandSpec struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
	Label   string // shown in the process log header
	// CaptureOnly keeps stdout out of the process log (binary payloads)
	CaptureOnly bool
}

// CommandOutput holds what a finished command produced
type CommandOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// CommandRunner runs external tools
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (*CommandOutput, error)
}

// ExecRunner runs commands with os/exec and appends their output to a
// per-day process log, one contiguous block per command.
type ExecRunner struct {
	logsDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewExecRunner creates a runner; an empty logsDir disables the process log
func NewExecRunner(logsDir string, logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logsDir: logsDir, logger: logger}
}

// Run executes spec and waits for it. A non-zero exit is returned as an
// error together with the captured output.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) (*CommandOutput, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmdLine := ShellEscapeCommand(spec.Binary, spec.Args...)
	r.logger.Debug("Executing command", zap.String("label", spec.Label), zap.String("cmd", cmdLine))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// the block is appended in one write once the command ends, so
	// concurrent commands never interleave in the log
	var block *lockedBuffer
	if r.logsDir != "" {
		block = &lockedBuffer{}
		writeProcessHeader(block, spec.Label, cmdLine)
		cmd.Stderr = io.MultiWriter(&stderr, block)
		if !spec.CaptureOnly {
			cmd.Stdout = io.MultiWriter(&stdout, block)
		}
	}

	start := time.Now()
	err := cmd.Run()
	out := &CommandOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%s after %s: %w", spec.Label, spec.Timeout, ErrCommandTimeout)
	}
	if block != nil {
		writeProcessFooter(block, err)
		r.appendProcessLog(block.Bytes())
	}
	return out, err
}

// appendProcessLog appends one finished block to today's process log
func (r *ExecRunner) appendProcessLog(block []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.logsDir, 0755); err != nil {
		r.logger.Warn("Failed to create logs directory", zap.Error(err))
		return
	}
	path := filepath.Join(r.logsDir, "process-"+time.Now().Format("20060102")+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.logger.Warn("Failed to open process log", zap.String("path", path), zap.Error(err))
		return
	}
	defer file.Close()

	if _, err := file.Write(block); err != nil {
		r.logger.Warn("Failed to write process log", zap.String("path", path), zap.Error(err))
	}
}

// lockedBuffer is written by the stdout and stderr copiers at the same time
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

func writeProcessHeader(w io.Writer, label, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] %s ===\n$ %s\n", timestamp, label, cmdLine)
}

func writeProcessFooter(w io.Writer, err error) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if err != nil {
		fmt.Fprintf(w, "[%s] FAILED: %v\n=== END ===\n\n", timestamp, err)
		return
	}
	fmt.Fprintf(w, "[%s] SUCCESS\n=== END ===\n\n", timestamp)
}

// isMissingBinary reports whether err means the executable could not be started
func isMissingBinary(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist)
}

// shellSpecialChars have meaning to a POSIX shell and force quoting
const shellSpecialChars = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"

// ShellEscape quotes s for display in a shell command line. Only used for
// logging; exec.Command never goes through a shell.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecialChars) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellEscapeCommand renders binary and args as a copy-pasteable command line
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}
