package logger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogAcquireEvent("attempt", zap.String("provider", "cobalt"), zap.String("kind", "rate_limited"))
	ml.Access().Info("request", zap.Int("status", 200))
	ml.Access().Debug("dropped below level")
	ml.LogAppError("boom", zap.String("where", "handler"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	acquire, err := reader.ReadLogs(CategoryAcquire, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, acquire, 1)
	assert.Equal(t, "attempt", acquire[0].Message)
	assert.Equal(t, "info", acquire[0].Level)
	assert.Equal(t, "cobalt", acquire[0].Fields["provider"])
	assert.NotEmpty(t, acquire[0].Timestamp)

	access, err := reader.ReadLogs(CategoryAccess, time.Now(), 0)
	require.NoError(t, err)
	assert.Len(t, access, 1)

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	tomorrow := time.Now().Add(24 * time.Hour)
	ml.now = func() time.Time { return tomorrow }
	ml.LogAcquireEvent("next day")
	require.NoError(t, ml.Sync())

	entries, err := NewLogReader(dir).ReadLogs(CategoryAcquire, tomorrow, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "next day", entries[0].Message)
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	today := time.Now()

	content := `{"level":"info","ts":"2024-01-01T00:00:00Z","msg":"one","provider":"tikwm"}
{"level":"warn","ts":"2024-01-01T00:00:01Z","msg":"two","provider":"cobalt"}

plain text line
{"level":"info","ts":"2024-01-01T00:00:02Z","msg":"three","provider":"yt-dlp"}
`
	require.NoError(t, os.WriteFile(reader.GetLogPath(CategoryAcquire, today), []byte(content), 0644))

	last, err := reader.ReadLogs(CategoryAcquire, today, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "plain text line", last[0].Message)
	assert.Equal(t, "three", last[1].Message)

	found, err := reader.SearchLogs(CategoryAcquire, today, "COBALT", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "two", found[0].Message)

	missing, err := reader.ReadLogs(CategoryError, today, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLogReader_TailLogs(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	path := reader.GetLogPath(CategoryAccess, time.Now())
	require.NoError(t, os.WriteFile(path, []byte("{\"msg\":\"old\"}\n"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 1)
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(ctx, CategoryAccess, entries) }()

	// give the tail a moment to seek to the end
	time.Sleep(300 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"msg\":\"new\",\"level\":\"info\"}\n")
	require.NoError(t, err)
	f.Close()

	select {
	case entry := <-entries:
		assert.Equal(t, "new", entry.Message)
	case <-ctx.Done():
		t.Fatal("tail did not deliver the new line")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryAcquire))
	assert.True(t, ValidCategory(CategoryProcess))
	assert.False(t, ValidCategory("queue"))
}
