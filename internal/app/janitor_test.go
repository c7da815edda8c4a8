package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

func staleDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(dir, old, old))
	return dir
}

func TestJanitor_SweepOnce(t *testing.T) {
	root := t.TempDir()
	workspace := infrastructure.NewWorkspace(root, nil)
	stale := staleDir(t, root, "cobalt-deadbeef", 2*time.Hour)
	fresh := staleDir(t, root, "yt-dlp-cafebabe", time.Minute)

	janitor := NewJanitor(workspace, domain.JanitorConfig{Interval: time.Minute, MaxAge: time.Hour}, nil)
	assert.Equal(t, 1, janitor.SweepOnce())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestJanitor_SweepMissingRoot(t *testing.T) {
	workspace := infrastructure.NewWorkspace(filepath.Join(t.TempDir(), "absent"), nil)
	janitor := NewJanitor(workspace, domain.JanitorConfig{Interval: time.Minute, MaxAge: time.Hour}, nil)
	assert.Zero(t, janitor.SweepOnce())
}

func TestJanitor_StartStop(t *testing.T) {
	root := t.TempDir()
	stale := staleDir(t, root, "tikwm-0001", 2*time.Hour)
	janitor := NewJanitor(infrastructure.NewWorkspace(root, nil),
		domain.JanitorConfig{Interval: 50 * time.Millisecond, MaxAge: time.Hour}, nil)

	require.NoError(t, janitor.Start(context.Background()))
	assert.True(t, janitor.IsRunning())
	assert.Error(t, janitor.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, janitor.Stop())
	assert.False(t, janitor.IsRunning())
	assert.Error(t, janitor.Stop())
}

func TestJanitor_StopsOnContextCancel(t *testing.T) {
	janitor := NewJanitor(newTestWorkspace(t), domain.JanitorConfig{Interval: 10 * time.Millisecond, MaxAge: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, janitor.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !janitor.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestJanitor_RejectsZeroInterval(t *testing.T) {
	janitor := NewJanitor(newTestWorkspace(t), domain.JanitorConfig{}, nil)
	assert.Error(t, janitor.Start(context.Background()))
	assert.False(t, janitor.IsRunning())
}
