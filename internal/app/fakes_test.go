package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// fakeProvider returns scripted results and records what it saw
type fakeProvider struct {
	id       domain.ProviderID
	results  []domain.ProviderResult
	calls    int
	workDirs []string
	// artifact is written into the work dir on every call when set
	artifact string
	mu       sync.Mutex
}

func (f *fakeProvider) ID() domain.ProviderID { return f.id }

func (f *fakeProvider) Fetch(_ context.Context, _ domain.MediaRequest, hint domain.FetchHint) domain.ProviderResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.workDirs = append(f.workDirs, hint.WorkDir)
	if f.artifact != "" && hint.WorkDir != "" {
		os.WriteFile(filepath.Join(hint.WorkDir, f.artifact), []byte("partial"), 0644)
	}
	if len(f.results) == 0 {
		return domain.NewFailure(domain.KindUnknown, "no scripted result")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r
}

func succeed(id domain.ProviderID) *fakeProvider {
	return &fakeProvider{id: id, results: []domain.ProviderResult{
		domain.NewBinary([]byte("bytes from "+string(id)), string(id)+".mp4", "video/mp4"),
	}}
}

func fail(id domain.ProviderID, kind domain.ErrorKind) *fakeProvider {
	return &fakeProvider{id: id, results: []domain.ProviderResult{
		domain.NewFailure(kind, "%s failed", id),
	}}
}

// memoryRepo implements domain.AcquisitionRepository for testing
type memoryRepo struct {
	mu           sync.Mutex
	acquisitions map[string]*domain.Acquisition
	attempts     []*domain.AcquisitionAttempt
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{acquisitions: make(map[string]*domain.Acquisition)}
}

func (m *memoryRepo) Create(a *domain.Acquisition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *a
	m.acquisitions[a.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(a *domain.Acquisition) error {
	return m.Create(a)
}

func (m *memoryRepo) AddAttempt(attempt *domain.AcquisitionAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memoryRepo) FindByID(id string) (*domain.Acquisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acquisitions[id]
	if !ok {
		return nil, domain.ErrAcquisitionNotFound
	}
	copied := *a
	for _, at := range m.attempts {
		if at.AcquisitionID == id {
			copied.Attempts = append(copied.Attempts, *at)
		}
	}
	return &copied, nil
}

func (m *memoryRepo) FindAll(_ map[string]interface{}, _ int) ([]*domain.Acquisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Acquisition, 0, len(m.acquisitions))
	for _, a := range m.acquisitions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) GetStats() (*domain.AcquisitionStats, error) {
	return &domain.AcquisitionStats{Total: int64(len(m.acquisitions))}, nil
}

// fakeTranscriber implements domain.Transcriber
type fakeTranscriber struct {
	mu         sync.Mutex
	audioPaths []string
	images     int
	imageErr   error
	active     int
	maxActive  int
	delay      time.Duration
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) TranscribeAudio(_ context.Context, path, language string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.audioPaths = append(f.audioPaths, path)
	f.mu.Unlock()
	return fmt.Sprintf("transcript[%s] of %d bytes", language, len(data)), nil
}

func (f *fakeTranscriber) TranscribeImage(_ context.Context, data []byte, mimeType, _ string) (string, error) {
	f.mu.Lock()
	f.images++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	time.Sleep(f.delay)
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return "text of " + mimeType, nil
}

func newTestWorkspace(t *testing.T) *infrastructure.Workspace {
	t.Helper()
	return infrastructure.NewWorkspace(t.TempDir(), nil)
}

func mustRequest(t *testing.T, rawURL string, opts ...domain.RequestOption) domain.MediaRequest {
	t.Helper()
	req, err := domain.NewMediaRequest(rawURL, opts...)
	require.NoError(t, err)
	return req
}

func mustChain(t *testing.T, ids ...domain.ProviderID) domain.ProviderChain {
	t.Helper()
	chain, err := domain.NewProviderChain(ids...)
	require.NoError(t, err)
	return chain
}
