package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, path)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "incoming.yaml")
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(target, []byte("v0"), 0644))

	rec := &recorder{}
	w := New(rec.handle, target).WithDebounce(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte('a' + i)}, 0644))
	}
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))

	assert.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	abs, err := filepath.Abs(target)
	require.NoError(t, err)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.calls)
	for _, c := range rec.calls {
		assert.Equal(t, abs, c)
	}
	assert.Len(t, rec.calls, 1, "rapid writes should collapse into one call")
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(func(context.Context, string) error { return nil }, filepath.Join(t.TempDir(), "missing", "x.yaml"))
	err := w.Watch(context.Background())
	assert.Error(t, err)
}
