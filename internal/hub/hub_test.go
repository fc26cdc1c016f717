package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(nil)
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(h)
	defer srv.Close()

	reqCtx, cancelReq := context.WithCancel(context.Background())
	defer cancelReq()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.Broadcast("cycle_committed", map[string]string{"dataset": "nb"})

	lines := readEvent(t, r)
	assert.Equal(t, []string{"id: 1", "event: cycle_committed", `data: {"dataset":"nb"}`}, lines)
	assert.Equal(t, uint64(1), h.LastEventID())

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, h.ClientCount())
}

// readEvent returns the field lines of the next event, skipping comments
func readEvent(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, ":"):
		case line == "":
			if len(lines) > 0 {
				return lines
			}
		default:
			lines = append(lines, line)
		}
	}
}

func TestReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(nil)
	go h.Run(ctx)

	h.Broadcast("cycle_committed", 1)
	h.Broadcast("cycle_flagged", 2)
	h.Broadcast("cycle_committed", 3)
	require.Eventually(t, func() bool { return h.LastEventID() == 3 }, time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(h)
	defer srv.Close()

	reqCtx, cancelReq := context.WithCancel(context.Background())
	defer cancelReq()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, []string{"id: 2", "event: cycle_flagged", "data: 2"}, readEvent(t, r))
	assert.Equal(t, []string{"id: 3", "event: cycle_committed", "data: 3"}, readEvent(t, r))
}

func TestBadLastEventID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(nil)
	go h.Run(ctx)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Last-Event-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBroadcastUnmarshalable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(nil)
	go h.Run(ctx)

	assert.NotPanics(t, func() { h.Broadcast("bad", make(chan int)) })
	h.Broadcast("good", 1)
	require.Eventually(t, func() bool { return h.LastEventID() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServeAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(nil)
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
