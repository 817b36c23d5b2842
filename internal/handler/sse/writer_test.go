package sse

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WriteEvent("posts", map[string]int{"count": 2}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteKeepAlive(); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	want := "id: 1\nevent: posts\ndata: {\"count\":2}\n\n: keepalive\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

type countingWriter struct {
	n    atomic.Int32
	fail int32
}

func (c *countingWriter) WriteKeepAlive() error {
	if c.n.Add(1) >= c.fail {
		return io.ErrClosedPipe
	}
	return nil
}

func TestTickerKeepAliveStopsOnWriteError(t *testing.T) {
	k := NewTickerKeepAlive(time.Millisecond)
	defer k.Stop()
	cw := &countingWriter{fail: 3}

	select {
	case <-k.Start(cw, slog.New(slog.NewTextHandler(io.Discard, nil))):
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive did not stop after a failed write")
	}
	if got := cw.n.Load(); got != 3 {
		t.Errorf("writes = %d, want 3", got)
	}
}

func TestTickerKeepAliveStop(t *testing.T) {
	k := NewTickerKeepAlive(time.Hour)
	stopped := k.Start(&countingWriter{fail: 100}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	k.Stop()
	k.Stop()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive did not stop")
	}
}
