package media

import (
	"context"
	"testing"
	"time"
)

func TestHeaderFilterPrependsHeaderZeroCopy(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)
	header := []byte("HDR:")
	f := NewHeaderFilter(q, header)

	q.Push([]byte("payload"), time.Unix(1, 0), 0)

	dst := make([]byte, 32)
	done := make(chan struct{})
	var size int
	f.GetNextFrame(dst, func(frameSize, truncated int, pts time.Time, dur time.Duration) {
		size = frameSize
		close(done)
	}, func() { close(done) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	drainUntil(t, sched, ctx, done)

	want := len(header) + len("payload")
	if size != want {
		t.Fatalf("frameSize = %d, want %d", size, want)
	}
	if string(dst[:size]) != "HDR:payload" {
		t.Fatalf("dst = %q, want %q", dst[:size], "HDR:payload")
	}
}

func TestHeaderFilterTooSmallDestinationClosesStream(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)
	f := NewHeaderFilter(q, []byte("HEADER"))

	dst := make([]byte, 3) // smaller than the 6-byte header
	closed := false
	f.GetNextFrame(dst, func(int, int, time.Time, time.Duration) {
		t.Error("on_got must not fire when the header itself doesn't fit")
	}, func() {
		closed = true
	})
	if !closed {
		t.Fatal("expected immediate on_close when destination is smaller than the header")
	}
}
