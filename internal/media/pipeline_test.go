package media

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alxayo/go-rtmp/internal/scheduler"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New()
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Scenario 5: a 4096-byte source pulled through a no-op filter into a
// 1024-byte sink buffer yields exactly four full frames and one on_close.
func TestPipelineByteStreamThroughNopFilterToSink(t *testing.T) {
	sched := newTestScheduler(t)

	payload := bytes.Repeat([]byte{0xAB}, 4096)
	src := NewByteStreamSource(sched, bytes.NewReader(payload), 0)
	filter := NewNopFilter(src)
	sink := NewFrameSink(1024)

	var frameSizes []int
	var totalBytes int
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sink.StartPlaying(filter,
		func(frame []byte, truncated int, pts time.Time, dur time.Duration) {
			frameSizes = append(frameSizes, len(frame))
			totalBytes += len(frame)
			if truncated != 0 {
				t.Errorf("unexpected truncation: %d", truncated)
			}
		},
		func(err error) {
			if err != nil {
				t.Errorf("onDone err = %v, want nil", err)
			}
			cancel()
		},
	)
	if err != nil {
		t.Fatalf("StartPlaying: %v", err)
	}

	if loopErr := sched.DoEventLoop(ctx); loopErr != nil && loopErr != context.Canceled {
		t.Fatalf("DoEventLoop: %v", loopErr)
	}

	if len(frameSizes) != 4 {
		t.Fatalf("frame count = %d, want 4 (got sizes %v)", len(frameSizes), frameSizes)
	}
	for i, sz := range frameSizes {
		if sz != 1024 {
			t.Errorf("frame %d size = %d, want 1024", i, sz)
		}
	}
	if totalBytes != 4096 {
		t.Errorf("total bytes = %d, want 4096", totalBytes)
	}
	if sink.IsPlaying() {
		t.Error("sink still playing after on_close")
	}
}

// Scenario 6: a single 2000-byte frame pulled into a 1024-byte destination
// is truncated by exactly 976 bytes, and the source remains pullable
// afterward.
func TestQueueFrameSourceTruncatesOversizeFrame(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)

	frame := bytes.Repeat([]byte{0x42}, 2000)
	q.Push(frame, time.Unix(0, 0), 0)

	dst := make([]byte, 1024)
	done := make(chan struct{})
	var gotSize, gotTruncated int

	q.GetNextFrame(dst, func(frameSize, truncated int, pts time.Time, dur time.Duration) {
		gotSize = frameSize
		gotTruncated = truncated
		close(done)
	}, func() {
		t.Error("unexpected on_close")
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	drainUntil(t, sched, ctx, done)

	if gotSize != 1024 {
		t.Errorf("frameSize = %d, want 1024", gotSize)
	}
	if gotTruncated != 976 {
		t.Errorf("truncatedBytes = %d, want 976", gotTruncated)
	}
	if q.IsCurrentlyAwaitingData() {
		t.Error("source should not be mid-pull after delivery")
	}

	// The source must remain usable: push and pull a second, smaller frame.
	q.Push([]byte("ok"), time.Unix(1, 0), 0)
	done2 := make(chan struct{})
	var gotSize2 int
	q.GetNextFrame(dst, func(frameSize, truncated int, pts time.Time, dur time.Duration) {
		gotSize2 = frameSize
		close(done2)
	}, func() { close(done2) })
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	drainUntil(t, sched, ctx2, done2)
	if gotSize2 != 2 {
		t.Errorf("second pull frameSize = %d, want 2", gotSize2)
	}
}

// P4: a second concurrent pull on the same source panics rather than being
// silently queued or corrupting the outstanding one.
func TestPullExclusivityPanics(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)

	dst := make([]byte, 16)
	q.GetNextFrame(dst, func(int, int, time.Time, time.Duration) {}, func() {})

	defer func() {
		r := recover()
		if r != ErrPullAlreadyOutstanding {
			t.Fatalf("recover() = %v, want ErrPullAlreadyOutstanding", r)
		}
	}()
	q.GetNextFrame(dst, func(int, int, time.Time, time.Duration) {}, func() {})
	t.Fatal("expected panic on concurrent pull")
}

// P6: presentation time must not regress within a single source.
func TestPresentationTimeMustNotRegress(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)

	dst := make([]byte, 16)
	done := make(chan struct{})
	q.Push([]byte("a"), time.Unix(10, 0), 0)
	q.GetNextFrame(dst, func(int, int, time.Time, time.Duration) { close(done) }, func() { close(done) })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	drainUntil(t, sched, ctx, done)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on regressed presentation time")
		}
	}()
	q.Push([]byte("b"), time.Unix(5, 0), 0) // earlier than the prior frame
	done2 := make(chan struct{})
	q.GetNextFrame(dst, func(int, int, time.Time, time.Duration) { close(done2) }, func() { close(done2) })
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	drainUntil(t, sched, ctx2, done2)
}

// P5: a sink's on_done fires exactly once even if StopPlaying races with
// source closure.
func TestSinkOnDoneFiresExactlyOnce(t *testing.T) {
	sched := newTestScheduler(t)
	q := NewQueueFrameSource(sched, 0)
	sink := NewFrameSink(16)

	var doneCalls int
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := sink.StartPlaying(q, func([]byte, int, time.Time, time.Duration) {}, func(error) {
		doneCalls++
		cancel()
	}); err != nil {
		t.Fatalf("StartPlaying: %v", err)
	}
	q.Close()

	if err := sched.DoEventLoop(ctx); err != nil && err != context.Canceled {
		t.Fatalf("DoEventLoop: %v", err)
	}
	sink.StopPlaying() // must not re-fire on_done
	if doneCalls != 1 {
		t.Fatalf("onDone called %d times, want 1", doneCalls)
	}
}

// drainUntil runs the scheduler's event loop until done is closed or ctx
// expires.
func drainUntil(t *testing.T, sched *scheduler.Scheduler, ctx context.Context, done <-chan struct{}) {
	t.Helper()
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := sched.DoEventLoop(loopCtx); err != nil && err != context.Canceled {
		t.Fatalf("DoEventLoop: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("timed out waiting for completion")
	}
}
