// Package media implements the framed pipeline: a pull-mode,
// one-frame-at-a-time dataflow of sources, filters, and sinks. Every stage
// requests its next frame and receives it (or end-of-stream) through a
// completion callback; backpressure is implicit because a stage that
// issues no pull makes no demand on its upstream. All I/O and timing the
// pipeline needs goes through a *scheduler.Scheduler.
package media

import (
	"errors"
	"time"

	"github.com/alxayo/go-rtmp/internal/scheduler"
)

// ErrPullAlreadyOutstanding is the panic value raised when GetNextFrame is
// called on a source that already has a pull outstanding. Per spec.md §7
// item 7 this is a programming bug, not a recoverable error: silently
// accepting a second concurrent pull would corrupt the shared destination
// buffer, so implementations must fail loudly rather than queue it.
var ErrPullAlreadyOutstanding = errors.New("media: GetNextFrame called while a pull is already outstanding")

// OnGotFunc is invoked exactly once per successful pull, never together
// with OnCloseFunc. frameSize is the number of bytes actually written into
// the destination buffer (0 <= frameSize <= len(dst)); truncatedBytes
// reports how many additional bytes the frame had that did not fit.
type OnGotFunc func(frameSize, truncatedBytes int, presentationTime time.Time, duration time.Duration)

// OnCloseFunc is invoked exactly once when a source has no more frames to
// produce (end of stream, upstream error, or unrecoverable truncation in a
// filter). It is never invoked together with the OnGotFunc for the same
// pull.
type OnCloseFunc func()

// Source is an active object producing a lazy, finite sequence of frames,
// pull-driven one frame at a time (spec.md §3, §4.3).
type Source interface {
	// GetNextFrame requests the next frame into dst. dst must remain valid
	// until the completion callback runs. At most one pull may be
	// outstanding at a time; calling GetNextFrame again before the
	// previous pull completes panics with ErrPullAlreadyOutstanding.
	GetNextFrame(dst []byte, onGot OnGotFunc, onClose OnCloseFunc)

	// StopGettingFrames cancels the outstanding pull, if any, without
	// invoking either callback. Safe to call when no pull is outstanding.
	StopGettingFrames()

	// IsCurrentlyAwaitingData reports whether a pull is outstanding.
	IsCurrentlyAwaitingData() bool

	// MaxFrameSize is an optional hint; 0 means unknown/unbounded.
	MaxFrameSize() int
}

// baseSource holds the pull-exclusivity bookkeeping (P4) shared by every
// concrete source and filter in this package, plus the deferred-callback
// plumbing: per spec.md §3, completion callbacks are invoked from the
// scheduler thread, not synchronously from inside the call that issued
// them, so a chain of sources can't grow the stack unboundedly. A nil
// scheduler is permitted (tests may run a source directly, synchronously)
// but production sources should always be constructed with one.
type baseSource struct {
	sched    *scheduler.Scheduler
	awaiting bool

	lastPresentationTime time.Time
	havePresentationTime bool
}

func (b *baseSource) beginPull() {
	if b.awaiting {
		panic(ErrPullAlreadyOutstanding)
	}
	b.awaiting = true
}

// checkMonotone records presentationTime and panics if it regresses,
// enforcing P6 (presentation time is monotonically non-decreasing within
// one source).
func (b *baseSource) checkMonotone(presentationTime time.Time) {
	if b.havePresentationTime && presentationTime.Before(b.lastPresentationTime) {
		panic("media: presentation time regressed within a single source")
	}
	b.lastPresentationTime = presentationTime
	b.havePresentationTime = true
}

// deliver completes the current pull with a frame, deferring the callback
// through the scheduler when one is available.
func (b *baseSource) deliver(onGot OnGotFunc, frameSize, truncated int, presentationTime time.Time, duration time.Duration) {
	b.checkMonotone(presentationTime)
	b.awaiting = false
	if b.sched != nil {
		b.sched.ScheduleDelayedTask(0, func(any) {
			onGot(frameSize, truncated, presentationTime, duration)
		}, nil)
		return
	}
	onGot(frameSize, truncated, presentationTime, duration)
}

// closeStream completes the current pull with end-of-stream.
func (b *baseSource) closeStream(onClose OnCloseFunc) {
	b.awaiting = false
	if onClose == nil {
		return
	}
	if b.sched != nil {
		b.sched.ScheduleDelayedTask(0, func(any) { onClose() }, nil)
		return
	}
	onClose()
}

// stop clears the outstanding-pull flag without invoking any callback.
func (b *baseSource) stop() {
	b.awaiting = false
}

func (b *baseSource) IsCurrentlyAwaitingData() bool { return b.awaiting }
