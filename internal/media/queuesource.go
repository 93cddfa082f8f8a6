package media

import (
	"time"

	"github.com/alxayo/go-rtmp/internal/scheduler"
)

type queuedFrame struct {
	data             []byte
	presentationTime time.Time
	duration         time.Duration
}

// QueueFrameSource is a Source whose frame boundaries are defined by
// whoever calls Push, not by the destination buffer size: each pushed
// frame is delivered as one unit, truncated to fit dst when it doesn't
// (spec.md §4.3's truncation edge case). It is the building block for any
// source whose upstream already hands over discrete messages -- chunked
// protocol payloads, demuxed access units, and so on.
//
// Push and Close must only be called from the goroutine driving the
// scheduler passed to NewQueueFrameSource (normally the scheduler's own
// event loop, via a trigger); QueueFrameSource itself does no locking,
// matching the core's single-threaded discipline.
type QueueFrameSource struct {
	baseSource
	maxFrameSize int
	pending      []queuedFrame
	closed       bool

	waitingDst     []byte
	waitingOnGot   OnGotFunc
	waitingOnClose OnCloseFunc
}

// NewQueueFrameSource constructs an empty queue source. maxFrameSize is a
// hint only (0 means unknown); frames larger than a caller's destination
// are truncated, not rejected.
func NewQueueFrameSource(sched *scheduler.Scheduler, maxFrameSize int) *QueueFrameSource {
	return &QueueFrameSource{
		baseSource:   baseSource{sched: sched},
		maxFrameSize: maxFrameSize,
	}
}

func (q *QueueFrameSource) MaxFrameSize() int { return q.maxFrameSize }

// Push enqueues a frame. If a pull is already waiting for data, it is
// satisfied immediately (still deferred through the scheduler via
// deliver); otherwise the frame sits in pending until the next pull.
func (q *QueueFrameSource) Push(data []byte, presentationTime time.Time, duration time.Duration) {
	if q.closed {
		return
	}
	if q.awaiting && q.waitingDst != nil {
		dst, onGot := q.waitingDst, q.waitingOnGot
		q.waitingDst, q.waitingOnGot, q.waitingOnClose = nil, nil, nil
		q.deliverFrame(dst, onGot, data, presentationTime, duration)
		return
	}
	q.pending = append(q.pending, queuedFrame{data: data, presentationTime: presentationTime, duration: duration})
}

// Close marks end of stream. If a pull is outstanding it is closed
// immediately; otherwise the close is delivered on the next pull once
// pending frames are drained.
func (q *QueueFrameSource) Close() {
	if q.closed {
		return
	}
	q.closed = true
	if q.awaiting && q.waitingDst != nil {
		onClose := q.waitingOnClose
		q.waitingDst, q.waitingOnGot, q.waitingOnClose = nil, nil, nil
		q.closeStream(onClose)
	}
}

func (q *QueueFrameSource) GetNextFrame(dst []byte, onGot OnGotFunc, onClose OnCloseFunc) {
	q.beginPull()
	if len(q.pending) > 0 {
		f := q.pending[0]
		q.pending = q.pending[1:]
		q.deliverFrame(dst, onGot, f.data, f.presentationTime, f.duration)
		return
	}
	if q.closed {
		q.closeStream(onClose)
		return
	}
	q.waitingDst, q.waitingOnGot, q.waitingOnClose = dst, onGot, onClose
}

func (q *QueueFrameSource) deliverFrame(dst []byte, onGot OnGotFunc, data []byte, presentationTime time.Time, duration time.Duration) {
	n := copy(dst, data)
	truncated := len(data) - n
	q.deliver(onGot, n, truncated, presentationTime, duration)
}

func (q *QueueFrameSource) StopGettingFrames() {
	q.waitingDst, q.waitingOnGot, q.waitingOnClose = nil, nil, nil
	q.stop()
}
