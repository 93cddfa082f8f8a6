package media

// Pipeline adapters
// ------------------
// ChunkFrameSource and RecorderSink connect the RTMP-specific message types
// in this package to the protocol-agnostic pull pipeline in
// internal/media: a publisher's audio/video chunk.Message stream becomes a
// core.Source, and a Recorder becomes a core.Sink-driven consumer of it,
// instead of the connection's read loop calling the recorder directly.

import (
	"encoding/binary"
	"sync"
	"time"

	core "github.com/alxayo/go-rtmp/internal/media"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/scheduler"
)

// chunkMailbox is a concurrency-safe handoff point: PushMessage is called
// from a connection's read-loop goroutine, but the underlying
// core.QueueFrameSource may only be touched from the scheduler's own
// goroutine. Messages sit here until the scheduler's trigger handler drains
// them on its own goroutine.
type chunkMailbox struct {
	mu   sync.Mutex
	msgs []*chunk.Message
}

func (b *chunkMailbox) push(msg *chunk.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()
}

func (b *chunkMailbox) drainAll() []*chunk.Message {
	b.mu.Lock()
	out := b.msgs
	b.msgs = nil
	b.mu.Unlock()
	return out
}

// ChunkFrameSource adapts a publisher's audio/video chunk.Message stream
// into a core.Source. Frames are tagged with their original FLV tag type
// and timestamp (5-byte prefix: 1-byte type, 4-byte big-endian timestamp)
// so a downstream consumer like RecorderSink can recover them without
// depending on *chunk.Message itself.
type ChunkFrameSource struct {
	*core.QueueFrameSource

	sched     *scheduler.Scheduler
	triggerID scheduler.EventTriggerID
	mailbox   chunkMailbox

	lastMS     uint32
	haveLastMS bool
}

// NewChunkFrameSource registers a scheduler trigger used as the cross-thread
// wakeup for PushMessage; maxFrameSize bounds the largest single tag this
// source is expected to produce (0 = unbounded hint).
func NewChunkFrameSource(sched *scheduler.Scheduler, maxFrameSize int) *ChunkFrameSource {
	c := &ChunkFrameSource{
		QueueFrameSource: core.NewQueueFrameSource(sched, maxFrameSize),
		sched:            sched,
	}
	c.triggerID = sched.CreateEventTrigger(func(any) { c.drain() })
	return c
}

// PushMessage may be called from any goroutine (normally a connection's
// read loop). It deposits msg in the mailbox and wakes the scheduler; the
// message is only actually enqueued onto the pull-mode queue once the
// trigger fires on the loop goroutine.
func (c *ChunkFrameSource) PushMessage(msg *chunk.Message) {
	if msg == nil || (msg.TypeID != 8 && msg.TypeID != 9) {
		return
	}
	c.mailbox.push(msg)
	if c.triggerID != 0 {
		c.sched.TriggerEvent(c.triggerID, nil)
	}
}

// drain runs on the scheduler goroutine: every mailbox message becomes one
// frame on the underlying queue.
func (c *ChunkFrameSource) drain() {
	for _, msg := range c.mailbox.drainAll() {
		ts := msg.Timestamp
		// RTMP interleaves audio and video on independent per-type
		// timestamps; arrival order isn't guaranteed globally
		// non-decreasing even though each elementary stream is. The core
		// pipeline requires a non-decreasing presentation time (P6), so
		// clamp rather than let an occasional interleave ordering panic
		// the recorder.
		if c.haveLastMS && ts < c.lastMS {
			ts = c.lastMS
		}
		c.lastMS = ts
		c.haveLastMS = true

		frame := make([]byte, 5+len(msg.Payload))
		frame[0] = byte(msg.TypeID)
		binary.BigEndian.PutUint32(frame[1:5], ts)
		copy(frame[5:], msg.Payload)

		c.Push(frame, time.UnixMilli(int64(ts)), 0)
	}
}

// CloseSource ends the stream and frees the trigger slot it occupies.
func (c *ChunkFrameSource) CloseSource() {
	if c.triggerID != 0 {
		c.sched.DeleteEventTrigger(c.triggerID)
		c.triggerID = 0
	}
	c.Close()
}

// RecorderSink drives a Recorder by pulling frames from a core.Source
// (normally a *ChunkFrameSource) instead of having them written directly
// from the connection's read loop.
type RecorderSink struct {
	recorder *Recorder
	sink     *core.FrameSink
}

// NewRecorderSink wraps recorder in a pull-mode sink with the given
// internal buffer size (must be at least as large as the biggest single
// video keyframe expected).
func NewRecorderSink(recorder *Recorder, bufSize int) *RecorderSink {
	return &RecorderSink{recorder: recorder, sink: core.NewFrameSink(bufSize)}
}

// Start begins pulling frames from source until it closes or Stop is
// called. onDone fires at most once, when the source closes; Stop does not
// fire it, mirroring core.Sink's contract.
func (r *RecorderSink) Start(source core.Source, onDone func(error)) error {
	return r.sink.StartPlaying(source, func(frame []byte, truncated int, presentationTime time.Time, duration time.Duration) {
		if len(frame) < 5 {
			return
		}
		tagType := frame[0]
		timestamp := binary.BigEndian.Uint32(frame[1:5])
		r.recorder.WriteFrame(tagType, timestamp, frame[5:])
	}, onDone)
}

func (r *RecorderSink) Stop() { r.sink.StopPlaying() }

func (r *RecorderSink) IsPlaying() bool { return r.sink.IsPlaying() }
