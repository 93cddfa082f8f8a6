package media

import (
	"io"
	"time"

	"github.com/alxayo/go-rtmp/internal/scheduler"
)

// ByteStreamSource adapts an io.Reader into a Source, carving it into
// frames no larger than the caller's destination buffer. It is the
// pull-mode analogue of a plain file/byte-stream source: each pull reads
// as much as fits in dst, so the frame boundaries it produces are an
// artifact of the caller's buffer size, not of the underlying data (the
// opposite of QueueFrameSource, whose frame boundaries are caller-defined
// and may be truncated to fit).
type ByteStreamSource struct {
	baseSource
	r             io.Reader
	frameDuration time.Duration
	clock         func() time.Time
}

// NewByteStreamSource wraps r. sched may be nil for direct/synchronous use
// in tests. frameDuration is reported as every delivered frame's duration
// (0 if the caller doesn't care).
func NewByteStreamSource(sched *scheduler.Scheduler, r io.Reader, frameDuration time.Duration) *ByteStreamSource {
	return &ByteStreamSource{
		baseSource:    baseSource{sched: sched},
		r:             r,
		frameDuration: frameDuration,
		clock:         time.Now,
	}
}

func (s *ByteStreamSource) MaxFrameSize() int { return 0 }

func (s *ByteStreamSource) GetNextFrame(dst []byte, onGot OnGotFunc, onClose OnCloseFunc) {
	s.beginPull()
	if len(dst) == 0 {
		s.deliver(onGot, 0, 0, s.clock(), s.frameDuration)
		return
	}

	n, err := io.ReadFull(s.r, dst)
	if n == 0 {
		if err != nil {
			s.closeStream(onClose)
			return
		}
	}
	// io.ErrUnexpectedEOF means fewer than len(dst) bytes were available;
	// that short read is still a valid final frame.
	s.deliver(onGot, n, 0, s.clock(), s.frameDuration)
}

func (s *ByteStreamSource) StopGettingFrames() { s.stop() }
