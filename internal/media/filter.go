package media

import "time"

// NopFilter passes frames through from upstream untouched: it exists so a
// pipeline stage (a sink, or another filter) always has a Source to pull
// from even when no transformation is needed, and it demonstrates the
// zero-copy forwarding pattern every other filter in this package builds
// on -- the destination buffer passed to GetNextFrame goes straight to
// upstream with no intermediate copy.
type NopFilter struct {
	upstream Source
}

func NewNopFilter(upstream Source) *NopFilter { return &NopFilter{upstream: upstream} }

func (f *NopFilter) MaxFrameSize() int { return f.upstream.MaxFrameSize() }

func (f *NopFilter) GetNextFrame(dst []byte, onGot OnGotFunc, onClose OnCloseFunc) {
	f.upstream.GetNextFrame(dst, onGot, onClose)
}

func (f *NopFilter) StopGettingFrames()           { f.upstream.StopGettingFrames() }
func (f *NopFilter) IsCurrentlyAwaitingData() bool { return f.upstream.IsCurrentlyAwaitingData() }

// HeaderFilter prepends a fixed header in front of every frame pulled from
// upstream, writing the header directly into the caller's destination
// buffer and forwarding only the remainder upstream -- still zero-copy for
// the upstream payload itself. If the destination is smaller than the
// header, the filter cannot make any progress: it ends the stream through
// onClose rather than deliver a partial header. The size of the shortfall
// is not reported to the caller.
type HeaderFilter struct {
	baseSource
	upstream Source
	header   []byte
}

func NewHeaderFilter(upstream Source, header []byte) *HeaderFilter {
	return &HeaderFilter{upstream: upstream, header: header}
}

func (f *HeaderFilter) MaxFrameSize() int {
	if m := f.upstream.MaxFrameSize(); m > 0 {
		return m + len(f.header)
	}
	return 0
}

func (f *HeaderFilter) GetNextFrame(dst []byte, onGot OnGotFunc, onClose OnCloseFunc) {
	f.beginPull()
	if len(dst) < len(f.header) {
		// The pipeline cannot make progress: there isn't even room for the
		// header, let alone any payload. Treat it as end of stream rather
		// than firing on_got with a bogus negative payload size -- that
		// preserves the on_got/on_close exclusivity every stage downstream
		// relies on.
		f.closeStream(onClose)
		return
	}

	n := copy(dst, f.header)
	remaining := dst[n:]
	f.upstream.GetNextFrame(remaining, func(frameSize, truncated int, presentationTime time.Time, duration time.Duration) {
		f.awaiting = false
		onGot(frameSize+n, truncated, presentationTime, duration)
	}, func() {
		f.awaiting = false
		onClose()
	})
}

func (f *HeaderFilter) StopGettingFrames() {
	f.stop()
	f.upstream.StopGettingFrames()
}
