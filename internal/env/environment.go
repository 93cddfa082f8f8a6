// Package env provides the process-wide Environment: a handle to the
// scheduler plus the diagnostic state every layer above it shares (the
// last-result message string and the message-output sink).
package env

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alxayo/go-rtmp/internal/scheduler"
)

// Environment is the single process-wide context every scheduler client
// (the RTMP server, relay, recorder) is constructed with. There is exactly
// one Environment per running instance; it lives for the program's
// duration.
type Environment struct {
	sched *scheduler.Scheduler
	out   io.Writer
	log   *slog.Logger

	mu        sync.Mutex
	resultMsg string
}

// New creates an Environment bound to sched. out receives diagnostic
// output (defaults to os.Stderr if nil).
func New(sched *scheduler.Scheduler, out io.Writer, log *slog.Logger) *Environment {
	if out == nil {
		out = os.Stderr
	}
	if log == nil {
		log = slog.Default()
	}
	return &Environment{sched: sched, out: out, log: log}
}

// Scheduler returns the bound scheduler.
func (e *Environment) Scheduler() *scheduler.Scheduler { return e.sched }

// Out returns the message-output sink.
func (e *Environment) Out() io.Writer { return e.out }

// Logger returns the environment's structured logger.
func (e *Environment) Logger() *slog.Logger { return e.log }

// ResultMsg returns the most recently recorded diagnostic string. It mirrors
// the reference design's thread-local "fResultMsg" but is guarded by a mutex
// since callers may be scheduler clients running a goroutine each.
func (e *Environment) ResultMsg() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultMsg
}

// SetResultMsg records diagnostic context for the next failed operation.
// It never returns an error itself: per spec.md §7, core operations signal
// success/failure through their own return value, and SetResultMsg only
// attaches human-readable context.
func (e *Environment) SetResultMsg(msg string) {
	e.mu.Lock()
	e.resultMsg = msg
	e.mu.Unlock()
}

// ClearResultMsg resets the diagnostic string, typically after a caller has
// consumed it.
func (e *Environment) ClearResultMsg() {
	e.mu.Lock()
	e.resultMsg = ""
	e.mu.Unlock()
}
