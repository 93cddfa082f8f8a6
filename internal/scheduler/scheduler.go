package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alxayo/go-rtmp/internal/errors"
)

// triggerSlot is one of the fixed trigger registrations. pending is the
// only field ever touched from outside the event-loop goroutine; it uses
// an atomic test-and-set so concurrent TriggerEvent calls from arbitrary
// goroutines never race with the loop's own read-and-clear. ctx is a plain
// atomic pointer swap: per spec.md §5, a concurrent TriggerEvent may
// overwrite ctx before the previous trigger is handled, and that is by
// design — callers needing per-call context must use separate triggers.
type triggerSlot struct {
	fn      func(any)
	ctx     atomic.Pointer[any]
	pending atomic.Bool
}

// Scheduler is the single-threaded, cooperative event loop: it multiplexes
// I/O readiness, the timer queue, and cross-goroutine triggers on whichever
// goroutine calls DoEventLoop or SingleStep. Every method except
// TriggerEvent must only be called from that goroutine.
type Scheduler struct {
	timers  *timerQueue
	handles *handlerSet
	io      poller

	triggers            [maxEventTriggers]triggerSlot
	lastUsedTriggerNum  int
	lastUsedTriggerMask EventTriggerID

	backendName string
	now         func() time.Time
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source; intended for tests that
// need deterministic control over "now".
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New constructs a Scheduler using the best available I/O backend for the
// current platform (epoll on Linux, select on other unix systems, a
// degraded sleep-based fallback elsewhere). A backend init failure is
// fatal only at construction — spec.md §7 item 1 — and is returned as a
// *errors.SchedulerError rather than terminating the process (spec.md §9's
// design note replacing the reference design's internalError()/exit()).
func New(opts ...Option) (*Scheduler, error) {
	io, err := newDefaultPoller()
	if err != nil {
		return nil, &errors.SchedulerError{Op: "scheduler.new:" + defaultBackendName, Err: err}
	}
	s := &Scheduler{
		timers:              newTimerQueue(),
		handles:             newHandlerSet(),
		io:                  io,
		backendName:         defaultBackendName,
		lastUsedTriggerNum:  maxEventTriggers - 1,
		lastUsedTriggerMask: 1,
		now:                 time.Now,
	}
	return s, nil
}

// Backend reports which I/O multiplexor this scheduler is using.
func (s *Scheduler) Backend() string { return s.backendName }

// Close releases the underlying I/O backend. The scheduler must not be
// used afterwards.
func (s *Scheduler) Close() error { return s.io.Close() }

// ScheduleDelayedTask schedules fn(ctx) to run after delay and returns a
// token that can cancel it before it fires.
func (s *Scheduler) ScheduleDelayedTask(delay time.Duration, fn func(ctx any), ctx any) TaskToken {
	return s.timers.Add(s.now(), delay, fn, ctx)
}

// UnscheduleDelayedTask cancels the task referenced by *token, if it has
// not already fired, and sets *token to NoTask. It is idempotent: calling
// it again, or with an unknown/zero token, is a silent no-op.
func (s *Scheduler) UnscheduleDelayedTask(token *TaskToken) {
	if token == nil {
		return
	}
	s.timers.Remove(*token)
	*token = NoTask
}

// SetBackgroundHandling installs, replaces, or removes the I/O handler for
// fd. A zero condition mask removes any existing handler.
func (s *Scheduler) SetBackgroundHandling(fd int, condition IOCondition, fn func(ctx any, fired IOCondition), ctx any) error {
	if condition == 0 {
		s.handles.Clear(fd)
		return s.io.Remove(fd)
	}
	existing := s.handles.Lookup(fd)
	s.handles.Assign(fd, condition, fn, ctx)
	if existing != nil {
		return s.io.Modify(fd, condition)
	}
	return s.io.Add(fd, condition)
}

// MoveSocketHandling re-keys a handler from oldFD to newFD (e.g. because
// the underlying socket was duped onto a new fd) without invoking it.
func (s *Scheduler) MoveSocketHandling(oldFD, newFD int) error {
	d := s.handles.Move(oldFD, newFD)
	if d == nil {
		return nil
	}
	if err := s.io.Remove(oldFD); err != nil {
		return err
	}
	return s.io.Add(newFD, d.condition)
}

// CreateEventTrigger allocates a free trigger slot and returns its
// single-bit id, cycling through slots round-robin so repeated
// create/delete does not starve any one slot. It returns 0 if every slot
// is in use.
func (s *Scheduler) CreateEventTrigger(fn func(ctx any)) EventTriggerID {
	i := s.lastUsedTriggerNum
	mask := s.lastUsedTriggerMask

	for {
		i = (i + 1) % maxEventTriggers
		mask >>= 1
		if mask == 0 {
			mask = 1 << (maxEventTriggers - 1)
		}

		if s.triggers[i].fn == nil {
			s.triggers[i].fn = fn
			s.triggers[i].ctx.Store(nil)
			s.triggers[i].pending.Store(false)
			s.lastUsedTriggerMask = mask
			s.lastUsedTriggerNum = i
			return mask
		}
		if i == s.lastUsedTriggerNum {
			break
		}
	}
	return 0
}

// DeleteEventTrigger frees the trigger slot(s) referenced by id. id should
// have exactly one bit set; if the caller ORs several bits together, every
// matching slot is cleared (the lenient behaviour the reference scheduler
// documents and that this design preserves, per spec.md §9).
func (s *Scheduler) DeleteEventTrigger(id EventTriggerID) {
	mask := EventTriggerID(1 << (maxEventTriggers - 1))
	for i := 0; i < maxEventTriggers; i++ {
		if id&mask != 0 {
			s.triggers[i].fn = nil
			s.triggers[i].ctx.Store(nil)
			s.triggers[i].pending.Store(false)
		}
		mask >>= 1
	}
}

// TriggerEvent is the only scheduler method safe to call from outside the
// event-loop goroutine (or from a signal handler). It records ctx and
// atomically marks every slot named by id as pending.
func (s *Scheduler) TriggerEvent(id EventTriggerID, ctx any) {
	mask := EventTriggerID(1 << (maxEventTriggers - 1))
	for i := 0; i < maxEventTriggers; i++ {
		if id&mask != 0 {
			c := ctx
			s.triggers[i].ctx.Store(&c)
			s.triggers[i].pending.Store(true)
		}
		mask >>= 1
	}
}

// SingleStep runs one iteration of the loop: it waits for I/O readiness up
// to the earlier of the next timer deadline and maxDelay (0 meaning "no
// extra cap"), then fires any ready I/O handler, then the first pending
// trigger, then every due timer. This ordering — I/O, then trigger, then
// timer — is load-bearing (P7) and mirrors the reference scheduler's
// comment that triggers are handled after a socket callback so a trigger
// that reacts to shutdown sees a consistent handler set.
func (s *Scheduler) SingleStep(maxDelay time.Duration) error {
	now := s.now()
	deadline, hasAlarm := s.timers.TimeToNextAlarm(now)
	if !hasAlarm {
		deadline = maxStepDelay
	}
	if maxDelay > 0 && maxDelay < deadline {
		deadline = maxDelay
	}
	deadline = clampDelay(deadline)

	ready, err := s.io.Wait(deadline)
	if err != nil {
		return fmt.Errorf("scheduler: io wait: %w", err)
	}
	for _, r := range ready {
		d := s.handles.Lookup(r.fd)
		if d == nil {
			continue // defensively ignore readiness on an unknown fd
		}
		fired := d.condition & r.conditions
		if fired != 0 {
			d.fn(d.ctx, fired)
		}
	}

	s.fireOneTrigger()

	s.timers.HandleAlarms(s.now())
	return nil
}

// fireOneTrigger handles at most one pending trigger per step, matching
// the reference design's single-event-per-step granularity. It takes the
// fast path when exactly the last-used slot is pending, otherwise scans
// round-robin from the slot after the last one handled so every trigger
// eventually gets a turn.
func (s *Scheduler) fireOneTrigger() {
	lastIdx := s.lastUsedTriggerNum
	if s.triggers[lastIdx].fn != nil && s.triggers[lastIdx].pending.CompareAndSwap(true, false) {
		s.invokeTrigger(lastIdx)
		return
	}

	i := lastIdx
	for {
		i = (i + 1) % maxEventTriggers
		if s.triggers[i].fn != nil && s.triggers[i].pending.CompareAndSwap(true, false) {
			s.invokeTrigger(i)
			s.lastUsedTriggerNum = i
			s.lastUsedTriggerMask = 1 << (maxEventTriggers - 1 - i)
			return
		}
		if i == lastIdx {
			return
		}
	}
}

func (s *Scheduler) invokeTrigger(i int) {
	fn := s.triggers[i].fn
	ctxPtr := s.triggers[i].ctx.Load()
	var ctx any
	if ctxPtr != nil {
		ctx = *ctxPtr
	}
	fn(ctx)
}

// DoEventLoop runs SingleStep repeatedly until ctx is cancelled. Each step
// waits at most loopStepCap, so a cancellation, or a trigger fired from
// another goroutine while nothing else is ready, is noticed within that time.
func (s *Scheduler) DoEventLoop(ctx context.Context) error {
	const loopStepCap = 10 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.SingleStep(loopStepCap); err != nil {
			return err
		}
	}
}
