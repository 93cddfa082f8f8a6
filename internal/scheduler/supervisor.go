package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
)

// loopService adapts a Scheduler's event loop to suture's Service
// interface so it can be supervised alongside the rest of a long-running
// process's services.
type loopService struct {
	sched *Scheduler
	log   *slog.Logger
}

func (l *loopService) Serve(ctx context.Context) error {
	return l.sched.DoEventLoop(ctx)
}

func (l *loopService) String() string { return "scheduler-loop" }

// NewSupervisedLoop wraps sched's event loop in a suture supervisor tree.
// The core itself has no built-in recovery from a callback panic
// (spec.md §9 notes the reference design simply crashes); wrapping the
// loop one level up, rather than adding recover() inside SingleStep,
// keeps the loop's own cooperative-scheduling invariants unchanged while
// still giving the process a chance to restart cleanly with backoff.
func NewSupervisedLoop(sched *Scheduler, log *slog.Logger) *suture.Supervisor {
	if log == nil {
		log = slog.Default()
	}
	sup := suture.New("rtmp-scheduler", suture.Spec{
		EventHook: func(ev suture.Event) {
			log.Warn("scheduler supervisor event", "event", ev.String())
		},
		FailureThreshold: 5,
		FailureBackoff:   5 * time.Second,
	})
	sup.Add(&loopService{sched: sched, log: log})
	return sup
}
