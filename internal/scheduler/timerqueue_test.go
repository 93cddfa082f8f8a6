package scheduler

import (
	"testing"
	"time"
)

func TestTimerQueueOrdering(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)

	var fired []string
	record := func(name string) func(any) {
		return func(any) { fired = append(fired, name) }
	}

	q.Add(base, 30*time.Millisecond, record("c"), nil)
	q.Add(base, 10*time.Millisecond, record("a"), nil)
	q.Add(base, 20*time.Millisecond, record("b"), nil)

	q.HandleAlarms(base.Add(100 * time.Millisecond))

	want := []string{"a", "b", "c"}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired[%d] = %q, want %q (P1: non-decreasing fire order)", i, fired[i], want[i])
		}
	}
}

func TestTimerQueueEqualFireTimeInsertionOrder(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)

	var fired []int
	q.Add(base, 5*time.Millisecond, func(any) { fired = append(fired, 1) }, nil)
	q.Add(base, 5*time.Millisecond, func(any) { fired = append(fired, 2) }, nil)
	q.Add(base, 5*time.Millisecond, func(any) { fired = append(fired, 3) }, nil)

	q.HandleAlarms(base.Add(5 * time.Millisecond))
	if len(fired) != 3 || fired[0] != 1 || fired[1] != 2 || fired[2] != 3 {
		t.Fatalf("fired = %v, want insertion order [1 2 3]", fired)
	}
}

func TestTimerQueueCancelBeforeFire(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)

	aFired := false
	bFired := false
	tokA := q.Add(base, 50*time.Millisecond, func(any) { aFired = true }, nil)
	q.Add(base, 60*time.Millisecond, func(any) { bFired = true }, nil)

	if ok := q.Remove(tokA); !ok {
		t.Fatal("Remove(tokA) = false, want true")
	}

	q.HandleAlarms(base.Add(100 * time.Millisecond))

	if aFired {
		t.Error("P2: cancelled alarm A fired")
	}
	if !bFired {
		t.Error("alarm B never fired")
	}
}

func TestTimerQueueRemoveUnknownTokenIsNoop(t *testing.T) {
	q := newTimerQueue()
	if ok := q.Remove(TaskToken(12345)); ok {
		t.Fatal("Remove of unknown token returned true")
	}
	if ok := q.Remove(NoTask); ok {
		t.Fatal("Remove(NoTask) returned true")
	}
}

func TestTimerQueueTokenUniqueness(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)
	seen := make(map[TaskToken]bool)
	for i := 0; i < 1000; i++ {
		tok := q.Add(base, time.Duration(i)*time.Millisecond, func(any) {}, nil)
		if tok == NoTask {
			t.Fatalf("token %d is NoTask", i)
		}
		if seen[tok] {
			t.Fatalf("P8: duplicate token %d", tok)
		}
		seen[tok] = true
	}
}

func TestTimerQueueNegativeDelayClampedToZero(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)
	q.Add(base, -5*time.Second, func(any) {}, nil)
	d, ok := q.TimeToNextAlarm(base)
	if !ok {
		t.Fatal("expected a pending alarm")
	}
	if d != 0 {
		t.Fatalf("TimeToNextAlarm = %v, want 0 for an already-overdue alarm", d)
	}
}

func TestTimeToNextAlarmEmptyIsInfinite(t *testing.T) {
	q := newTimerQueue()
	_, ok := q.TimeToNextAlarm(time.Unix(0, 0))
	if ok {
		t.Fatal("TimeToNextAlarm on empty queue reported a deadline")
	}
}

func TestHandleAlarmsCallbackMayRescheduleWithoutConflict(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)

	count := 0
	var reschedule func(any)
	reschedule = func(any) {
		count++
		if count < 3 {
			q.Add(base, 0, reschedule, nil)
		}
	}
	q.Add(base, 0, reschedule, nil)
	q.HandleAlarms(base)

	if count != 3 {
		t.Fatalf("count = %d, want 3 (re-armed alarms fire within the same sweep)", count)
	}
}
