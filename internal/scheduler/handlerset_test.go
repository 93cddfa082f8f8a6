package scheduler

import "testing"

func TestHandlerSetAssignLookupClear(t *testing.T) {
	h := newHandlerSet()
	if h.Lookup(5) != nil {
		t.Fatal("expected no handler for unassigned fd")
	}
	h.Assign(5, IOReadable, func(any, IOCondition) {}, "ctx")
	d := h.Lookup(5)
	if d == nil || d.fd != 5 || d.condition != IOReadable || d.ctx != "ctx" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	h.Clear(5)
	if h.Lookup(5) != nil {
		t.Fatal("expected handler removed after Clear")
	}
}

func TestHandlerSetMove(t *testing.T) {
	h := newHandlerSet()
	h.Assign(5, IOReadable, func(any, IOCondition) {}, nil)
	d := h.Move(5, 9)
	if d == nil || d.fd != 9 {
		t.Fatalf("Move returned %+v", d)
	}
	if h.Lookup(5) != nil {
		t.Fatal("old fd still registered after Move")
	}
	if h.Lookup(9) == nil {
		t.Fatal("new fd not registered after Move")
	}
}

func TestHandlerSetMoveUnknownFD(t *testing.T) {
	h := newHandlerSet()
	if d := h.Move(1, 2); d != nil {
		t.Fatalf("Move of unregistered fd returned %+v", d)
	}
}

func TestHandlerSetIterate(t *testing.T) {
	h := newHandlerSet()
	h.Assign(1, IOReadable, func(any, IOCondition) {}, nil)
	h.Assign(2, IOWritable, func(any, IOCondition) {}, nil)
	seen := map[int]bool{}
	h.Iterate(func(d *handlerDescriptor) { seen[d.fd] = true })
	if !seen[1] || !seen[2] || len(seen) != 2 {
		t.Fatalf("Iterate saw %v, want {1,2}", seen)
	}
}
