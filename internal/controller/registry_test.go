package controller

import (
	"testing"
)

func TestRegistryForwardOnlyLifecycle(t *testing.T) {
	reg := NewRegistry()
	clk := newTestClock()
	s := &Session{ID: "s1", State: StateQueued, EstimatedKVBytes: 100}
	if err := reg.Insert(s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, next := range []SessionState{StateAdmitted, StateRunning, StateCompleted} {
		if err := reg.Transition("s1", next, clk.Now()); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	// Completed is terminal: every further move is an invariant violation.
	for _, next := range []SessionState{StateQueued, StateAdmitted, StateRunning, StateEvicted, StateCompleted} {
		err := reg.Transition("s1", next, clk.Now())
		if err == nil || !IsInvalidTransition(err) {
			t.Fatalf("expected InvalidTransition for completed -> %s, got %v", next, err)
		}
	}
}

func TestRegistryRejectsBackwardMove(t *testing.T) {
	reg := NewRegistry()
	clk := newTestClock()
	s := &Session{ID: "s1", State: StateQueued}
	_ = reg.Insert(s)
	_ = reg.Transition("s1", StateRunning, clk.Now())
	err := reg.Transition("s1", StateAdmitted, clk.Now())
	if err == nil || !IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition for running -> admitted, got %v", err)
	}
}

func TestRegistryReservedAccounting(t *testing.T) {
	reg := NewRegistry()
	clk := newTestClock()
	a := &Session{ID: "a", State: StateQueued, EstimatedKVBytes: 100}
	b := &Session{ID: "b", State: StateQueued, EstimatedKVBytes: 50}
	_ = reg.Insert(a)
	_ = reg.Insert(b)
	if reg.ReservedTotal() != 0 || reg.ActiveCount() != 0 {
		t.Fatalf("queued sessions must not reserve: reserved=%d active=%d", reg.ReservedTotal(), reg.ActiveCount())
	}
	_ = reg.Transition("a", StateAdmitted, clk.Now())
	_ = reg.Transition("b", StateAdmitted, clk.Now())
	if reg.ReservedTotal() != 150 || reg.ActiveCount() != 2 {
		t.Fatalf("reserved=%d active=%d, want 150/2", reg.ReservedTotal(), reg.ActiveCount())
	}
	// Running keeps the reservation.
	_ = reg.Transition("a", StateRunning, clk.Now())
	if reg.ReservedTotal() != 150 {
		t.Fatalf("running must keep reservation, reserved=%d", reg.ReservedTotal())
	}
	// Terminal states release it exactly once.
	_ = reg.Transition("a", StateCompleted, clk.Now())
	_ = reg.Transition("b", StateEvicted, clk.Now())
	if reg.ReservedTotal() != 0 || reg.ActiveCount() != 0 {
		t.Fatalf("after release: reserved=%d active=%d", reg.ReservedTotal(), reg.ActiveCount())
	}
}

func TestRegistryRejectedFromQueuedReservesNothing(t *testing.T) {
	reg := NewRegistry()
	clk := newTestClock()
	s := &Session{ID: "q", State: StateQueued, EstimatedKVBytes: 100}
	_ = reg.Insert(s)
	if err := reg.Transition("q", StateRejected, clk.Now()); err != nil {
		t.Fatalf("queued -> rejected: %v", err)
	}
	if reg.ReservedTotal() != 0 {
		t.Fatalf("rejected queued session must not affect reservations")
	}
}

func TestRegistryDuplicateInsert(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Insert(&Session{ID: "dup", State: StateQueued})
	err := reg.Insert(&Session{ID: "dup", State: StateQueued})
	if err == nil {
		t.Fatalf("expected error on duplicate insert")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Insert(&Session{ID: "a", State: StateQueued, Priority: 1})
	got, ok := reg.Get("a")
	if !ok {
		t.Fatalf("missing session")
	}
	got.Priority = 99
	again, _ := reg.Get("a")
	if again.Priority != 1 {
		t.Fatalf("registry state mutated through returned copy")
	}
}

func TestRegistryTransitionUnknownID(t *testing.T) {
	reg := NewRegistry()
	err := reg.Transition("nope", StateAdmitted, newTestClock().Now())
	if err == nil || !IsSessionNotFound(err) {
		t.Fatalf("expected sessionNotFound, got %v", err)
	}
}
