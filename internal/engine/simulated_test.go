package engine

import (
	"context"
	"testing"
	"time"
)

func TestSimulatedManualMode(t *testing.T) {
	e := NewSimulated()
	if err := e.Dispatch(context.Background(), DispatchRequest{SessionID: "s1", ContextTokens: 128}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := e.Dispatch(context.Background(), DispatchRequest{SessionID: "s2", ContextTokens: 256}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := e.InFlight(); got != 2 {
		t.Fatalf("in-flight = %d, want 2", got)
	}
	if err := e.Abort("s1"); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if got := e.InFlight(); got != 1 {
		t.Fatalf("in-flight after abort = %d, want 1", got)
	}
	// Aborting an unknown session is a no-op.
	if err := e.Abort("nope"); err != nil {
		t.Fatalf("abort unknown: %v", err)
	}
}

func TestSimulatedTimedCompletion(t *testing.T) {
	e := NewSimulated()
	e.Base = time.Millisecond
	e.PerToken = time.Microsecond
	done := make(chan string, 1)
	e.SetCompletionFunc(func(id string) { done <- id })
	if err := e.Dispatch(context.Background(), DispatchRequest{SessionID: "s1", ContextTokens: 100}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	select {
	case id := <-done:
		if id != "s1" {
			t.Fatalf("completed %s, want s1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session never completed")
	}
	if got := e.InFlight(); got != 0 {
		t.Fatalf("in-flight after completion = %d", got)
	}
}

func TestSimulatedAbortSuppressesCallback(t *testing.T) {
	e := NewSimulated()
	e.Base = 20 * time.Millisecond
	done := make(chan string, 1)
	e.SetCompletionFunc(func(id string) { done <- id })
	if err := e.Dispatch(context.Background(), DispatchRequest{SessionID: "s1", ContextTokens: 1}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := e.Abort("s1"); err != nil {
		t.Fatalf("abort: %v", err)
	}
	select {
	case id := <-done:
		t.Fatalf("callback fired for aborted session %s", id)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSimulatedHonorsContext(t *testing.T) {
	e := NewSimulated()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Dispatch(ctx, DispatchRequest{SessionID: "s1"}); err == nil {
		t.Fatalf("expected context error")
	}
	if got := e.InFlight(); got != 0 {
		t.Fatalf("canceled dispatch tracked: %d", got)
	}
}
