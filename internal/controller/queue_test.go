package controller

import (
	"testing"
	"time"
)

func entry(id string, deadline time.Time) *queueEntry {
	return &queueEntry{id: id, deadline: deadline}
}

func TestWaitQueueFIFO(t *testing.T) {
	q := newWaitQueue(3)
	far := time.Now().Add(time.Hour)
	if pos := q.push(entry("a", far)); pos != 1 {
		t.Fatalf("first push position = %d", pos)
	}
	if pos := q.push(entry("b", far)); pos != 2 {
		t.Fatalf("second push position = %d", pos)
	}
	if q.head().id != "a" {
		t.Fatalf("head = %s, want a", q.head().id)
	}
	if q.popHead().id != "a" || q.popHead().id != "b" || q.popHead() != nil {
		t.Fatalf("pop order violated FIFO")
	}
}

func TestWaitQueueBounded(t *testing.T) {
	q := newWaitQueue(2)
	far := time.Now().Add(time.Hour)
	q.push(entry("a", far))
	if q.full() {
		t.Fatalf("queue full at depth 1 of 2")
	}
	q.push(entry("b", far))
	if !q.full() {
		t.Fatalf("queue not full at max depth")
	}
}

func TestWaitQueueZeroDepthAlwaysFull(t *testing.T) {
	q := newWaitQueue(0)
	if !q.full() {
		t.Fatalf("zero-depth queue must report full")
	}
}

func TestWaitQueueExpire(t *testing.T) {
	q := newWaitQueue(4)
	now := time.Unix(1000, 0)
	q.push(entry("old", now.Add(-time.Second)))
	q.push(entry("edge", now)) // deadline == now counts as expired
	q.push(entry("live", now.Add(time.Minute)))
	expired := q.expire(now)
	if len(expired) != 2 || expired[0].id != "old" || expired[1].id != "edge" {
		t.Fatalf("expire = %v", expired)
	}
	if q.len() != 1 || q.head().id != "live" {
		t.Fatalf("survivor mismatch, len=%d", q.len())
	}
}

func TestWaitQueueRemoveAndPosition(t *testing.T) {
	q := newWaitQueue(4)
	far := time.Now().Add(time.Hour)
	q.push(entry("a", far))
	q.push(entry("b", far))
	q.push(entry("c", far))
	if q.position("c") != 3 {
		t.Fatalf("position(c) = %d", q.position("c"))
	}
	if got := q.remove("b"); got == nil || got.id != "b" {
		t.Fatalf("remove(b) = %v", got)
	}
	if q.position("c") != 2 {
		t.Fatalf("position(c) after remove = %d", q.position("c"))
	}
	if q.remove("b") != nil {
		t.Fatalf("second remove must miss")
	}
}
