package zwave

import (
	"log/slog"
	"testing"
	"time"
)

func TestOutboundQueueDrainsHighestBandFirst(t *testing.T) {
	q := newOutboundQueue(slog.Default())

	low := &OutboundMessage{Priority: PriorityAsync, FunctionID: 1}
	high := &OutboundMessage{Priority: PriorityLocal, FunctionID: 2}
	mid := &OutboundMessage{Priority: PriorityCommand, FunctionID: 3}

	if err := q.enqueue(low); err != nil {
		t.Fatalf("enqueue low: %v", err)
	}
	if err := q.enqueue(high); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}
	if err := q.enqueue(mid); err != nil {
		t.Fatalf("enqueue mid: %v", err)
	}

	first, ok := q.waitDequeue(time.Second)
	if !ok || first != high {
		t.Fatalf("first dequeue = %+v, want the PriorityLocal message", first)
	}
	second, ok := q.waitDequeue(time.Second)
	if !ok || second != mid {
		t.Fatalf("second dequeue = %+v, want the PriorityCommand message", second)
	}
	third, ok := q.waitDequeue(time.Second)
	if !ok || third != low {
		t.Fatalf("third dequeue = %+v, want the PriorityAsync message", third)
	}
}

func TestOutboundQueueWaitDequeueTimesOutWhenEmpty(t *testing.T) {
	q := newOutboundQueue(slog.Default())
	_, ok := q.waitDequeue(20 * time.Millisecond)
	if ok {
		t.Fatalf("expected no message on an empty queue")
	}
}

// TestOutboundQueueOverflowDropsEntireBacklog checks spec.md §4.4's
// unrecoverable-backlog behavior: crossing one band's capacity discards
// every band, not just the one that overflowed, and reports ErrQueueFull.
func TestOutboundQueueOverflowDropsEntireBacklog(t *testing.T) {
	q := newOutboundQueue(slog.Default())

	if err := q.enqueue(&OutboundMessage{Priority: PriorityLocal}); err != nil {
		t.Fatalf("enqueue survivor candidate: %v", err)
	}

	var lastErr error
	for i := 0; i < outboundBandCapacity+1; i++ {
		lastErr = q.enqueue(&OutboundMessage{Priority: PriorityCommand})
	}
	if lastErr != ErrQueueFull {
		t.Fatalf("overflow enqueue error = %v, want ErrQueueFull", lastErr)
	}

	if _, ok := q.waitDequeue(20 * time.Millisecond); ok {
		t.Fatalf("queue must be empty after an overflow, including the unrelated PriorityLocal message")
	}
}

func TestInboundQueuePushAndPop(t *testing.T) {
	q := newInboundQueue(2)
	node := byte(5)
	f := InboundFrame{Type: FrameRequest, SourceNode: &node}

	if err := q.pushNonBlocking(f); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := q.pop(time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got.SourceNode == nil || *got.SourceNode != node {
		t.Fatalf("popped frame source node = %v, want %d", got.SourceNode, node)
	}
}

func TestInboundQueuePopTimesOutWhenEmpty(t *testing.T) {
	q := newInboundQueue(1)
	if _, err := q.pop(20 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("pop on empty queue error = %v, want ErrTimeout", err)
	}
}

func TestInboundQueueOverflowIsInvariantViolation(t *testing.T) {
	q := newInboundQueue(1)
	if err := q.pushNonBlocking(InboundFrame{}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.pushNonBlocking(InboundFrame{}); err != ErrInternalInvariant {
		t.Fatalf("overflow push error = %v, want ErrInternalInvariant", err)
	}
}

func TestInboundQueueDrain(t *testing.T) {
	q := newInboundQueue(4)
	_ = q.pushNonBlocking(InboundFrame{})
	_ = q.pushNonBlocking(InboundFrame{})
	q.drain()
	if _, err := q.pop(20 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("queue should be empty after drain")
	}
}

func TestCancelQueueFIFO(t *testing.T) {
	var c cancelQueue
	first := byte(1)
	second := byte(2)
	c.push(InboundFrame{SourceNode: &first})
	c.push(InboundFrame{SourceNode: &second})

	f, ok := c.pop()
	if !ok || f.SourceNode == nil || *f.SourceNode != first {
		t.Fatalf("first pop = %+v, want node 1", f)
	}
	f, ok = c.pop()
	if !ok || f.SourceNode == nil || *f.SourceNode != second {
		t.Fatalf("second pop = %+v, want node 2", f)
	}
	if _, ok := c.pop(); ok {
		t.Fatalf("expected cancel queue to be empty")
	}
}
