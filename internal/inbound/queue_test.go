package inbound

import (
	"testing"

	"github.com/wxpipe/wxpipe/internal/classify"
)

func entryWithID(id int64) classify.RawMessageEntry {
	return classify.RawMessageEntry{MsgID: id}
}

func TestQueueDropsOnOverflow(t *testing.T) {
	q := NewQueue(nil, 2)

	if !q.TryEnqueue(entryWithID(1)) || !q.TryEnqueue(entryWithID(2)) {
		t.Fatal("enqueue into free buffer failed")
	}
	if q.TryEnqueue(entryWithID(3)) {
		t.Fatal("overflow entry accepted")
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}

	// Buffered entries are unaffected by the drop.
	if got := (<-q.Items()).MsgID; got != 1 {
		t.Fatalf("first dequeued id = %d, want 1", got)
	}
	if got := (<-q.Items()).MsgID; got != 2 {
		t.Fatalf("second dequeued id = %d, want 2", got)
	}
}

func TestQueueCloseGatesEnqueues(t *testing.T) {
	q := NewQueue(nil, 2)
	q.TryEnqueue(entryWithID(1))
	q.Close()

	if q.TryEnqueue(entryWithID(2)) {
		t.Fatal("enqueue accepted after close")
	}
	// Draining still works.
	if got := (<-q.Items()).MsgID; got != 1 {
		t.Fatalf("dequeued id = %d, want 1", got)
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
}
