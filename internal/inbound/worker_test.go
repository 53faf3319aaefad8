package inbound

import (
	"context"
	"testing"
	"time"
)

func TestWorkerProcessesQueuedEntries(t *testing.T) {
	store := fakeContacts{"wxid_friend": {IsReceive: true, ChatID: 9}}
	p, _, _, deliverer, _ := newTestPipeline(store)
	queue := NewQueue(nil, 10)
	w := NewWorker(nil, queue, p)

	w.Start()
	queue.TryEnqueue(textEntry("wxid_friend", "one"))
	queue.TryEnqueue(textEntry("wxid_friend", "two"))

	deadline := time.Now().Add(2 * time.Second)
	for deliverer.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if deliverer.count() != 2 {
		t.Fatalf("delivered = %d, want 2", deliverer.count())
	}
	w.Stop(context.Background())
}

func TestWorkerStopDrainsBufferedEntries(t *testing.T) {
	store := fakeContacts{"wxid_friend": {IsReceive: true, ChatID: 9}}
	p, _, _, deliverer, _ := newTestPipeline(store)
	queue := NewQueue(nil, 10)
	w := NewWorker(nil, queue, p)

	// Never started: everything must come out during the drain.
	queue.TryEnqueue(textEntry("wxid_friend", "one"))
	queue.TryEnqueue(textEntry("wxid_friend", "two"))
	queue.TryEnqueue(textEntry("wxid_friend", "three"))

	w.Stop(context.Background())
	if deliverer.count() != 3 {
		t.Fatalf("drained = %d, want 3", deliverer.count())
	}
	if queue.TryEnqueue(textEntry("wxid_friend", "late")) {
		t.Fatal("enqueue accepted after stop")
	}
}
