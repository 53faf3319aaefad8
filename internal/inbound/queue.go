package inbound

import (
	"log/slog"
	"sync/atomic"

	"github.com/wxpipe/wxpipe/internal/classify"
)

// Queue is the bounded hand-off between webhook admission and the
// worker. Enqueues never block: when the buffer is full the entry is
// dropped and counted.
type Queue struct {
	logger  *slog.Logger
	ch      chan classify.RawMessageEntry
	closed  atomic.Bool
	dropped atomic.Int64
}

func NewQueue(log *slog.Logger, size int) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if size <= 0 {
		size = 1
	}
	return &Queue{
		logger: log.With(slog.String("component", "queue")),
		ch:     make(chan classify.RawMessageEntry, size),
	}
}

// TryEnqueue hands an admitted entry to the worker. It reports false
// when the queue is full or already gated for shutdown.
func (q *Queue) TryEnqueue(entry classify.RawMessageEntry) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- entry:
		return true
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("queue full, dropping message",
			slog.Int64("msg_id", entry.MsgID),
			slog.Int64("dropped_total", n),
		)
		return false
	}
}

// Items exposes the consumer side of the queue.
func (q *Queue) Items() <-chan classify.RawMessageEntry {
	return q.ch
}

// Close gates further enqueues. Buffered entries stay readable.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Len reports the number of buffered entries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped reports how many entries were dropped on overflow.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
