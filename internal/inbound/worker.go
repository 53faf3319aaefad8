package inbound

import (
	"context"
	"log/slog"
	"time"
)

const (
	// pollInterval bounds how long the worker sleeps between checks
	// when the queue is idle.
	pollInterval = time.Second
	// drainTimeout bounds processing of buffered entries at shutdown.
	drainTimeout = 10 * time.Second
)

// Worker is the single consumer of the hand-off queue. One message is
// fully processed before the next is taken.
type Worker struct {
	logger   *slog.Logger
	queue    *Queue
	pipeline *Pipeline

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(log *slog.Logger, queue *Queue, pipeline *Pipeline) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		logger:   log.With(slog.String("component", "worker")),
		queue:    queue,
		pipeline: pipeline,
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
	w.logger.Info("worker started")
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.queue.Items():
			w.pipeline.Process(ctx, entry)
		case <-ticker.C:
		}
	}
}

// Stop gates the queue, stops the consumer, and drains what is left
// within the drain budget.
func (w *Worker) Stop(ctx context.Context) {
	w.queue.Close()
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}

	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	drained := 0
	for {
		select {
		case entry := <-w.queue.Items():
			w.pipeline.Process(ctx, entry)
			drained++
		case <-ctx.Done():
			w.logger.Warn("drain budget exhausted", slog.Int("remaining", w.queue.Len()))
			return
		default:
			if drained > 0 {
				w.logger.Info("queue drained", slog.Int("messages", drained))
			}
			w.logger.Info("worker stopped")
			return
		}
	}
}
