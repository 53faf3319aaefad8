package inbound

import (
	"context"
	"log/slog"

	"github.com/wxpipe/wxpipe/internal/classify"
)

// Ingestor admits webhook batches: login-status tracking, the
// new-message gate, per-entry deduplication, and hand-off to the
// queue. It runs after the HTTP ack, so it only logs.
type Ingestor struct {
	logger *slog.Logger
	status *StatusTracker
	dedup  *Deduplicator
	queue  *Queue
}

func NewIngestor(log *slog.Logger, status *StatusTracker, dedup *Deduplicator, queue *Queue) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		logger: log.With(slog.String("component", "ingest")),
		status: status,
		dedup:  dedup,
		queue:  queue,
	}
}

// ProcessBatch folds one webhook delivery into the pipeline.
func (i *Ingestor) ProcessBatch(ctx context.Context, batch classify.RawBatch) {
	i.status.Update(batch.Message)

	if batch.Message != batchOK {
		return
	}

	var admitted, duplicates int
	for _, entry := range batch.Data.AddMsgs {
		if ctx.Err() != nil {
			return
		}
		if entry.MsgID == 0 {
			continue
		}
		if !i.dedup.Admit(entry.MsgID) {
			duplicates++
			i.logger.Debug("skip duplicate message", slog.Int64("msg_id", entry.MsgID))
			continue
		}
		if i.queue.TryEnqueue(entry) {
			admitted++
		}
	}

	if admitted > 0 || duplicates > 0 {
		i.logger.Info("batch admitted",
			slog.Int("messages", admitted),
			slog.Int("duplicates", duplicates),
		)
	}
}
