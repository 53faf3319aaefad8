// Package inbound owns the ingestion path: webhook batch admission,
// message-id deduplication, the bounded hand-off queue, and the single
// worker that drives classification and retrieval.
package inbound

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// dedupCeiling is the size above which an eviction pass trims the
	// admitted-id set.
	dedupCeiling = 5000
	// sweepInterval bounds how often eviction passes run.
	sweepInterval = time.Hour
)

// Deduplicator admits each message id at most once. The admitted set
// is trimmed to its newest half at most hourly once it exceeds the
// ceiling, so memory stays bounded under sustained traffic.
type Deduplicator struct {
	logger *slog.Logger

	mu        sync.Mutex
	seen      map[int64]struct{}
	order     []int64
	lastSweep time.Time
}

func NewDeduplicator(log *slog.Logger) *Deduplicator {
	if log == nil {
		log = slog.Default()
	}
	return &Deduplicator{
		logger:    log.With(slog.String("component", "dedup")),
		seen:      make(map[int64]struct{}),
		lastSweep: time.Now(),
	}
}

// Admit reports whether the id is seen for the first time, recording
// it as admitted when so.
func (d *Deduplicator) Admit(msgID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.lastSweep) > sweepInterval {
		d.sweepLocked()
		d.lastSweep = time.Now()
	}

	if _, ok := d.seen[msgID]; ok {
		return false
	}
	d.seen[msgID] = struct{}{}
	d.order = append(d.order, msgID)
	return true
}

// Len reports the current admitted-set size.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) sweepLocked() {
	if len(d.seen) <= dedupCeiling {
		return
	}
	keep := len(d.order) / 2
	d.order = append([]int64(nil), d.order[len(d.order)-keep:]...)
	seen := make(map[int64]struct{}, keep)
	for _, id := range d.order {
		seen[id] = struct{}{}
	}
	d.seen = seen
	d.logger.Info("trimmed dedup set", slog.Int("kept", keep))
}
