// Package notify pushes short operator notices to an ntfy-style topic.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Notifier posts plain-text notices to a configured URL. With no URL
// configured every push is a silent no-op, so callers never need to
// guard their notification sites.
type Notifier struct {
	logger *slog.Logger
	url    string
	http   *http.Client
}

func NewNotifier(log *slog.Logger, url string) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		logger: log.With(slog.String("component", "notify")),
		url:    strings.TrimSpace(url),
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Push sends one notice. Failures are logged, never returned: a lost
// notification must not fail the pipeline that produced it.
func (n *Notifier) Push(text string) {
	if n.url == "" {
		return
	}
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(text))
	if err != nil {
		n.logger.Error("build notify request", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Error("push notice", slog.Any("error", err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		n.logger.Error("push notice rejected", slog.Int("status", resp.StatusCode))
	}
}

// Pushf formats and sends one notice.
func (n *Notifier) Pushf(format string, args ...any) {
	n.Push(fmt.Sprintf(format, args...))
}
