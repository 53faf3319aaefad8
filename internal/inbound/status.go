package inbound

import (
	"log/slog"
	"sync"
)

// Gateway batch status markers.
const (
	// batchOK marks a delivery that carries new messages.
	batchOK = "成功"
	// offlineMessage marks a delivery reporting the account signed out.
	offlineMessage = "用户可能退出"
)

type loginState int

const (
	stateUnknown loginState = iota
	stateOnline
	stateOffline
)

// Notifier pushes a short human-readable notice.
type Notifier interface {
	Push(text string)
}

// StatusTracker derives the account's login state from batch status
// messages and pushes a notice on each transition.
type StatusTracker struct {
	logger   *slog.Logger
	notifier Notifier

	mu    sync.Mutex
	state loginState
}

func NewStatusTracker(log *slog.Logger, notifier Notifier) *StatusTracker {
	if log == nil {
		log = slog.Default()
	}
	return &StatusTracker{
		logger:   log.With(slog.String("component", "login")),
		notifier: notifier,
	}
}

// Update folds one batch status message into the tracked state.
func (t *StatusTracker) Update(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if message == offlineMessage {
		if t.state != stateOffline {
			t.logger.Warn("account went offline")
			t.notifier.Push("账号可能已退出登录")
		}
		t.state = stateOffline
		return
	}

	if t.state == stateOffline {
		t.logger.Info("account back online")
		t.notifier.Push("账号已恢复在线")
	}
	t.state = stateOnline
}
