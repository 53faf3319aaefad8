package inbound

import "testing"

type recordingNotifier struct {
	notices []string
}

func (n *recordingNotifier) Push(text string) {
	n.notices = append(n.notices, text)
}

func TestStatusTrackerNotifiesOnTransitions(t *testing.T) {
	notifier := &recordingNotifier{}
	tracker := NewStatusTracker(nil, notifier)

	tracker.Update(batchOK)
	if len(notifier.notices) != 0 {
		t.Fatalf("initial online state produced %d notices", len(notifier.notices))
	}

	tracker.Update(offlineMessage)
	tracker.Update(offlineMessage)
	if len(notifier.notices) != 1 {
		t.Fatalf("offline transition produced %d notices, want 1", len(notifier.notices))
	}

	tracker.Update(batchOK)
	if len(notifier.notices) != 2 {
		t.Fatalf("online transition produced %d notices, want 2", len(notifier.notices))
	}

	tracker.Update(batchOK)
	if len(notifier.notices) != 2 {
		t.Fatalf("steady online state produced extra notices: %v", notifier.notices)
	}
}
