package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wxpipe/wxpipe/internal/classify"
	"github.com/wxpipe/wxpipe/internal/contacts"
	"github.com/wxpipe/wxpipe/internal/download"
	"github.com/wxpipe/wxpipe/internal/inbound"
)

type flowResolver struct{}

func (flowResolver) Resolve(context.Context, *classify.Message) {}

type flowContacts struct {
	byID map[string]contacts.Contact
}

func (f flowContacts) Get(wxid string) (contacts.Contact, bool) {
	c, ok := f.byID[wxid]
	return c, ok
}

type flowDeliverer struct {
	delivered chan classify.Message
}

func (f *flowDeliverer) Deliver(_ context.Context, msg classify.Message, _ *download.Result) error {
	f.delivered <- msg
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Push(string) {}

// Full inbound path: webhook delivery through ingestor, queue and
// worker down to the deliverer, with a redelivered batch producing
// nothing.
func TestWebhookDeliveryReachesDelivererOnce(t *testing.T) {
	log := slog.Default()
	store := flowContacts{byID: map[string]contacts.Contact{
		"wxid_friend": {WxID: "wxid_friend", Name: "Friend", ChatID: 42, IsReceive: true},
	}}
	deliverer := &flowDeliverer{delivered: make(chan classify.Message, 4)}

	queue := inbound.NewQueue(log, 8)
	status := inbound.NewStatusTracker(log, silentNotifier{})
	ingestor := inbound.NewIngestor(log, status, inbound.NewDeduplicator(log), queue)
	pipeline := inbound.NewPipeline(log, classify.NewClassifier(log, "wxid_self"),
		flowResolver{}, store, nil, nil, silentNotifier{}, nil, deliverer)
	worker := inbound.NewWorker(log, queue, pipeline)
	worker.Start()
	defer worker.Stop(context.Background())

	e := echo.New()
	NewSyncHandler(log, "wxid_self", ingestor).Register(e)

	batch := `{"Message":"成功","Data":{"AddMsgs":[{` +
		`"MsgId":41,"NewMsgId":410041,"MsgType":1,` +
		`"FromUserName":{"string":"wxid_friend"},` +
		`"ToUserName":{"string":"wxid_self"},` +
		`"Content":{"string":"hi"}}]}}`

	rec := postJSON(e, "/msg/SyncMessage/wxid_self", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case msg := <-deliverer.delivered:
		if msg.Type != classify.TypeText {
			t.Fatalf("type = %q, want %q", msg.Type, classify.TypeText)
		}
		if msg.Body != "hi" {
			t.Fatalf("body = %q, want %q", msg.Body, "hi")
		}
		if msg.FromID != "wxid_friend" {
			t.Fatalf("from = %q", msg.FromID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}

	// The gateway redelivers the same batch; dedup drops it before
	// the queue.
	rec = postJSON(e, "/msg/SyncMessage/wxid_self", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", rec.Code)
	}
	select {
	case msg := <-deliverer.delivered:
		t.Fatalf("redelivered batch produced message %d", msg.MsgID)
	case <-time.After(300 * time.Millisecond):
	}
}
