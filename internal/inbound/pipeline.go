package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/wxpipe/wxpipe/internal/classify"
	"github.com/wxpipe/wxpipe/internal/contacts"
	"github.com/wxpipe/wxpipe/internal/download"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// Claimer opens red packets via the gateway.
type Claimer interface {
	ClaimRedPacket(ctx context.Context, senderID, packetXML string) error
}

// Retriever fetches media payloads for image and file messages.
type Retriever interface {
	FetchImage(ctx context.Context, msgID int64, fromID string, tree xmltree.Tree) (download.Result, error)
	FetchFile(ctx context.Context, tree xmltree.Tree) (download.Result, error)
}

// Resolver fills display identity on a classified message.
type Resolver interface {
	Resolve(ctx context.Context, msg *classify.Message)
}

// ContactReader reads the persisted contact mapping.
type ContactReader interface {
	Get(wxid string) (contacts.Contact, bool)
}

// SideGame is the optional watch-list side task driven by text and
// image messages from selected senders.
type SideGame interface {
	Watches(senderID string) bool
	HandleText(content string)
	HandleImage(ctx context.Context, msgID int64, fromID string, tree xmltree.Tree)
}

// Deliverer forwards a processed message downstream. The outbound
// transport lives outside this service; NopDeliverer stands in when
// none is configured.
type Deliverer interface {
	Deliver(ctx context.Context, msg classify.Message, attachment *download.Result) error
}

// NopDeliverer accepts and discards every message.
type NopDeliverer struct{}

func (NopDeliverer) Deliver(context.Context, classify.Message, *download.Result) error {
	return nil
}

// Pipeline processes one admitted entry end to end: classification,
// identity resolution, side effects, attachment retrieval, delivery.
type Pipeline struct {
	logger     *slog.Logger
	classifier *classify.Classifier
	resolver   Resolver
	store      ContactReader
	claimer    Claimer
	retriever  Retriever
	notifier   Notifier
	game       SideGame
	deliverer  Deliverer

	sleep func(time.Duration)
}

func NewPipeline(
	log *slog.Logger,
	classifier *classify.Classifier,
	resolver Resolver,
	store ContactReader,
	claimer Claimer,
	retriever Retriever,
	notifier Notifier,
	game SideGame,
	deliverer Deliverer,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if deliverer == nil {
		deliverer = NopDeliverer{}
	}
	return &Pipeline{
		logger:     log.With(slog.String("component", "pipeline")),
		classifier: classifier,
		resolver:   resolver,
		store:      store,
		claimer:    claimer,
		retriever:  retriever,
		notifier:   notifier,
		game:       game,
		deliverer:  deliverer,
		sleep:      time.Sleep,
	}
}

// Process handles one entry. Failures are logged, never propagated:
// a bad message must not take the worker down.
func (p *Pipeline) Process(ctx context.Context, entry classify.RawMessageEntry) {
	msg, ok := p.classifier.Classify(entry)
	if !ok {
		return
	}
	p.resolver.Resolve(ctx, &msg)

	p.logger.Info("message",
		slog.String("type", string(msg.Type)),
		slog.String("contact", msg.ContactName),
		slog.String("from", msg.FromID),
		slog.String("sender", msg.SenderName),
		slog.Int64("msg_id", msg.MsgID),
	)

	switch {
	case msg.Type == classify.TypeRedPacket && msg.IsGroup():
		p.claimRedPacket(ctx, msg)
	case msg.Type == classify.TypeText && p.watches(msg.SenderID):
		p.game.HandleText(msg.Body)
	case msg.Type == classify.TypeImage && p.watches(msg.SenderID):
		p.game.HandleImage(ctx, msg.MsgID, msg.FromID, msg.Tree)
	}

	saved, found := p.store.Get(msg.FromID)
	if !found || !saved.IsReceive || saved.ChatID == contacts.UnsetChatID {
		p.logger.Debug("no bound conversation, stopping",
			slog.String("from", msg.FromID),
			slog.Bool("saved", found),
		)
		return
	}

	var attachment *download.Result
	switch msg.Type {
	case classify.TypeImage:
		res, err := p.retriever.FetchImage(ctx, msg.MsgID, msg.FromID, msg.Tree)
		if err != nil {
			p.logger.Error("image retrieval failed", slog.Int64("msg_id", msg.MsgID), slog.Any("error", err))
			return
		}
		attachment = &res
	case classify.TypeFile:
		res, err := p.retriever.FetchFile(ctx, msg.Tree)
		if err != nil {
			p.logger.Error("file retrieval failed", slog.Int64("msg_id", msg.MsgID), slog.Any("error", err))
			return
		}
		attachment = &res
	}

	if err := p.deliverer.Deliver(ctx, msg, attachment); err != nil {
		p.logger.Error("delivery failed", slog.Int64("msg_id", msg.MsgID), slog.Any("error", err))
	}
}

func (p *Pipeline) watches(senderID string) bool {
	return p.game != nil && p.game.Watches(senderID)
}

// claimRedPacket notifies and claims after a short randomized delay so
// the claim does not look instantaneous.
func (p *Pipeline) claimRedPacket(ctx context.Context, msg classify.Message) {
	p.notifier.Push(fmt.Sprintf("收到来自群[%s]-[%s]的红包", msg.ContactName, msg.SenderName))

	p.sleep(time.Duration(3+rand.Intn(3)) * time.Second)
	if err := p.claimer.ClaimRedPacket(ctx, msg.FromID, msg.RawContent); err != nil {
		p.logger.Error("red packet claim failed", slog.Int64("msg_id", msg.MsgID), slog.Any("error", err))
	}
}
