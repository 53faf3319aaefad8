package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wxpipe/wxpipe/internal/contacts"
)

// ContactStore reads the persisted contact mapping.
type ContactStore interface {
	Get(wxid string) (contacts.Contact, bool)
}

// ContactLookup resolves identity from the gateway for unsaved
// contacts.
type ContactLookup interface {
	UserInfo(ctx context.Context, wxid string) (contacts.UserInfo, error)
}

// GroupDirectory resolves a member's in-group display name.
type GroupDirectory interface {
	DisplayName(ctx context.Context, groupID, memberID string) string
}

// Resolver fills the display identity of a classified message:
// conversation name, avatar, and sender name.
type Resolver struct {
	logger *slog.Logger
	store  ContactStore
	lookup ContactLookup
	groups GroupDirectory
}

func NewResolver(log *slog.Logger, store ContactStore, lookup ContactLookup, groups GroupDirectory) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		logger: log.With(slog.String("component", "resolver")),
		store:  store,
		lookup: lookup,
		groups: groups,
	}
}

// Resolve sets ContactName, AvatarURL, and SenderName on the message.
func (r *Resolver) Resolve(ctx context.Context, msg *Message) {
	name, avatar := r.contactInfo(ctx, msg)
	msg.ContactName = name
	msg.AvatarURL = avatar
	msg.SenderName = r.senderName(ctx, msg)
}

func (r *Resolver) contactInfo(ctx context.Context, msg *Message) (string, string) {
	var name, avatar string
	if saved, ok := r.store.Get(msg.FromID); ok {
		name = saved.Name
		avatar = saved.AvatarLink
	} else {
		info, err := r.lookup.UserInfo(ctx, msg.FromID)
		if err != nil {
			r.logger.Warn("contact lookup failed",
				slog.String("wxid", msg.FromID),
				slog.Any("error", err),
			)
		}
		name = info.Name
		avatar = info.AvatarURL
	}

	// A placeholder name means the gateway had nothing useful; the
	// push preview carries "<name> : <text>" (or "<name>さん…") and is
	// the better source.
	if (strings.HasPrefix(name, "微信_") || strings.HasPrefix(name, "企微_")) && msg.PushPreview != "" {
		name = strings.SplitN(msg.PushPreview, " : ", 2)[0]
		name = strings.SplitN(name, "さん", 2)[0]
	}

	// Service notifications carry their publisher inside the payload.
	if msg.FromID == ServiceNotificationID {
		name = firstNonEmpty(
			msg.Tree.Text("msg", "appinfo", "appname"),
			msg.Tree.Text("msg", "appmsg", "mmreader", "publisher", "nickname"),
			msg.Tree.Text("msg", "appmsg", "mmreader", "category", "name"),
			msg.Tree.Text("msg", "appmsg", "mmreader", "category", "item", "sources", "source", "name"),
		)
	}

	return name, avatar
}

func (r *Resolver) senderName(ctx context.Context, msg *Message) string {
	if msg.SenderID == msg.FromID {
		return msg.ContactName
	}
	if saved, ok := r.store.Get(msg.SenderID); ok {
		return saved.Name
	}
	if name := r.groups.DisplayName(ctx, msg.FromID, msg.SenderID); name != "" {
		return name
	}
	return "未知用户"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
