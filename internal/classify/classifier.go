package classify

import (
	"log/slog"
	"strings"
	"time"

	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// ignoredTypes are message categories that are intentionally not
// bridged: folded-chat activation, live-broadcast notices, WeCom
// contact updates, an unsupported legacy type, and payment messages.
var ignoredTypes = map[Type]struct{}{
	TypeOpenChat:     {},
	"bizlivenotify":  {},
	"qy_chat_update": {},
	"74":             {},
	"paymsg":         {},
}

// Classifier normalizes raw gateway entries into canonical messages.
type Classifier struct {
	logger    *slog.Logger
	accountID string
}

func NewClassifier(log *slog.Logger, accountID string) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		logger:    log.With(slog.String("component", "classifier")),
		accountID: strings.TrimSpace(accountID),
	}
}

// Classify resolves envelope, sender, and taxonomy for one entry.
// The second result is false when the message is dropped, either by a
// business rule or because a structured payload failed to parse.
func (c *Classifier) Classify(entry RawMessageEntry) (Message, bool) {
	fromID := entry.FromUserName.String
	content := entry.Content.String

	// The platform's own broadcast identity is never bridged.
	if fromID == SystemBroadcasterID {
		return Message{}, false
	}

	// Application accounts collapse into one synthetic identity.
	if strings.HasSuffix(fromID, AppAccountSuffix) {
		fromID = ServiceNotificationID
	}

	senderID := fromID
	if strings.HasSuffix(fromID, GroupSuffix) {
		// Group content prefixes the sender id: "wxid:\nbody".
		if strings.Contains(content, ":\n") {
			parts := strings.SplitN(content, "\n", 2)
			senderID = strings.TrimRight(parts[0], ":")
			content = parts[1]
		} else if fromID == c.accountID {
			senderID = c.accountID
		} else {
			senderID = ""
		}
	}

	typ := TypeOf(entry.MsgType)
	if entry.MsgType == 51 {
		typ = TypeOpenChat
	}

	var tree xmltree.Tree
	if typ != TypeText && typ != TypeSystemPrompt {
		var err error
		tree, err = xmltree.Parse(content)
		if err != nil {
			c.logger.Warn("drop message with unparseable payload",
				slog.Int64("msg_id", entry.MsgID),
				slog.String("type", string(typ)),
				slog.Any("error", err),
			)
			return Message{}, false
		}
		switch entry.MsgType {
		case 49:
			if inner := tree.Text("msg", "appmsg", "type"); inner != "" {
				typ = Type(inner)
			}
		case 50:
			if inner := tree.Text("voipmsg", "type"); inner != "" {
				typ = Type(inner)
			}
		case 10002:
			if inner := tree.Text("sysmsg", "type"); inner != "" {
				typ = Type(inner)
			}
		}
	}

	if dropped, reason := c.dropEarly(fromID, senderID, typ); dropped {
		c.logger.Debug("drop message",
			slog.Int64("msg_id", entry.MsgID),
			slog.String("from", fromID),
			slog.String("type", string(typ)),
			slog.String("reason", reason),
		)
		return Message{}, false
	}

	return Message{
		MsgID:       entry.MsgID,
		NewMsgID:    entry.NewMsgID,
		FromID:      fromID,
		ToID:        entry.ToUserName.String,
		SenderID:    senderID,
		Type:        typ,
		Body:        content,
		Tree:        tree,
		RawContent:  entry.Content.String,
		PushPreview: entry.PushContent,
		CreatedAt:   time.Unix(entry.CreateTime, 0),
	}, true
}

func (c *Classifier) dropEarly(fromID, senderID string, typ Type) (bool, string) {
	if strings.HasSuffix(fromID, FoldedGroupSuffix) {
		return true, "folded group placeholder"
	}
	if fromID == NotificationChannelID {
		return true, "system notification channel"
	}
	if _, ok := ignoredTypes[typ]; ok {
		return true, "ignored type"
	}
	if senderID == c.accountID && typ == TypeRevoke {
		return true, "own revoke event"
	}
	return false, ""
}
