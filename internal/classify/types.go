// Package classify turns raw gateway message entries into canonical
// message records: envelope extraction, type taxonomy resolution, and
// sender/conversation identity rules.
package classify

import (
	"strconv"
	"strings"
	"time"

	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// StringField is the gateway's wrapper shape for string envelope
// fields: {"string": "..."}.
type StringField struct {
	String string `json:"string"`
}

// RawBatch is one webhook delivery from the gateway.
type RawBatch struct {
	Message string    `json:"Message"`
	Data    BatchData `json:"Data"`
}

type BatchData struct {
	AddMsgs []RawMessageEntry `json:"AddMsgs"`
}

// RawMessageEntry is the upstream wire shape of a single message.
type RawMessageEntry struct {
	MsgID        int64       `json:"MsgId"`
	NewMsgID     int64       `json:"NewMsgId"`
	FromUserName StringField `json:"FromUserName"`
	ToUserName   StringField `json:"ToUserName"`
	MsgType      int         `json:"MsgType"`
	Content      StringField `json:"Content"`
	PushContent  string      `json:"PushContent"`
	CreateTime   int64       `json:"CreateTime"`
}

// Type is a resolved taxonomy code. Numeric gateway codes render as
// their digits; nested application/call/system subtypes are symbolic,
// so ignore lists can hold both kinds uniformly.
type Type string

const (
	TypeText         Type = "1"
	TypeImage        Type = "3"
	TypeVoice        Type = "34"
	TypeVideo        Type = "43"
	TypeSticker      Type = "47"
	TypeApp          Type = "49"
	TypeCall         Type = "50"
	TypeChannel      Type = "51"
	TypeSystemPrompt Type = "10000"
	TypeSystemNotice Type = "10002"

	// Application subtypes read from the embedded payload tree.
	TypeLink      Type = "5"
	TypeFile      Type = "6"
	TypeRedPacket Type = "2001"
	TypeTransfer  Type = "2000"

	// Symbolic markers.
	TypeOpenChat Type = "open_chat"
	TypeRevoke   Type = "revokemsg"
)

// TypeOf converts a numeric gateway code to its taxonomy value.
func TypeOf(code int) Type {
	return Type(strconv.Itoa(code))
}

// Identity rules for the gateway's id namespace.
const (
	// SystemBroadcasterID is the platform's own broadcast identity;
	// its messages are never processed.
	SystemBroadcasterID = "weixin"
	// ServiceNotificationID is the synthetic identity that replaces
	// application-account senders.
	ServiceNotificationID = "service_notification"
	// NotificationChannelID is the fixed system-notification channel.
	NotificationChannelID = "notification_messages"

	GroupSuffix       = "@chatroom"
	AppAccountSuffix  = "@app"
	FoldedGroupSuffix = "@placeholder_foldgroup"
	WeComSuffix       = "@openim"
)

// Message is the canonical, normalized record of one chat event. It is
// produced once per admitted message id and consumed exactly once.
type Message struct {
	MsgID    int64
	NewMsgID int64
	FromID   string
	ToID     string
	// SenderID may differ from FromID in group conversations.
	SenderID string
	Type     Type
	// Body holds plain text; Tree holds the parsed payload for
	// structured message types. Exactly one of them is meaningful.
	Body string
	Tree xmltree.Tree
	// RawContent preserves the unsplit wire content; the red-packet
	// claim call needs the original XML verbatim.
	RawContent  string
	PushPreview string
	CreatedAt   time.Time

	// Display identity, filled by Resolver.
	ContactName string
	SenderName  string
	AvatarURL   string
}

// IsGroup reports whether the message belongs to a group conversation.
func (m Message) IsGroup() bool {
	return strings.HasSuffix(m.FromID, GroupSuffix)
}
