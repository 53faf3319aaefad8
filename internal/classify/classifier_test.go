package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(from string, msgType int, content string) RawMessageEntry {
	return RawMessageEntry{
		MsgID:        42,
		NewMsgID:     4242,
		FromUserName: StringField{String: from},
		ToUserName:   StringField{String: "wxid_self"},
		MsgType:      msgType,
		Content:      StringField{String: content},
		CreateTime:   1700000000,
	}
}

func TestClassifyGroupSenderSplit(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("123@chatroom", 1, "wxid_abc:\nhello"))
	require.True(t, ok)
	assert.Equal(t, "wxid_abc", msg.SenderID)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "123@chatroom", msg.FromID)
	assert.Equal(t, TypeText, msg.Type)
	assert.True(t, msg.IsGroup())
	// Raw content survives the split for claim calls.
	assert.Equal(t, "wxid_abc:\nhello", msg.RawContent)
}

func TestClassifyGroupWithoutSenderPrefix(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("123@chatroom", 1, "no prefix here"))
	require.True(t, ok)
	assert.Empty(t, msg.SenderID)
	assert.Equal(t, "no prefix here", msg.Body)
}

func TestClassifyPrivateSenderIsConversation(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("wxid_friend", 1, "hi"))
	require.True(t, ok)
	assert.Equal(t, "wxid_friend", msg.SenderID)
	assert.False(t, msg.IsGroup())
}

func TestClassifyAppAccountRewrite(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("gh_123@app", 1, "notice"))
	require.True(t, ok)
	assert.Equal(t, ServiceNotificationID, msg.FromID)
}

func TestClassifySubtypeDescent(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("wxid_friend", 49, `<msg><appmsg><type>6</type><title>report.pdf</title></appmsg></msg>`))
	require.True(t, ok)
	assert.Equal(t, TypeFile, msg.Type)
	require.NotNil(t, msg.Tree)
	assert.Equal(t, "report.pdf", msg.Tree.Text("msg", "appmsg", "title"))
}

func TestClassifyDrops(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	tests := []struct {
		name string
		in   RawMessageEntry
	}{
		{"platform broadcaster", entry("weixin", 1, "broadcast")},
		{"folded group placeholder", entry("77@placeholder_foldgroup", 1, "x")},
		{"notification channel", entry("notification_messages", 1, "x")},
		{"channel message", entry("wxid_friend", 51, "<msg/>")},
		{"payment message", entry("wxid_friend", 10002, `<sysmsg type="paymsg"><paymsg/></sysmsg>`)},
		{"own revoke", entry("wxid_self", 10002, `<sysmsg type="revokemsg"><revokemsg/></sysmsg>`)},
		{"unparseable payload", entry("wxid_friend", 49, "not xml at all")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Classify(tt.in)
			assert.False(t, ok)
		})
	}
}

func TestClassifyOtherRevokeSurvives(t *testing.T) {
	c := NewClassifier(nil, "wxid_self")

	msg, ok := c.Classify(entry("wxid_friend", 10002, `<sysmsg type="revokemsg"><revokemsg/></sysmsg>`))
	require.True(t, ok)
	assert.Equal(t, TypeRevoke, msg.Type)
}
