package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/wxpipe/wxpipe/internal/contacts"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

type fakeStore map[string]contacts.Contact

func (f fakeStore) Get(wxid string) (contacts.Contact, bool) {
	c, ok := f[wxid]
	return c, ok
}

type fakeLookup struct {
	infos map[string]contacts.UserInfo
}

func (f *fakeLookup) UserInfo(_ context.Context, wxid string) (contacts.UserInfo, error) {
	if info, ok := f.infos[wxid]; ok {
		return info, nil
	}
	return contacts.UserInfo{Name: "微信_" + wxid}, errors.New("not found")
}

type fakeGroups map[string]string

func (f fakeGroups) DisplayName(_ context.Context, groupID, memberID string) string {
	return f[groupID+"/"+memberID]
}

func TestResolvePrefersSavedContact(t *testing.T) {
	r := NewResolver(nil,
		fakeStore{"wxid_friend": {Name: "老王", AvatarLink: "http://a/1.jpg"}},
		&fakeLookup{}, fakeGroups{})

	msg := Message{FromID: "wxid_friend", SenderID: "wxid_friend"}
	r.Resolve(context.Background(), &msg)

	if msg.ContactName != "老王" {
		t.Fatalf("contact = %q", msg.ContactName)
	}
	if msg.AvatarURL != "http://a/1.jpg" {
		t.Fatalf("avatar = %q", msg.AvatarURL)
	}
	// Private chat: sender display follows the conversation.
	if msg.SenderName != "老王" {
		t.Fatalf("sender = %q", msg.SenderName)
	}
}

func TestResolvePushPreviewOverridesPlaceholder(t *testing.T) {
	r := NewResolver(nil, fakeStore{}, &fakeLookup{}, fakeGroups{})

	msg := Message{FromID: "wxid_new", SenderID: "wxid_new", PushPreview: "小李 : 在吗"}
	r.Resolve(context.Background(), &msg)
	if msg.ContactName != "小李" {
		t.Fatalf("contact = %q", msg.ContactName)
	}

	msg = Message{FromID: "wxid_new", SenderID: "wxid_new", PushPreview: "小李さんからのメッセージ"}
	r.Resolve(context.Background(), &msg)
	if msg.ContactName != "小李" {
		t.Fatalf("contact = %q", msg.ContactName)
	}

	// A real name is never overridden by the preview.
	r = NewResolver(nil, fakeStore{},
		&fakeLookup{infos: map[string]contacts.UserInfo{"wxid_new": {Name: "真名"}}}, fakeGroups{})
	msg = Message{FromID: "wxid_new", SenderID: "wxid_new", PushPreview: "小李 : 在吗"}
	r.Resolve(context.Background(), &msg)
	if msg.ContactName != "真名" {
		t.Fatalf("contact = %q", msg.ContactName)
	}
}

func TestResolveServiceNotificationPublisher(t *testing.T) {
	r := NewResolver(nil, fakeStore{}, &fakeLookup{}, fakeGroups{})

	tree, err := xmltree.Parse(`<msg><appmsg><mmreader><publisher><nickname>新闻</nickname></publisher></mmreader></appmsg></msg>`)
	if err != nil {
		t.Fatal(err)
	}
	msg := Message{FromID: ServiceNotificationID, SenderID: ServiceNotificationID, Tree: tree}
	r.Resolve(context.Background(), &msg)
	if msg.ContactName != "新闻" {
		t.Fatalf("contact = %q", msg.ContactName)
	}
}

func TestResolveGroupSenderChain(t *testing.T) {
	store := fakeStore{
		"1@chatroom": {Name: "吃饭群"},
		"wxid_known": {Name: "已存好友"},
	}
	groups := fakeGroups{"1@chatroom/wxid_member": "群里昵称"}
	r := NewResolver(nil, store, &fakeLookup{}, groups)

	// Saved contact wins.
	msg := Message{FromID: "1@chatroom", SenderID: "wxid_known"}
	r.Resolve(context.Background(), &msg)
	if msg.SenderName != "已存好友" {
		t.Fatalf("sender = %q", msg.SenderName)
	}

	// Then the group directory.
	msg = Message{FromID: "1@chatroom", SenderID: "wxid_member"}
	r.Resolve(context.Background(), &msg)
	if msg.SenderName != "群里昵称" {
		t.Fatalf("sender = %q", msg.SenderName)
	}

	// Then the unknown-user placeholder.
	msg = Message{FromID: "1@chatroom", SenderID: "wxid_stranger"}
	r.Resolve(context.Background(), &msg)
	if msg.SenderName != "未知用户" {
		t.Fatalf("sender = %q", msg.SenderName)
	}
}
