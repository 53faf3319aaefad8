package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wxpipe/wxpipe/internal/gateway"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

const (
	// wecomSuffix marks WeCom (enterprise) contact ids, whose profile
	// the gateway cannot serve.
	wecomSuffix = "@openim"
	// wecomAvatarURL is the fixed avatar used for WeCom contacts.
	wecomAvatarURL = "https://raw.githubusercontent.com/finalpi/wechat2tg/refs/heads/wx2tg-v3/qywx.jpg"
)

// Caller is the gateway capability the lookup needs.
type Caller interface {
	Call(ctx context.Context, op string, body map[string]any) (map[string]any, error)
}

// UserInfo is the resolved display identity of one contact.
type UserInfo struct {
	Name      string
	AvatarURL string
}

// Lookup resolves contact display info from the gateway. Calls are
// idempotent GET-style queries, safe to retry at the call site.
type Lookup struct {
	logger    *slog.Logger
	caller    Caller
	accountID string
}

func NewLookup(log *slog.Logger, caller Caller, accountID string) *Lookup {
	if log == nil {
		log = slog.Default()
	}
	return &Lookup{
		logger:    log.With(slog.String("component", "contact_lookup")),
		caller:    caller,
		accountID: accountID,
	}
}

// UserInfo resolves one contact id. WeCom ids resolve synthetically
// without a gateway round trip; everything else queries the contact
// detail operation, falling back to a placeholder name of the form
// "微信_<id>" when the gateway has no usable name.
func (l *Lookup) UserInfo(ctx context.Context, wxid string) (UserInfo, error) {
	if strings.HasSuffix(wxid, wecomSuffix) {
		id := strings.TrimSuffix(wxid, wecomSuffix)
		return UserInfo{Name: "企微_" + id, AvatarURL: wecomAvatarURL}, nil
	}

	resp, err := l.caller.Call(ctx, gateway.OpUserInfo, map[string]any{
		"Wxid":     l.accountID,
		"ChatRoom": "",
		"Towxids":  wxid,
	})
	if err != nil {
		return UserInfo{}, fmt.Errorf("contact lookup %s: %w", wxid, err)
	}

	tree := xmltree.Tree(resp)
	if ok, _ := resp["Success"].(bool); !ok {
		msg := tree.Text("Message")
		return UserInfo{}, fmt.Errorf("contact lookup %s: gateway refused: %s", wxid, msg)
	}

	list := tree.List("Data", "ContactList")
	if len(list) == 0 {
		return UserInfo{}, fmt.Errorf("contact lookup %s: empty contact list", wxid)
	}
	contact := list[0]

	name := contact.Text("Remark", "string")
	if name == "" {
		name = contact.Text("NickName", "string")
	}
	if name == "" {
		name = "微信_" + wxid
	}
	avatar := contact.Text("BigHeadImgUrl")
	if avatar == "" {
		avatar = contact.Text("SmallHeadImgUrl")
	}
	return UserInfo{Name: name, AvatarURL: avatar}, nil
}
