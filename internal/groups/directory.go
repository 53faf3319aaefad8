// Package groups maintains the per-group member directory used to
// resolve group sender display names, fetched lazily from the gateway
// and persisted between runs.
package groups

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/wxpipe/wxpipe/internal/gateway"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// Member is one group member record. DisplayName is the in-group
// alias, empty when the member never set one.
type Member struct {
	WxID        string `json:"username"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"displayname"`
}

// Caller is the gateway surface the directory needs.
type Caller interface {
	Call(ctx context.Context, op string, body map[string]any) (map[string]any, error)
	AccountID() string
}

// Directory caches group membership by group id. A group's roster is
// fetched at most once per process; the persisted file seeds the cache
// on startup so known rosters survive restarts.
type Directory struct {
	logger *slog.Logger
	caller Caller
	path   string

	mu      sync.Mutex
	byGroup map[string][]Member
}

func NewDirectory(log *slog.Logger, caller Caller, path string) *Directory {
	if log == nil {
		log = slog.Default()
	}
	d := &Directory{
		logger:  log.With(slog.String("component", "groups")),
		caller:  caller,
		path:    path,
		byGroup: make(map[string][]Member),
	}
	d.load()
	return d
}

// DisplayName resolves a member's display name within a group: the
// in-group alias when set, else the member's own nickname. Unknown
// rosters are fetched from the gateway on first use.
func (d *Directory) DisplayName(ctx context.Context, groupID, memberID string) string {
	members, err := d.members(ctx, groupID)
	if err != nil {
		d.logger.Warn("group roster unavailable",
			slog.String("group", groupID),
			slog.Any("error", err),
		)
		return ""
	}
	for _, m := range members {
		if m.WxID != memberID {
			continue
		}
		if m.DisplayName != "" {
			return m.DisplayName
		}
		return m.Nickname
	}
	return ""
}

func (d *Directory) members(ctx context.Context, groupID string) ([]Member, error) {
	d.mu.Lock()
	if members, ok := d.byGroup[groupID]; ok {
		d.mu.Unlock()
		return members, nil
	}
	d.mu.Unlock()

	members, err := d.fetch(ctx, groupID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.byGroup[groupID] = members
	d.mu.Unlock()
	d.save()

	d.logger.Info("group roster fetched",
		slog.String("group", groupID),
		slog.Int("members", len(members)),
	)
	return members, nil
}

func (d *Directory) fetch(ctx context.Context, groupID string) ([]Member, error) {
	resp, err := d.caller.Call(ctx, gateway.OpGroupMember, map[string]any{
		"QID":  groupID,
		"Wxid": d.caller.AccountID(),
	})
	if err != nil {
		return nil, err
	}

	tree := xmltree.Tree(resp)
	raw := tree.List("Data", "NewChatroomData", "ChatRoomMember")
	members := make([]Member, 0, len(raw))
	for _, entry := range raw {
		m := Member{
			WxID:        memberField(entry, "UserName"),
			Nickname:    memberField(entry, "NickName"),
			DisplayName: memberField(entry, "DisplayName"),
		}
		if m.WxID == "" {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

// memberField tolerates both plain string values and the wrapped
// {"string": ...} shape the gateway uses inconsistently.
func memberField(entry xmltree.Tree, key string) string {
	switch v := entry[key].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["string"].(string); ok {
			return s
		}
	}
	return ""
}

func (d *Directory) load() {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.logger.Error("read group directory", slog.String("path", d.path), slog.Any("error", err))
		}
		return
	}
	var byGroup map[string][]Member
	if err := json.Unmarshal(data, &byGroup); err != nil {
		d.logger.Error("decode group directory", slog.String("path", d.path), slog.Any("error", err))
		return
	}
	d.mu.Lock()
	d.byGroup = byGroup
	d.mu.Unlock()
	d.logger.Info("group directory loaded", slog.Int("groups", len(byGroup)))
}

func (d *Directory) save() {
	d.mu.Lock()
	data, err := json.MarshalIndent(d.byGroup, "", "  ")
	d.mu.Unlock()
	if err != nil {
		d.logger.Error("encode group directory", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		d.logger.Error("write group directory", slog.String("path", d.path), slog.Any("error", err))
	}
}
