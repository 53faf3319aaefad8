// Package contacts reads the persisted contact mapping and resolves
// display identity from the gateway when a contact is not yet saved.
package contacts

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// UnsetChatID marks contacts that have no bound downstream
// conversation yet.
const UnsetChatID int64 = -9999999999

// Contact is one record of the keyed contact store. Writes are an
// external collaborator's responsibility; this core only reads.
type Contact struct {
	Name       string `json:"name"`
	WxID       string `json:"wxId"`
	ChatID     int64  `json:"chatId"`
	IsGroup    bool   `json:"isGroup"`
	IsReceive  bool   `json:"isReceive"`
	Alias      string `json:"alias"`
	AvatarLink string `json:"avatarLink"`
}

// Store reads contact.json, reloading when the file's mtime advances
// so external edits are picked up without a restart.
type Store struct {
	logger *slog.Logger
	path   string

	mu      sync.Mutex
	byID    map[string]Contact
	lastMod time.Time
}

func NewStore(log *slog.Logger, path string) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		logger: log.With(slog.String("component", "contacts")),
		path:   path,
		byID:   make(map[string]Contact),
	}
	s.reload()
	return s
}

// Get returns the saved contact for the id, if present.
func (s *Store) Get(wxid string) (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	c, ok := s.byID[wxid]
	return c, ok
}

// Len reports the number of loaded contacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
}

func (s *Store) reloadLocked() {
	info, err := os.Stat(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("stat contact store", slog.String("path", s.path), slog.Any("error", err))
		}
		return
	}
	if !info.ModTime().After(s.lastMod) {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Error("read contact store", slog.String("path", s.path), slog.Any("error", err))
		return
	}
	var records []Contact
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("decode contact store", slog.String("path", s.path), slog.Any("error", err))
		return
	}

	byID := make(map[string]Contact, len(records))
	for _, c := range records {
		byID[c.WxID] = c
	}
	s.byID = byID
	s.lastMod = info.ModTime()
	s.logger.Info("contact store loaded", slog.Int("contacts", len(byID)))
}
