package contacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeContacts(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStoreLoadsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact.json")
	writeContacts(t, path, `[{"name":"老王","wxId":"wxid_a","chatId":77,"isGroup":false,"isReceive":true}]`)

	s := NewStore(nil, path)
	c, ok := s.Get("wxid_a")
	if !ok {
		t.Fatal("wxid_a not loaded")
	}
	if c.Name != "老王" || c.ChatID != 77 || !c.IsReceive {
		t.Fatalf("contact = %+v", c)
	}
	if _, ok := s.Get("wxid_missing"); ok {
		t.Fatal("phantom contact")
	}

	// An external rewrite with a newer mtime is picked up on read.
	writeContacts(t, path, `[{"name":"老王","wxId":"wxid_a"},{"name":"小李","wxId":"wxid_b"}]`)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("wxid_b"); !ok {
		t.Fatal("rewritten store not reloaded")
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
}

func TestStoreMissingFile(t *testing.T) {
	s := NewStore(nil, filepath.Join(t.TempDir(), "absent.json"))
	if _, ok := s.Get("wxid_a"); ok {
		t.Fatal("contact from missing file")
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
}

func TestStoreKeepsLastGoodOnBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact.json")
	writeContacts(t, path, `[{"name":"老王","wxId":"wxid_a"}]`)

	s := NewStore(nil, path)
	writeContacts(t, path, `{broken`)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Get("wxid_a"); !ok {
		t.Fatal("previous contacts lost after bad rewrite")
	}
}
