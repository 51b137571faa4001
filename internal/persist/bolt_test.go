package persist

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mviana/docchat/backend/internal/model/chat"
	"github.com/mviana/docchat/backend/internal/model/document"
)

func TestBoltMirrorRoundTrip(t *testing.T) {
	mirror := NewBoltMirror(filepath.Join(t.TempDir(), "conversations.db"))

	first := chat.NewConversation()
	first.Title = "Hello"
	first.Messages = []chat.Message{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi there"},
	}
	first.Documents = []document.Document{{ID: "d1", Name: "invoice.txt", Content: "Invoice #42"}}
	second := chat.NewConversation()

	if err := mirror.Save([]chat.Conversation{first, second}); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	loaded, err := mirror.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected two conversations, got %d", len(loaded))
	}
	if loaded[0].ID != first.ID || loaded[1].ID != second.ID {
		t.Fatal("expected insertion order preserved")
	}
	if loaded[0].Title != "Hello" {
		t.Fatalf("unexpected title %q", loaded[0].Title)
	}
	if len(loaded[0].Messages) != 2 || loaded[0].Messages[1].Content != "Hi there" {
		t.Fatalf("unexpected messages: %+v", loaded[0].Messages)
	}
	if len(loaded[0].Documents) != 1 || loaded[0].Documents[0].Content != "Invoice #42" {
		t.Fatalf("unexpected documents: %+v", loaded[0].Documents)
	}
}

func TestLoadEmptyFileBehavesAsFreshInstall(t *testing.T) {
	mirror := NewBoltMirror(filepath.Join(t.TempDir(), "conversations.db"))

	loaded, err := mirror.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no conversations, got %d", len(loaded))
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	mirror := NewBoltMirror(path)

	good := chat.NewConversation()
	if err := mirror.Save([]chat.Conversation{good}); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	// Corrupt the stored array with entries that do not decode into a
	// conversation.
	raw := []byte(`[{"id":"` + good.ID + `","title":"ok","messages":[],"documents":[]},{"id":42},"garbage"]`)
	writeRaw(t, path, raw)

	loaded, err := mirror.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected one surviving conversation, got %d", len(loaded))
	}
	if loaded[0].ID != good.ID {
		t.Fatalf("unexpected survivor %q", loaded[0].ID)
	}
}

func TestLoadDiscardsUnreadableStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	mirror := NewBoltMirror(path)

	if err := mirror.Save([]chat.Conversation{chat.NewConversation()}); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	writeRaw(t, path, []byte("not json at all"))

	loaded, err := mirror.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected fresh-install behavior, got %d entries", len(loaded))
	}
}

func writeRaw(t *testing.T, path string, raw []byte) {
	t.Helper()

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	defer func() { _ = db.Close() }()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(conversationsKey), raw)
	})
	if err != nil {
		t.Fatalf("write raw: %v", err)
	}
}
