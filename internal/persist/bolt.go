package persist

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mviana/docchat/backend/internal/model/chat"
)

const (
	bucketName       = "docchat"
	conversationsKey = "conversations"
)

// BoltMirror keeps the whole collection serialized under a single fixed
// key in a BoltDB file, mirroring the single storage-key contract of the
// presentation clients.
type BoltMirror struct {
	path string
}

// NewBoltMirror returns a mirror backed by the DB file at path. The file
// and its parent directory are created on first use.
func NewBoltMirror(path string) *BoltMirror {
	return &BoltMirror{path: path}
}

func (m *BoltMirror) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, err
	}
	return bolt.Open(m.path, 0o600, &bolt.Options{Timeout: time.Second})
}

// Load reads the stored collection. Entries that fail to decode are
// skipped instead of failing startup; if nothing valid remains the
// caller sees a fresh install.
func (m *BoltMirror) Load() ([]chat.Conversation, error) {
	db, err := m.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var raw []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(conversationsKey)); len(v) > 0 {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeConversations(raw), nil
}

// decodeConversations unmarshals entries one by one so a single
// malformed record does not take the whole collection down with it.
func decodeConversations(raw []byte) []chat.Conversation {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Printf("[persist] discarding unreadable conversation store: %v", err)
		return nil
	}

	out := make([]chat.Conversation, 0, len(entries))
	for _, entry := range entries {
		var conv chat.Conversation
		if err := json.Unmarshal(entry, &conv); err != nil || conv.ID == "" {
			log.Printf("[persist] skipping malformed conversation entry")
			continue
		}
		out = append(out, conv)
	}
	return out
}

// Save overwrites the stored snapshot with the given collection.
func (m *BoltMirror) Save(conversations []chat.Conversation) error {
	if conversations == nil {
		conversations = []chat.Conversation{}
	}
	data, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}

	db, err := m.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(conversationsKey), data)
	})
}
