package persist

import (
	"sync"

	"github.com/mviana/docchat/backend/internal/model/chat"
)

// Memory is an in-process Mirror for ephemeral runs and tests.
type Memory struct {
	mu      sync.Mutex
	stored  []chat.Conversation
	Saves   int
	SaveErr error
}

// NewMemory returns a Memory mirror preloaded with the given collection.
func NewMemory(initial []chat.Conversation) *Memory {
	return &Memory{stored: append([]chat.Conversation(nil), initial...)}
}

func (m *Memory) Load() ([]chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Conversation(nil), m.stored...), nil
}

func (m *Memory) Save(conversations []chat.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.stored = append([]chat.Conversation(nil), conversations...)
	return nil
}

// Stored returns the last successfully saved snapshot.
func (m *Memory) Stored() []chat.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Conversation(nil), m.stored...)
}
