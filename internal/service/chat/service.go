package chat

import (
	"errors"
	"log"
	"strings"
	"sync"

	chatmodel "github.com/mviana/docchat/backend/internal/model/chat"
	"github.com/mviana/docchat/backend/internal/model/document"
	"github.com/mviana/docchat/backend/internal/persist"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message content is empty")
)

// degradedThreshold is how many consecutive mirror failures it takes
// before the store reports degraded durability.
const degradedThreshold = 3

// Service owns the conversation collection and the active reference. It
// is the single writer of the persistence mirror: every committed
// mutation is saved synchronously, and a failed save never rolls the
// in-memory mutation back.
type Service struct {
	mu            sync.RWMutex
	mirror        persist.Mirror
	conversations []chatmodel.Conversation
	activeID      string
	saveFailures  int
}

// NewService loads the stored collection, or bootstraps a fresh one with
// a single empty conversation. The collection is never empty afterwards.
func NewService(mirror persist.Mirror) *Service {
	s := &Service{mirror: mirror}

	loaded, err := mirror.Load()
	if err != nil {
		log.Printf("[chat] load failed, starting fresh: %v", err)
	}
	s.conversations = loaded

	if len(s.conversations) == 0 {
		conv := chatmodel.NewConversation()
		s.conversations = []chatmodel.Conversation{conv}
		s.activeID = conv.ID
		s.persistLocked()
	} else {
		s.activeID = s.conversations[0].ID
	}
	return s
}

// Create appends a new empty conversation, makes it active and persists.
func (s *Service) Create() chatmodel.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := chatmodel.NewConversation()
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	s.persistLocked()
	return conv.Clone()
}

// Delete removes the conversation with the given id. If the collection
// would become empty, exactly one fresh conversation is synthesized so
// the non-empty invariant holds. Deleting an unknown id is a no-op.
func (s *Service) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if len(s.conversations) == 0 {
		conv := chatmodel.NewConversation()
		s.conversations = []chatmodel.Conversation{conv}
		s.activeID = conv.ID
	} else if s.activeID == id {
		s.activeID = s.conversations[0].ID
	}
	s.persistLocked()
}

// Select moves the active reference if id resolves; otherwise a no-op.
func (s *Service) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return false
	}
	s.activeID = id
	return true
}

// AppendUserMessage appends one user turn. The first message on a
// conversation freezes its title.
func (s *Service) AppendUserMessage(id, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrConversationNotFound
	}

	conv := &s.conversations[idx]
	if len(conv.Messages) == 0 {
		conv.Title = chatmodel.DeriveTitle(content)
	}
	conv.Messages = append(conv.Messages, chatmodel.Message{Role: chatmodel.RoleUser, Content: content})
	s.persistLocked()
	return nil
}

// CommitAssistantMessage appends the assistant turn produced by a
// finished exchange and records the document snapshot that was in
// context when it committed.
func (s *Service) CommitAssistantMessage(id, content string, snapshot []document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrConversationNotFound
	}

	conv := &s.conversations[idx]
	conv.Messages = append(conv.Messages, chatmodel.Message{Role: chatmodel.RoleAssistant, Content: content})
	conv.Documents = append([]document.Document(nil), snapshot...)
	s.persistLocked()
	return nil
}

// List returns a copy of the collection in creation order.
func (s *Service) List() []chatmodel.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chatmodel.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Get returns a copy of one conversation.
func (s *Service) Get(id string) (chatmodel.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return chatmodel.Conversation{}, false
	}
	return s.conversations[idx].Clone(), true
}

// ActiveID returns the identifier of the active conversation.
func (s *Service) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Degraded reports whether durable saves have been failing repeatedly.
// The in-memory state is still authoritative; only durability suffers.
func (s *Service) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveFailures >= degradedThreshold
}

func (s *Service) indexLocked(id string) int {
	for i, conv := range s.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked mirrors the current collection. Failure is non-fatal.
func (s *Service) persistLocked() {
	snapshot := make([]chatmodel.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		snapshot[i] = conv.Clone()
	}
	if err := s.mirror.Save(snapshot); err != nil {
		s.saveFailures++
		log.Printf("[chat] save failed (%d consecutive): %v", s.saveFailures, err)
		return
	}
	s.saveFailures = 0
}
