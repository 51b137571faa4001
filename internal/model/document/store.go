package document

import "sync"

// Store holds the live set of documents attached to the next outgoing
// message. Documents leave the store only by explicit removal; sending a
// message copies the current set, it does not drain it.
type Store struct {
	mu    sync.RWMutex
	items []Document
}

// NewStore returns an empty document store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a decoded document to the live set.
func (s *Store) Add(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, doc)
}

// Remove drops the document with the given id. Removing an unknown id is
// a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the current document set.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Document(nil), s.items...)
}
