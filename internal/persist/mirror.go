// Package persist mirrors the in-memory conversation collection to
// durable storage. The mirror owns no independent truth: it is rebuilt
// from and rewritten on every committed mutation.
package persist

import "github.com/mviana/docchat/backend/internal/model/chat"

// Mirror is the durable reflection of the conversation collection.
type Mirror interface {
	// Load returns the stored collection, or nil on a fresh install.
	Load() ([]chat.Conversation, error)
	// Save overwrites the stored collection with the given snapshot.
	Save(conversations []chat.Conversation) error
}
