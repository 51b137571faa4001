// Package ingest turns uploaded files into plain-text documents for the
// live document store. Files decode independently and concurrently; a
// file that fails to decode is dropped and reported, never retried.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/mviana/docchat/backend/internal/model/document"
)

// File is one uploaded file pending text extraction.
type File struct {
	Name string
	Data []byte
}

// Failure reports a file that could not be decoded.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Service decodes uploads and appends the results to the document store.
type Service struct {
	store *document.Store
}

// NewService returns an ingestion service writing into store.
func NewService(store *document.Store) *Service {
	return &Service{store: store}
}

// Ingest decodes a single file and adds it to the live document set.
func (s *Service) Ingest(_ context.Context, file File) (document.Document, error) {
	text, err := ExtractText(file.Name, file.Data)
	if err != nil {
		return document.Document{}, fmt.Errorf("decode %s: %w", file.Name, err)
	}

	doc := document.Document{
		ID:      uuid.NewString(),
		Name:    file.Name,
		Content: text,
	}
	s.store.Add(doc)
	return doc, nil
}

// IngestAll decodes the given files concurrently. Completion order is
// arbitrary; the store ends up with one document per successful decode.
func (s *Service) IngestAll(ctx context.Context, files []File) ([]document.Document, []Failure) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		added  []document.Document
		failed []Failure
	)

	for _, file := range files {
		wg.Add(1)
		go func(file File) {
			defer wg.Done()
			doc, err := s.Ingest(ctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[ingest] %v", err)
				failed = append(failed, Failure{Name: file.Name, Reason: err.Error()})
				return
			}
			added = append(added, doc)
		}(file)
	}
	wg.Wait()

	return added, failed
}
