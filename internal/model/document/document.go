// Package document holds reference texts extracted from uploaded files.
package document

// Document is the plain text extracted from one uploaded file. It is
// immutable once created.
type Document struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}
