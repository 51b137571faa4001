package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

// ErrEmptyFile rejects zero-length uploads before extraction.
var ErrEmptyFile = errors.New("file is empty")

// ExtractText converts raw file bytes into plain text. Text formats pass
// through unchanged; docx and pdf go through structured extraction.
func ExtractText(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx", ".doc":
		return extractDocx(data)
	case ".pdf":
		return extractPDF(data)
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid text", filename)
		}
		return string(data), nil
	}
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var b strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			b.WriteString(block.String())
			b.WriteString("\n")
		case *docx.Table:
			b.WriteString(block.String())
			b.WriteString("\n")
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("docx contains no extractable text")
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var b bytes.Buffer
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("pdf contains no extractable text")
	}
	return text, nil
}
