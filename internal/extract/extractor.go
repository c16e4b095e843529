// Package extract provides text extraction from document formats found in indexed folders.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Func extracts plain text from the raw bytes of a document.
type Func func(content []byte) (string, error)

// Extractor extracts plain text from document files by extension.
type Extractor struct {
	formats map[string]Func
}

// NewExtractor returns an Extractor for PDF, Office Open XML, OpenDocument and plain text.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]Func{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".xlsx": extractExcel,
		".pptx": extractPPTX,
		".odt":  extractODF,
		".odp":  extractODF,
		".ods":  extractODF,
	}}
}

// Formats returns the extensions with a dedicated extractor, sorted.
func (e *Extractor) Formats() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsDocumentFormat reports whether ext names a binary document format with a dedicated extractor.
// ext may be given with or without the leading dot.
func (e *Extractor) IsDocumentFormat(ext string) bool {
	_, ok := e.formats[normalizeExt(ext)]
	return ok
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = normalizeExt(ext)
	if fn, ok := e.formats[ext]; ok {
		text, err := fn(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return text, nil
	}
	return extractPlain(content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
