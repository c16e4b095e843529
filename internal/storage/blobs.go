package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docindex/internal/models"
)

const (
	textExt     = ".txt"
	metadataExt = ".json"
)

// Blobs stores a document's text as <id>.txt and its caller metadata as <id>.json
// inside the index folder.
type Blobs struct {
	dir string
}

// NewBlobs returns a blob store rooted at dir.
func NewBlobs(dir string) *Blobs {
	return &Blobs{dir: dir}
}

// TextPath returns the path of the text blob for id.
func (b *Blobs) TextPath(id string) string {
	return filepath.Join(b.dir, id+textExt)
}

// MetadataPath returns the path of the metadata blob for id.
func (b *Blobs) MetadataPath(id string) string {
	return filepath.Join(b.dir, id+metadataExt)
}

// WriteText stores the document text.
func (b *Blobs) WriteText(id, text string) error {
	return WriteFileAtomic(b.TextPath(id), []byte(text))
}

// ReadText loads the document text.
func (b *Blobs) ReadText(id string) (string, error) {
	data, err := os.ReadFile(b.TextPath(id))
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", id, err)
	}
	return string(data), nil
}

// WriteMetadata stores the caller metadata for the document.
func (b *Blobs) WriteMetadata(id string, md models.Metadata) error {
	return WriteJSON(b.MetadataPath(id), md)
}

// ReadMetadata loads the caller metadata; a missing blob yields nil metadata.
func (b *Blobs) ReadMetadata(id string) (models.Metadata, error) {
	var md models.Metadata
	if err := ReadJSON(b.MetadataPath(id), &md); err != nil {
		if errors.Is(err, ErrMissing) {
			return nil, nil
		}
		return nil, err
	}
	return md, nil
}

// HasMetadata reports whether a metadata blob exists for id.
func (b *Blobs) HasMetadata(id string) bool {
	return Exists(b.MetadataPath(id))
}

// RemoveText deletes the text blob. A missing blob is not an error.
func (b *Blobs) RemoveText(id string) error {
	return removeIfExists(b.TextPath(id))
}

// RemoveMetadata deletes the metadata blob. A missing blob is not an error.
func (b *Blobs) RemoveMetadata(id string) error {
	return removeIfExists(b.MetadataPath(id))
}

// Remove deletes both blobs of a document.
func (b *Blobs) Remove(id string) error {
	return errors.Join(b.RemoveText(id), b.RemoveMetadata(id))
}

// IDs lists the document ids that have at least one blob in the folder.
// Files named in reserved (catalog.json, index.json) are ignored.
func (b *Blobs) IDs(reserved ...string) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		skip[r] = true
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || skip[name] || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if ext != textExt && ext != metadataExt {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
