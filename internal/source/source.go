// Package source reads indexable files from folders on disk.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/extract"
	"github.com/hyperjump/docindex/internal/fileid"
)

// NoExtension is the document type of files without an extension.
const NoExtension = "none"

// DefaultMaxFileSize is the largest file read, in bytes.
const DefaultMaxFileSize = 10 << 20

// sniffLen is how many leading bytes are checked for NUL when detecting binary content.
const sniffLen = 8000

// ErrSkipped is returned by Read for files that are ignored or not text.
var ErrSkipped = errors.New("file skipped")

// File is a file read from disk with its extracted text.
type File struct {
	Path    string    `json:"path"`
	URI     string    `json:"uri"`
	Text    string    `json:"-"`
	DocType string    `json:"doc_type"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Config selects which files are read.
type Config struct {
	// Extensions restricts reading to these extensions (without dot). Empty allows all.
	Extensions []string `yaml:"extensions"`
	// IgnoreDirs are directory names skipped anywhere below a root. Empty uses DefaultIgnoreDirs.
	IgnoreDirs []string `yaml:"ignore_dirs"`
	// Exclude are paths skipped with everything below them, e.g. the index folder.
	Exclude []string `yaml:"exclude"`
	// MaxFileSize in bytes; 0 uses DefaultMaxFileSize.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// Option configures a FileSource.
type Option func(*FileSource)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *FileSource) {
		s.logger = l
	}
}

// FileSource walks roots and reads the text of every indexable file.
type FileSource struct {
	extensions  map[string]bool
	ignoreDirs  map[string]bool
	exclude     []string
	maxFileSize int64
	extractor   *extract.Extractor
	logger      *zap.Logger
}

// New returns a file source for cfg.
func New(cfg Config, opts ...Option) *FileSource {
	s := &FileSource{
		extensions:  make(map[string]bool),
		ignoreDirs:  make(map[string]bool),
		maxFileSize: cfg.MaxFileSize,
		extractor:   extract.NewExtractor(),
		logger:      zap.NewNop(),
	}
	for _, ext := range cfg.Extensions {
		s.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	dirs := cfg.IgnoreDirs
	if len(dirs) == 0 {
		dirs = DefaultIgnoreDirs
	}
	for _, d := range dirs {
		s.ignoreDirs[d] = true
	}
	for _, p := range cfg.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			s.exclude = append(s.exclude, abs)
		}
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocType returns the lowercased extension of path without the dot, or NoExtension.
func DocType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return NoExtension
	}
	return ext
}

// Read returns the file at path with its text. Ignored, oversized and binary files
// return an error wrapping ErrSkipped.
func (s *FileSource) Read(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrSkipped, abs)
	}
	if s.Ignored(abs) {
		return nil, fmt.Errorf("%w: ignored: %s", ErrSkipped, abs)
	}
	if info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrSkipped, abs, info.Size(), s.maxFileSize)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := filepath.Ext(abs)
	if !s.extractor.IsDocumentFormat(ext) && bytes.IndexByte(content[:min(len(content), sniffLen)], 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content: %s", ErrSkipped, abs)
	}
	text, err := s.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", abs, err)
	}
	return &File{
		Path:    abs,
		URI:     fileid.URI(abs),
		Text:    text,
		DocType: DocType(abs),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Walk reads every indexable file under root (a directory or a single file) and calls fn.
// Unreadable and skipped files are logged and passed over; an error from fn stops the walk.
// It returns the number of files passed to fn.
func (s *FileSource) Walk(ctx context.Context, root string, fn func(*File) error) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return 0, fmt.Errorf("stat root: %w", err)
	}
	n := 0
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.logger.Warn("source walk error", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && s.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		f, err := s.Read(path)
		if errors.Is(err, ErrSkipped) {
			s.logger.Debug("source skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if err != nil {
			s.logger.Warn("source failed to read file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if err := fn(f); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
