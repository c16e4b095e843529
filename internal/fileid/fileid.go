// Package fileid derives stable document URIs and content fingerprints for indexed files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const fingerprintPrefix = "sha256:"

// URI returns the document URI for a file path: cleaned and slash-separated.
// Same path always yields the same URI, so re-indexing a file replaces its document.
func URI(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Fingerprint returns a digest of the extracted text. Unchanged content gives the same fingerprint.
func Fingerprint(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fingerprintPrefix + hex.EncodeToString(hash[:])
}
