// Package storage defines the document file-system abstraction.
package storage

import (
	"strings"

	"github.com/mjelva/tavle/internal/models"
)

// Provider is the interface for document file operations. Paths are
// relative to the data directory; the document with id "groceries" lives
// at "groceries.json".
type Provider interface {
	// List returns metadata for every .json document file under dir
	// (relative to the data root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

// DocPath returns the relative file path for a document id.
func DocPath(id string) string { return id + ".json" }

// DocID returns the document id for a relative file path, or "" when the
// path is not a document file.
func DocID(path string) string {
	id := strings.TrimSuffix(path, ".json")
	if id == path || id == "" {
		return ""
	}
	return id
}
