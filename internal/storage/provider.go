// Package storage defines the file-system abstraction shared by the document
// tree and the history store.
package storage

import "github.com/starford/fitrunner/internal/models"

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns metadata for every file with the provider's extension under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Dirs returns the names of the immediate subdirectories of dir, sorted.
	Dirs(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether path names an existing file or directory.
	Exists(path string) (bool, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
