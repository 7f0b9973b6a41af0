// Package audiostore persists submitted recordings on local disk, keyed by
// attempt id. References returned by Save are opaque storage keys stored on
// the attempt row; coaching re-reads the recording through Load.
//
// For multi-node deployments this should be replaced with an object-store
// backed implementation behind the same interface.
package audiostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore writes recordings as individual files under a base directory.
// Safe for concurrent use: every write targets a distinct attempt id.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiostore: create dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes one recording and returns its storage reference. format is the
// container name used as the file extension ("wav", "ogg").
func (fs *FileStore) Save(attemptID uuid.UUID, format string, data []byte) (string, error) {
	format = sanitizeFormat(format)
	name := attemptID.String() + "." + format
	path := filepath.Join(fs.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audiostore: write %q: %w", name, err)
	}
	return name, nil
}

// Load reads a recording previously written by Save. The reference must be a
// bare file name; anything resembling a path is rejected.
func (fs *FileStore) Load(ref string) ([]byte, error) {
	if ref != filepath.Base(ref) || ref == "." || ref == "" {
		return nil, fmt.Errorf("audiostore: invalid reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(fs.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("audiostore: read %q: %w", ref, err)
	}
	return data, nil
}

// sanitizeFormat reduces a container name to a safe file extension.
func sanitizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, format)
	if clean == "" {
		return "bin"
	}
	return clean
}
