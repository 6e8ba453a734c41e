package agentconfig

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Revision identifies the exact bytes a document was loaded from. The zero
// Revision means the file did not exist.
type Revision string

// RevisionOf returns the revision of raw document bytes.
func RevisionOf(data []byte) Revision {
	sum := blake3.Sum256(data)
	return Revision(hex.EncodeToString(sum[:]))
}

// ConflictError is returned by Save when the file changed since it was loaded.
type ConflictError struct {
	Path     string
	Expected Revision
	Actual   Revision
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("config %s was modified concurrently; reload and retry", e.Path)
}

// Store loads and saves the document at a fixed path.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store for path. Nothing is read until Load.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing file yields an empty document and the
// zero Revision.
func (s *Store) Load() (*Document, Revision, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", s.path).Msg("No config file found, starting empty")
			return NewDocument(), "", nil
		}
		return nil, "", fmt.Errorf("read config: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, RevisionOf(data), nil
}

// Save writes doc if the file still matches expected, then returns the new
// revision. The write goes to a temporary file that is renamed into place.
func (s *Store) Save(doc *Document, expected Revision) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentRevision()
	if err != nil {
		return "", err
	}
	if current != expected {
		return "", &ConflictError{Path: s.path, Expected: expected, Actual: current}
	}

	data, err := doc.Marshal()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("replace config: %w", err)
	}

	rev := RevisionOf(data)
	log.Debug().Str("path", s.path).Str("revision", string(rev)[:12]).Msg("Config saved")
	return rev, nil
}

func (s *Store) currentRevision() (Revision, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return RevisionOf(data), nil
}
