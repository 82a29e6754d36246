package boundary

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/internal/fsutil"
)

const fileVersion = 1

type entry struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type document struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// FileStore is a RestartBoundary backed by a single JSON file. It is safe
// for concurrent use within one process; two processes sharing a file is not
// supported.
type FileStore struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// OpenFile loads path, creating an empty store if the file does not exist.
func OpenFile(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("boundary: path is required")
	}
	s := &FileStore{path: path, now: time.Now, entries: map[string]entry{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "boundary: read %s", path)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "boundary: decode %s", path)
	}
	if doc.Version != fileVersion {
		return nil, errors.Errorf("boundary: %s has version %d, want %d", path, doc.Version, fileVersion)
	}
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Persist(key, value string) error {
	if key == "" {
		return errors.New("boundary: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[key]
	s.entries[key] = entry{Value: value, UpdatedAt: s.now().UTC()}
	if err := s.flush(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Read(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e.Value, ok, nil
}

// Clear removes key. Clearing an absent key is not an error.
func (s *FileStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[key]
	if !had {
		return nil
	}
	delete(s.entries, key)
	if err := s.flush(); err != nil {
		s.entries[key] = prev
		return err
	}
	return nil
}

// Keys returns the keys starting with prefix, sorted.
func (s *FileStore) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.entries, prefix)
}

// UpdatedAt reports when key was last written.
func (s *FileStore) UpdatedAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e.UpdatedAt, ok
}

func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(document{Version: fileVersion, Entries: s.entries}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "boundary: encode")
	}
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o600); err != nil {
		return errors.Wrapf(err, "boundary: write %s", s.path)
	}
	return nil
}

func sortedKeys[V any](m map[string]V, prefix string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
