package disabled

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists the set of disabled chat handles as one handle per line.
// The file is the source of truth: List always re-reads it so a disable takes
// effect on the very next filter pass. Writers within this process are
// serialised by the mutex; concurrent writers in other processes are
// last-writer-wins.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns the current disabled handles. A missing file is an empty
// list, not an error.
func (s *Store) List() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read disable list: %w", err)
	}
	var handles []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			handles = append(handles, line)
		}
	}
	return handles, nil
}

// Disable appends the handle if it is not already listed. Idempotent.
func (s *Store) Disable(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.List()
	if err != nil {
		return err
	}
	for _, h := range handles {
		if h == handle {
			return nil
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append disable list: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(handle + "\n"); err != nil {
		return fmt.Errorf("append disable list: %w", err)
	}
	return nil
}

// Enable rewrites the list without the handle via a temp file and atomic
// rename. Enabling a handle that was never disabled is a no-op.
func (s *Store) Enable(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.List()
	if err != nil {
		return err
	}
	found := false
	var keep []string
	for _, h := range handles {
		if h == handle {
			found = true
			continue
		}
		keep = append(keep, h)
	}
	if !found {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".disabled-*")
	if err != nil {
		return fmt.Errorf("rewrite disable list: %w", err)
	}
	defer os.Remove(tmp.Name())

	for _, h := range keep {
		if _, err := tmp.WriteString(h + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("rewrite disable list: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("rewrite disable list: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rewrite disable list: %w", err)
	}
	return nil
}
