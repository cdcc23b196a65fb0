package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoChange can be returned from an Update callback to signal that nothing
// was mutated; the store then skips the disk write.
var ErrNoChange = errors.New("store: no change")

// Store mirrors the entire application state in memory and persists it as a
// single JSON document. Every mutation goes through Update, which holds one
// mutex across the mutate-then-rewrite sequence; two concurrent writers can
// never race on the file.
type Store struct {
	path string

	mu    sync.Mutex
	state *State
}

// Open loads the document at path. A missing file yields an empty store. An
// unparseable file is quarantined (renamed aside with a timestamp) rather
// than deleted, and the process continues with an empty store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	s := &Store{path: path, state: NewState()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return nil, fmt.Errorf("failed to quarantine corrupt state file: %w", renameErr)
		}
		slog.Error("State file is corrupt, quarantined and starting empty",
			"path", path, "quarantine", quarantine, "error", err)
		return s, nil
	}

	if state.Guilds == nil {
		state.Guilds = make(map[string]*GuildConfig)
	}
	if state.UserLinks == nil {
		state.UserLinks = make(map[string]string)
	}
	for _, g := range state.Guilds {
		g.Normalize()
	}
	s.state = &state
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Update runs fn against the live state and rewrites the whole document.
// The mutex spans both steps. An error from fn aborts without persisting;
// ErrNoChange skips the write and reports success.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	for _, g := range s.state.Guilds {
		g.Normalize()
	}
	return s.saveLocked()
}

// View runs fn with read access to the state under the store mutex. Callers
// must copy anything they keep past the callback.
func (s *Store) View(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// saveLocked writes the document to a temp file and renames it over the real
// path, so a crash mid-write leaves the previous file intact.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
