// Package store persists council sessions. The file-backed
// implementation writes one JSON document per session so completed
// deliberations survive a restart and are inspectable on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aspendos/council/internal/models"
)

// ErrSessionNotFound is returned when a session ID does not match any
// stored session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore provides access to session records.
type SessionStore interface {
	// Put writes or replaces a session record.
	Put(session *models.Session) error
	// Get returns a single session by ID.
	Get(id string) (*models.Session, error)
	// List returns all sessions, newest first.
	List() ([]*models.Session, error)
}

// FileStore keeps sessions as JSON files under a directory, with an
// in-memory index guarded by a read-write lock. An empty dir keeps the
// store memory-only.
type FileStore struct {
	dir string

	mu       sync.RWMutex
	sessions map[string]*models.Session
	loaded   bool
}

// NewFileStore creates a FileStore rooted at dir. Pass "" for an
// in-memory store.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:      dir,
		sessions: make(map[string]*models.Session),
	}
}

// load reads all session JSON files from the configured directory.
func (fs *FileStore) load() error {
	fs.sessions = make(map[string]*models.Session)

	if fs.dir == "" {
		fs.loaded = true
		return nil
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, e.Name()))
		if err != nil {
			continue
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		if session.ID == "" {
			session.ID = strings.TrimSuffix(e.Name(), ".json")
		}
		fs.sessions[session.ID] = &session
	}

	fs.loaded = true
	return nil
}

func (fs *FileStore) ensureLoaded() error {
	if fs.loaded {
		return nil
	}
	return fs.load()
}

// Put writes the session to the index and, when a directory is
// configured, to disk. The on-disk write goes through a temp file and
// rename so a crash never leaves a torn record.
func (fs *FileStore) Put(session *models.Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureLoaded(); err != nil {
		return err
	}

	fs.sessions[session.ID] = session.Clone()

	if fs.dir == "" {
		return nil
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %w", session.ID, err)
	}

	path := filepath.Join(fs.dir, session.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}
	return os.Rename(tmp, path)
}

// Get returns the session with the given ID.
func (fs *FileStore) Get(id string) (*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	session, ok := fs.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Callers get a copy; mutating it must not corrupt the index.
	return session.Clone(), nil
}

// List returns all sessions ordered newest first.
func (fs *FileStore) List() ([]*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	out := make([]*models.Session, 0, len(fs.sessions))
	for _, s := range fs.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
