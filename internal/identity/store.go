package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// ErrWatchUnsupported is returned by FileStore.Watch on non-OS filesystems.
var ErrWatchUnsupported = errors.New("store watch requires the OS filesystem")

// UserStore persists the signed-in user between runs.
type UserStore interface {
	// Load returns the stored user, or nil when nobody is signed in.
	Load(ctx context.Context) (*User, error)
	Save(ctx context.Context, u *User) error
	Remove(ctx context.Context) error
}

// MemoryStore keeps the user in memory only.
type MemoryStore struct {
	mu   sync.RWMutex
	user *User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u.clone()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}

// FileStore keeps the user as a JSON document on an afero filesystem.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore writing to path on fsys.
func NewFileStore(fsys afero.Fs, path string) *FileStore {
	return &FileStore{fs: fsys, path: path}
}

// Path returns the location of the user document.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user store: %w", err)
	}
	return &u, nil
}

// Save writes the user to a temporary file and renames it into place so a
// concurrent reader never sees a partial document.
func (s *FileStore) Save(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write user store: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace user store: %w", err)
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove user store: %w", err)
	}
	return nil
}

// Watch calls onChange whenever the user document is written, replaced or
// removed by any process. It returns once the watcher is running and stops
// when ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return ErrWatchUnsupported
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	// The directory is watched because Save replaces the file by rename.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Base(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("User store changed", "event", event.Op.String(), "path", event.Name)
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("User store watcher error", "error", err)
			}
		}
	}()
	return nil
}
