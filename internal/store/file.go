package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"castplayd/internal/logger"

	"github.com/fsnotify/fsnotify"
)

const fileExt = ".cast"

// FileStore keeps each recording in <dir>/<id>.cast.
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger.OrNop(log)}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

func (s *FileStore) Get(_ context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recording %s: %w", id, err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it into place, so readers never see a partial
// recording.
func (s *FileStore) Put(_ context.Context, id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write recording %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write recording %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return fmt.Errorf("failed to move recording %s into place: %w", id, err)
	}
	s.logger.Debugf("Stored recording %s (%d bytes)", id, len(data))
	return nil
}

func (s *FileStore) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if id, ok := idFromName(e.Name()); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Watch reports the id of every recording created, changed or removed in the directory, including
// changes made by other processes. It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, fn func(id string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}
	s.logger.Infof("Watching %s for recording changes", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op == fsnotify.Chmod {
				continue
			}
			id, ok := idFromName(filepath.Base(evt.Name))
			if !ok {
				continue
			}
			s.logger.Debugf("Recording %s changed on disk (%s)", id, evt.Op)
			fn(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnf("File watcher error: %v", err)
		}
	}
}

func idFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	id := strings.TrimSuffix(name, fileExt)
	return id, ValidID(id)
}
