package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the blacklist in a JSON file.
type FileStore struct {
	path string
	log  *slog.Logger

	mu  sync.RWMutex
	set set
}

// NewFileStore loads path. A missing or unreadable file starts an empty
// blacklist; the file is created on the first write.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fs := &FileStore{path: path, log: logger, set: newSet()}

	list, err := readList(path)
	if err != nil {
		logger.Warn("blacklist file unreadable, starting empty", slog.String("path", path), slog.Any("err", err))
		return fs
	}
	for _, id := range list.BlockedIDs {
		fs.set.add(id, "")
	}
	for _, u := range list.BlockedURLs {
		fs.set.add("", u)
	}
	return fs
}

func readList(path string) (List, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return List{}, nil
	}
	if err != nil {
		return List{}, fmt.Errorf("read blacklist: %w", err)
	}
	if len(data) == 0 {
		return List{}, nil
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return List{}, fmt.Errorf("unmarshal blacklist: %w", err)
	}
	return list, nil
}

func (fs *FileStore) IsBlocked(id, url string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.set.blocked(id, url)
}

func (fs *FileStore) Add(_ context.Context, id, url string) (List, error) {
	return fs.update(func(s set) { s.add(id, url) })
}

func (fs *FileStore) Remove(_ context.Context, id, url string) (List, error) {
	return fs.update(func(s set) { s.remove(id, url) })
}

func (fs *FileStore) List(context.Context) (List, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.set.list(), nil
}

// update applies fn to a copy and only keeps it once the file is written.
func (fs *FileStore) update(fn func(set)) (List, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := fs.set.clone()
	fn(next)
	list := next.list()

	if err := fs.save(list); err != nil {
		return fs.set.list(), err
	}
	fs.set = next
	return list, nil
}

func (fs *FileStore) save(list List) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal blacklist: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blacklist dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blacklist-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write blacklist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blacklist: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replace blacklist: %w", err)
	}
	return nil
}
