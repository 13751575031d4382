package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// DiskSnapshotStore хранит снимки в каталоге на диске
type DiskSnapshotStore struct {
	// BasePath каталог, доступный процессу на запись
	BasePath  string
	dirs      map[string]bool
	dirsMutex sync.Mutex
}

// NewDiskSnapshotStore создаёт хранилище в каталоге basePath
func NewDiskSnapshotStore(basePath string) *DiskSnapshotStore {
	return &DiskSnapshotStore{BasePath: basePath, dirs: make(map[string]bool, 10)}
}

func (s *DiskSnapshotStore) createDir(dir string) error {
	s.dirsMutex.Lock()
	defer s.dirsMutex.Unlock()

	if ok := s.dirs[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.dirs[dir] = true
	return nil
}

func (s *DiskSnapshotStore) fullPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid snapshot key %q", key)
	}
	return filepath.Join(s.BasePath, clean), nil
}

// Save записывает снимок по ключу
func (s *DiskSnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	fileName, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(file, bytes.NewReader(data))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open открывает снимок; отсутствующий файл: entity.ErrNotFound
func (s *DiskSnapshotStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fileName, err := s.fullPath(key)
	if err != nil {
		return nil, entity.ErrNotFound
	}
	file, err := os.Open(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, entity.ErrNotFound
	}
	return file, err
}

var _ port.SnapshotStore = (*DiskSnapshotStore)(nil)
