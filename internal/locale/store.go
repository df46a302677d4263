package locale

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Store 持久化的语言偏好
type Store interface {
	Load() (string, error)
	Save(value string) error
}

// FileStore 将语言偏好保存在单个文件中，跨会话保留
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load 读取偏好，文件不存在时返回空字符串
func (s *FileStore) Load() (string, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read locale file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save 原子写入偏好
func (s *FileStore) Save(value string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create locale dir: %w", err)
	}
	if err := renameio.WriteFile(s.Path, []byte(value+"\n"), 0o644); err != nil {
		return fmt.Errorf("write locale file: %w", err)
	}
	return nil
}

// MemoryStore 仅内存保存，用于测试和无持久化场景
type MemoryStore struct {
	Value   string
	LoadErr error
	SaveErr error
}

func (s *MemoryStore) Load() (string, error) {
	return s.Value, s.LoadErr
}

func (s *MemoryStore) Save(value string) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Value = value
	return nil
}
