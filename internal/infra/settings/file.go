package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"nova-xfinity/internal/domain"
)

var _ domain.SettingsStore = (*FileStore)(nil)

// FileStore keeps Settings in a YAML file. API keys are never written.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored settings, or the defaults when the file does not exist.
func (s *FileStore) Load(_ context.Context) (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	out := domain.DefaultSettings()
	if err := yaml.Unmarshal(data, &out); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if out.Provider == "" {
		out.Provider = domain.DefaultProvider
	}
	return out, nil
}

// Save writes the settings atomically through a temp file.
func (s *FileStore) Save(_ context.Context, in domain.Settings) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
