package config

import (
	"slices"
	"sync"

	"github.com/aretw0/wflow/pkg/domain"
)

// FileSettings implements ports.Settings, writing every change back to the config file.
type FileSettings struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewFileSettings wraps a loaded config and the file it came from.
func NewFileSettings(path string, cfg *Config) *FileSettings {
	return &FileSettings{path: path, cfg: cfg}
}

// Config returns a copy of the current configuration.
func (s *FileSettings) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

func (s *FileSettings) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Language
}

func (s *FileSettings) SetLanguage(language string) error {
	if !slices.Contains(domain.AvailableLanguages(), language) {
		return domain.ValidationError("unsupported language %q", language)
	}
	return s.update(func(c *Config) { c.Language = language })
}

func (s *FileSettings) ResourceURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.ResourceURL
}

func (s *FileSettings) SetResourceURL(url string) error {
	return s.update(func(c *Config) { c.ResourceURL = url })
}

func (s *FileSettings) StorageBackend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Storage.Backend
}

func (s *FileSettings) SetStorageBackend(backend string) error {
	if !slices.Contains(domain.StorageBackends(), backend) {
		return domain.ValidationError("unsupported storage backend %q", backend)
	}
	return s.update(func(c *Config) { c.Storage.Backend = backend })
}

func (s *FileSettings) WorkflowsDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.WorkflowsDir
}

// update applies fn and saves; the in-memory config is untouched if saving fails.
func (s *FileSettings) update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cfg
	fn(&next)
	if err := Save(s.path, &next); err != nil {
		return err
	}
	*s.cfg = next
	return nil
}
