package config

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileSource serves the current configuration, re-reading the file when its
// modification time or size changes. A failed reload keeps the last good config.
type FileSource struct {
	path string

	mu      sync.Mutex
	cfg     *Config
	modTime time.Time
	size    int64
}

// NewFileSource loads path once and returns a source that tracks later edits.
func NewFileSource(path string) (*FileSource, error) {
	absPath, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	s := &FileSource{path: absPath}
	if _, err := s.Current(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the resolved config file path.
func (s *FileSource) Path() string { return s.path }

// Current returns the live configuration.
func (s *FileSource) Current() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if s.cfg != nil {
			return s.cfg, nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if s.cfg != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cfg, nil
	}

	cfg, err := Load(s.path)
	if err != nil {
		if s.cfg != nil {
			return s.cfg, nil
		}
		return nil, err
	}
	s.cfg = cfg
	s.modTime = info.ModTime()
	s.size = info.Size()
	return cfg, nil
}

// StaticSource always returns the same configuration.
type StaticSource struct {
	Config *Config
}

// Current returns the wrapped configuration.
func (s StaticSource) Current() (*Config, error) {
	if s.Config == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	return s.Config, nil
}
