package kvstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// SettingsBackend stores key-value pairs in a YAML settings file. Unlike
// the database backend, the underlying settings API is an in-memory map
// that only becomes durable after an explicit save, so every mutation
// rewrites the file. Keys are nested under a single section to keep them
// apart from other settings sharing the file.
type SettingsBackend struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

const settingsSection = "filing_state"

// NewSettingsBackend opens (or creates) the settings file at path.
func NewSettingsBackend(path string) (*SettingsBackend, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading settings %s: %w", path, err)
			}
		}
	}

	return &SettingsBackend{v: v, path: path}, nil
}

// DefaultSettingsPath returns the default location of the settings file,
// alongside the application config.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "settings.yaml")
	}
	return filepath.Join(home, ".config", "mailfiling", "settings.yaml")
}

// settingsKey maps a store key onto a settings path. Data keys are
// hex-encoded because the settings API is case-insensitive and splits
// paths on dots, and message-derived keys may contain both.
func settingsKey(key string) string {
	return settingsSection + "." + hex.EncodeToString([]byte(key))
}

// Get returns the value stored under key, or ErrNotFound.
func (s *SettingsBackend) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := settingsKey(key)
	if !s.v.IsSet(full) {
		return "", ErrNotFound
	}

	return s.v.GetString(full), nil
}

// Set stores value under key and saves the settings file.
func (s *SettingsBackend) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(settingsKey(key), value)
	return s.save()
}

// Remove deletes the value stored under key and saves the settings file.
// Viper has no key deletion, so the full settings map is rebuilt without
// the key; sections owned by other components pass through untouched.
func (s *SettingsBackend) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := hex.EncodeToString([]byte(key))
	section := s.v.GetStringMapString(settingsSection)
	if _, ok := section[encoded]; !ok {
		return nil
	}
	delete(section, encoded)

	all := s.v.AllSettings()
	if len(section) == 0 {
		delete(all, settingsSection)
	} else {
		all[settingsSection] = section
	}

	rebuilt := viper.New()
	rebuilt.SetConfigFile(s.path)
	rebuilt.SetConfigType("yaml")
	for k, v := range all {
		rebuilt.Set(k, v)
	}
	s.v = rebuilt

	return s.save()
}

// save writes the in-memory settings to disk, creating parent directories
// if needed. Callers must hold s.mu.
func (s *SettingsBackend) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("saving settings to %s: %w", s.path, err)
	}

	return nil
}
