package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrNoSession = errors.New("not logged in")

// StoredSession is what the CLI keeps between runs.
type StoredSession struct {
	BaseURL   string    `yaml:"base_url"`
	Token     string    `yaml:"token"`
	UserID    uuid.UUID `yaml:"user_id"`
	UserName  string    `yaml:"user_name"`
	UserEmail string    `yaml:"user_email,omitempty"`
}

func SaveSession(path string, s StoredSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func LoadSession(path string) (StoredSession, error) {
	var s StoredSession
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, ErrNoSession
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Token == "" {
		return s, ErrNoSession
	}
	return s, nil
}

func RemoveSession(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
