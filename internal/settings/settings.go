package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Theme selects the window chrome appearance requested by the user.
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

// Settings is the single durable configuration record. It is persisted as one
// JSON object; absent keys mean "not configured".
type Settings struct {
	ServerURL         string `json:"serverUrl,omitempty"`
	Theme             Theme  `json:"theme,omitempty"`
	NotificationSound string `json:"notificationSound,omitempty"`
}

// Patch is a partial update to Settings. Nil fields are left untouched by Apply.
type Patch struct {
	ServerURL         *string
	Theme             *Theme
	NotificationSound *string
}

// ErrInvalidServerURL is returned when a server URL is not an absolute
// http(s) URL.
var ErrInvalidServerURL = errors.New("server URL must be absolute with http or https scheme")

const settingsFileName = "settings.json"

// Store manages the settings blob, the zoom file and one-shot flag files
// under a single per-user directory.
type Store struct {
	mu        sync.Mutex
	dir       string
	lastWrite []byte
}

// DefaultDir returns the per-user configuration directory for the application.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config dir: %w", err)
	}
	return filepath.Join(base, "chatwrap"), nil
}

// Open creates the settings directory if needed and returns a Store bound to it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create settings dir '%s': %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the location of the settings blob.
func (s *Store) Path() string {
	return filepath.Join(s.dir, settingsFileName)
}

// Dir returns the settings directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get reads the current settings from disk. A missing or corrupt file is
// treated as empty settings so startup can always proceed to the first-run
// prompt instead of crashing.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() Settings {
	var cfg Settings
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read settings file '%s': %v. Using empty settings.", s.Path(), err)
		}
		return Settings{}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("Settings file '%s' is corrupt: %v. Using empty settings.", s.Path(), err)
		return Settings{}
	}
	if cfg.ServerURL != "" {
		if err := ValidateServerURL(cfg.ServerURL); err != nil {
			log.Printf("Stored server URL '%s' is invalid: %v. Treating as unconfigured.", cfg.ServerURL, err)
			cfg.ServerURL = ""
		}
	}
	return cfg
}

// Apply merges the patch into the settings on disk and writes the result
// atomically. The blob is re-read under the lock so two independent setters
// in quick succession cannot overwrite each other's keys.
func (s *Store) Apply(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readLocked()
	if p.ServerURL != nil {
		if *p.ServerURL != "" {
			if err := ValidateServerURL(*p.ServerURL); err != nil {
				return err
			}
		}
		cfg.ServerURL = *p.ServerURL
	}
	if p.Theme != nil {
		switch *p.Theme {
		case ThemeDark, ThemeLight, ThemeSystem:
			cfg.Theme = *p.Theme
		default:
			return fmt.Errorf("unknown theme '%s'", *p.Theme)
		}
	}
	if p.NotificationSound != nil {
		cfg.NotificationSound = *p.NotificationSound
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.Path(), data, 0o600); err != nil {
		return err
	}
	s.lastWrite = data
	return nil
}

// externallyChanged reports whether the blob on disk differs from the last
// content this process wrote, so the file watcher reacts to outside edits
// only and not to the Store's own saves.
func (s *Store) externallyChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return false
	}
	return !bytes.Equal(data, s.lastWrite)
}

// SetServerURL validates and persists the server URL.
func (s *Store) SetServerURL(raw string) error {
	return s.Apply(Patch{ServerURL: &raw})
}

// ValidateServerURL checks that raw parses as an absolute URL with an http or
// https scheme and a host.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return ErrInvalidServerURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidServerURL
	}
	return nil
}

// writeFileAtomic writes data to a temporary sibling and renames it over the
// target, so a crash mid-write never leaves a truncated settings file behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file in '%s': %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		if removeErr := os.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("Failed to remove temp file '%s': %v", tmpName, removeErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		if removeErr := os.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("Failed to remove temp file '%s': %v", tmpName, removeErr)
		}
		return err
	}
	return nil
}
