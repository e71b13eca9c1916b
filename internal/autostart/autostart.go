// Package autostart controls the per-user login item for the application.
package autostart

import (
	"fmt"
	"os"

	"github.com/emersion/go-autostart"
)

// Manager wraps the platform login-item registration.
type Manager struct {
	app *autostart.App
}

// New creates a Manager for the current executable. name is the stable
// identifier, displayName the user-visible label.
func New(name, displayName string) (*Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot determine executable path: %w", err)
	}
	return &Manager{
		app: &autostart.App{
			Name:        name,
			DisplayName: displayName,
			Exec:        []string{exe},
		},
	}, nil
}

// IsEnabled reports whether the login item is currently registered.
func (m *Manager) IsEnabled() bool {
	return m.app.IsEnabled()
}

// Enable registers the login item. Enabling an already-enabled item is a
// no-op.
func (m *Manager) Enable() error {
	if m.app.IsEnabled() {
		return nil
	}
	return m.app.Enable()
}

// Disable removes the login item. Disabling an already-disabled item is a
// no-op.
func (m *Manager) Disable() error {
	if !m.app.IsEnabled() {
		return nil
	}
	return m.app.Disable()
}
