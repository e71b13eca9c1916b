// Package shortcut maintains the OS global accelerator registry. Entries are
// owned by this process only; unregister paths never touch accelerators
// registered by other applications.
package shortcut

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// Registration is the handle for one registered accelerator. Triggered
// receives an event per press; Close releases the OS registration.
type Registration interface {
	Triggered() <-chan struct{}
	Close() error
}

// Registrar abstracts the OS accelerator API so the registry logic is
// testable without grabbing real system hotkeys.
type Registrar interface {
	Register(accelerator string) (Registration, error)
}

// MaxShortcuts bounds the registered accelerator table.
const MaxShortcuts = 32

// ErrTooManyShortcuts is returned when the table is full.
var ErrTooManyShortcuts = errors.New("too many registered shortcuts")

type entry struct {
	id   string
	reg  Registration
	done chan struct{}
}

// Manager maps accelerator strings to caller ids. At most one id per
// accelerator: re-registering replaces the previous owner in place.
type Manager struct {
	mu        sync.Mutex
	registrar Registrar
	entries   map[string]*entry
	onTrigger func(id string)
}

// NewManager creates a Manager. onTrigger fires with the caller id each time
// a registered accelerator is pressed.
func NewManager(registrar Registrar, onTrigger func(id string)) *Manager {
	return &Manager{
		registrar: registrar,
		entries:   make(map[string]*entry),
		onTrigger: onTrigger,
	}
}

// Register binds the accelerator to id. An accelerator already held by this
// process is released first so the newest registration wins.
func (m *Manager) Register(accelerator, id string) error {
	m.mu.Lock()
	if existing, exists := m.entries[accelerator]; exists {
		m.releaseLocked(accelerator, existing)
	} else if len(m.entries) >= MaxShortcuts {
		m.mu.Unlock()
		return ErrTooManyShortcuts
	}
	m.mu.Unlock()

	reg, err := m.registrar.Register(accelerator)
	if err != nil {
		return fmt.Errorf("failed to register shortcut '%s': %w", accelerator, err)
	}

	e := &entry{id: id, reg: reg, done: make(chan struct{})}

	// Re-check under the lock: a concurrent Register for the same accelerator
	// may have inserted between the pre-check and here, and the bound may have
	// filled up. The displaced entry is released so its OS registration and
	// trigger goroutine do not leak.
	m.mu.Lock()
	if displaced, exists := m.entries[accelerator]; exists {
		m.releaseLocked(accelerator, displaced)
	}
	if len(m.entries) >= MaxShortcuts {
		m.mu.Unlock()
		if cerr := reg.Close(); cerr != nil {
			log.Printf("Failed to release shortcut '%s': %v", accelerator, cerr)
		}
		return ErrTooManyShortcuts
	}
	m.entries[accelerator] = e
	m.mu.Unlock()

	triggered := reg.Triggered()
	go func() {
		for {
			select {
			case _, ok := <-triggered:
				if !ok {
					return
				}
				log.Printf("Global shortcut '%s' triggered (id=%s).", accelerator, id)
				if m.onTrigger != nil {
					m.onTrigger(id)
				}
			case <-e.done:
				return
			}
		}
	}()

	log.Printf("Registered global shortcut '%s' for id '%s'.", accelerator, id)
	return nil
}

// Unregister releases the accelerator if this process holds it. Unknown
// accelerators are a no-op.
func (m *Manager) Unregister(accelerator string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, exists := m.entries[accelerator]; exists {
		m.releaseLocked(accelerator, e)
	}
}

// UnregisterAll releases every accelerator this process registered. Called on
// navigation and at shutdown.
func (m *Manager) UnregisterAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for accelerator, e := range m.entries {
		m.releaseLocked(accelerator, e)
	}
}

// releaseLocked closes one entry and removes it. Caller holds the lock.
func (m *Manager) releaseLocked(accelerator string, e *entry) {
	close(e.done)
	if err := e.reg.Close(); err != nil {
		log.Printf("Failed to release shortcut '%s': %v", accelerator, err)
	}
	delete(m.entries, accelerator)
}

// IDFor reports the id bound to the accelerator, if any.
func (m *Manager) IDFor(accelerator string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, exists := m.entries[accelerator]
	if !exists {
		return "", false
	}
	return e.id, true
}

// Count reports the number of accelerators held by this process.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
