// Package inputhook runs the OS-wide key/mouse listener used for push-to-talk
// and custom keybinds. The hook is started on demand and every event is both
// forwarded verbatim to the content window and matched against registered
// keybinds.
package inputhook

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// EventKind classifies a raw hook event.
type EventKind int

const (
	KindKeyDown EventKind = iota
	KindKeyUp
	KindMouseDown
	KindMouseUp
	KindOther
)

// Direction is the shared down/up vocabulary for key and mouse triggers.
type Direction string

const (
	DirectionDown Direction = "down"
	DirectionUp   Direction = "up"
)

// Modifiers is the snapshot of held modifier keys attached to every event.
type Modifiers struct {
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Shift bool `json:"shift"`
	Meta  bool `json:"meta"`
}

// Event is one raw event from the backend.
type Event struct {
	Kind    EventKind
	Keycode uint16
	KeyName string
	Button  uint16
}

// KeyEvent is the payload forwarded to content for keyboard activity.
type KeyEvent struct {
	Type      Direction `json:"type"`
	Keycode   uint16    `json:"keycode"`
	KeyName   string    `json:"keyName"`
	Modifiers Modifiers `json:"modifiers"`
}

// MouseEvent is the payload forwarded to content for mouse button activity.
type MouseEvent struct {
	Type   Direction `json:"type"`
	Button uint16    `json:"button"`
}

// Keybind maps a trigger plus an exact modifier set to a caller-supplied id.
// Exactly one of KeyCode and MouseButton must be set.
type Keybind struct {
	ID          string
	KeyCode     *uint16
	MouseButton *uint16
	Modifiers   Modifiers
}

// Backend abstracts the native hook so the matching logic is independent of
// the OS listener. Start attaches the listener and returns its event channel;
// the channel closes when the listener detaches or dies. Stop detaches.
type Backend interface {
	Start() (<-chan Event, error)
	Stop()
}

// MaxKeybinds bounds the registered keybind table.
const MaxKeybinds = 32

// ErrTooManyKeybinds is returned when the keybind table is full.
var ErrTooManyKeybinds = errors.New("too many registered keybinds")

// ErrInvalidKeybind is returned when a keybind does not carry exactly one
// trigger.
var ErrInvalidKeybind = errors.New("keybind must set exactly one of key code and mouse button")

type state int

const (
	stateStopped state = iota
	stateStarting
	stateRunning
)

// Manager owns the hook lifecycle and the keybind table.
type Manager struct {
	mu        sync.Mutex
	backend   Backend
	state     state
	startDone chan struct{}
	startErr  error
	mods      Modifiers
	keybinds  map[string]Keybind

	onKey     func(KeyEvent)
	onMouse   func(MouseEvent)
	onKeybind func(id string, direction Direction)
}

// NewManager creates a Manager over the given backend. The callbacks receive
// forwarded raw events and keybind triggers; nil callbacks are skipped.
func NewManager(backend Backend, onKey func(KeyEvent), onMouse func(MouseEvent), onKeybind func(string, Direction)) *Manager {
	return &Manager{
		backend:   backend,
		keybinds:  make(map[string]Keybind),
		onKey:     onKey,
		onMouse:   onMouse,
		onKeybind: onKeybind,
	}
}

// Start attaches the hook. It is idempotent, and concurrent calls share one
// in-flight attempt instead of double-initializing the listener. The running
// flag flips only after a fully successful start; a failed start unwinds so a
// retry begins clean.
func (m *Manager) Start() error {
	m.mu.Lock()
	switch m.state {
	case stateRunning:
		m.mu.Unlock()
		return nil
	case stateStarting:
		done := m.startDone
		m.mu.Unlock()
		<-done
		m.mu.Lock()
		err := m.startErr
		m.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	m.state = stateStarting
	m.startDone = done
	m.mu.Unlock()

	events, err := m.backend.Start()

	m.mu.Lock()
	if err != nil {
		m.state = stateStopped
		m.startErr = err
		close(done)
		m.mu.Unlock()
		m.backend.Stop() // unwind any partial registration
		return fmt.Errorf("failed to start input hook: %w", err)
	}
	m.state = stateRunning
	m.startErr = nil
	m.mods = Modifiers{}
	close(done)
	m.mu.Unlock()

	go m.pump(events)
	log.Println("Global input hook started.")
	return nil
}

// Stop detaches the hook. The running flag flips before the listener is
// detached, so events delivered in between are discarded by the flag check.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state != stateRunning {
		m.mu.Unlock()
		return
	}
	m.state = stateStopped
	m.mu.Unlock()

	m.backend.Stop()
	log.Println("Global input hook stopped.")
}

// IsRunning reports whether the hook is fully started.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}

// pump consumes backend events until the channel closes. A close while we
// still believe the hook is running means the listener died underneath us;
// the manager self-heals to a clean, restartable stopped state.
func (m *Manager) pump(events <-chan Event) {
	for ev := range events {
		m.mu.Lock()
		if m.state != stateRunning {
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()
		m.process(ev)
	}

	m.mu.Lock()
	died := m.state == stateRunning
	if died {
		m.state = stateStopped
	}
	m.mu.Unlock()
	if died {
		log.Println("Input hook listener terminated unexpectedly; resetting to stopped state.")
		m.backend.Stop()
	}
}

// process updates modifier state, forwards the raw event and fires matching
// keybinds.
func (m *Manager) process(ev Event) {
	switch ev.Kind {
	case KindKeyDown, KindKeyUp:
		m.processKey(ev)
	case KindMouseDown, KindMouseUp:
		m.processMouse(ev)
	}
}

func (m *Manager) processKey(ev Event) {
	direction := DirectionDown
	if ev.Kind == KindKeyUp {
		direction = DirectionUp
	}

	m.mu.Lock()
	if mod, isModifier := modifierForKeyName(ev.KeyName); isModifier {
		m.applyModifier(mod, direction == DirectionDown)
	}
	mods := m.mods
	matches := m.matchKeyLocked(ev.Keycode, mods)
	m.mu.Unlock()

	if m.onKey != nil {
		m.onKey(KeyEvent{Type: direction, Keycode: ev.Keycode, KeyName: ev.KeyName, Modifiers: mods})
	}
	for _, id := range matches {
		if m.onKeybind != nil {
			m.onKeybind(id, direction)
		}
	}
}

func (m *Manager) processMouse(ev Event) {
	direction := DirectionDown
	if ev.Kind == KindMouseUp {
		direction = DirectionUp
	}

	m.mu.Lock()
	mods := m.mods
	matches := m.matchMouseLocked(ev.Button, mods)
	m.mu.Unlock()

	if m.onMouse != nil {
		m.onMouse(MouseEvent{Type: direction, Button: ev.Button})
	}
	for _, id := range matches {
		if m.onKeybind != nil {
			m.onKeybind(id, direction)
		}
	}
}

// matchKeyLocked returns the ids of keybinds whose key trigger and full
// modifier set equal the event. Caller holds the lock.
func (m *Manager) matchKeyLocked(keycode uint16, mods Modifiers) []string {
	var matches []string
	for id, kb := range m.keybinds {
		if kb.KeyCode != nil && *kb.KeyCode == keycode && kb.Modifiers == mods {
			matches = append(matches, id)
		}
	}
	return matches
}

func (m *Manager) matchMouseLocked(button uint16, mods Modifiers) []string {
	var matches []string
	for id, kb := range m.keybinds {
		if kb.MouseButton != nil && *kb.MouseButton == button && kb.Modifiers == mods {
			matches = append(matches, id)
		}
	}
	return matches
}

func (m *Manager) applyModifier(mod string, held bool) {
	switch mod {
	case "ctrl":
		m.mods.Ctrl = held
	case "alt":
		m.mods.Alt = held
	case "shift":
		m.mods.Shift = held
	case "meta":
		m.mods.Meta = held
	}
}

// Register adds or replaces the keybind with the given id. Re-registering an
// existing id replaces it in place and does not count against the bound.
func (m *Manager) Register(kb Keybind) error {
	if (kb.KeyCode == nil) == (kb.MouseButton == nil) {
		return ErrInvalidKeybind
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.keybinds[kb.ID]; !exists && len(m.keybinds) >= MaxKeybinds {
		return ErrTooManyKeybinds
	}
	m.keybinds[kb.ID] = kb
	return nil
}

// Unregister removes exactly the keybind with the given id. Removing an
// unknown id is a no-op.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keybinds, id)
}

// UnregisterAll clears the keybind table. Called on navigation: keybinds are
// page-scoped, not session-scoped.
func (m *Manager) UnregisterAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keybinds = make(map[string]Keybind)
}

// KeybindCount reports the number of registered keybinds.
func (m *Manager) KeybindCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keybinds)
}
