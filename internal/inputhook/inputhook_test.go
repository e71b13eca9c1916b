package inputhook

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	events   chan Event
	startErr error
	starts   int
	stops    int
}

func (b *fakeBackend) Start() (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startErr != nil {
		return nil, b.startErr
	}
	b.events = make(chan Event, 16)
	return b.events, nil
}

func (b *fakeBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	if b.events != nil {
		close(b.events)
		b.events = nil
	}
}

func (b *fakeBackend) send(ev Event) {
	b.mu.Lock()
	ch := b.events
	b.mu.Unlock()
	ch <- ev
}

type recorder struct {
	mu       sync.Mutex
	keys     []KeyEvent
	mice     []MouseEvent
	keybinds []string
}

func (r *recorder) onKey(ev KeyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, ev)
}

func (r *recorder) onMouse(ev MouseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mice = append(r.mice, ev)
}

func (r *recorder) onKeybind(id string, direction Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keybinds = append(r.keybinds, id+":"+string(direction))
}

func (r *recorder) waitKeys(t *testing.T, n int) []KeyEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.keys) >= n {
			out := append([]KeyEvent(nil), r.keys...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d key events", n)
	return nil
}

func (r *recorder) waitKeybinds(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.keybinds) >= n {
			out := append([]string(nil), r.keybinds...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d keybind triggers", n)
	return nil
}

func keyPtr(v uint16) *uint16 { return &v }

func TestStartIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, nil, nil, nil)

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.Equal(t, 1, backend.starts)

	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestStartFailureUnwindsAndIsRetryable(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("no display")}
	m := NewManager(backend, nil, nil, nil)

	require.Error(t, m.Start())
	assert.False(t, m.IsRunning())

	backend.mu.Lock()
	backend.startErr = nil
	backend.mu.Unlock()
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	m.Stop()
}

func TestRawEventsForwardedWithModifiers(t *testing.T) {
	backend := &fakeBackend{}
	rec := &recorder{}
	m := NewManager(backend, rec.onKey, rec.onMouse, rec.onKeybind)
	require.NoError(t, m.Start())
	defer m.Stop()

	backend.send(Event{Kind: KindKeyDown, Keycode: 29, KeyName: "ctrl"})
	backend.send(Event{Kind: KindKeyDown, Keycode: 32, KeyName: "d"})

	keys := rec.waitKeys(t, 2)
	assert.Equal(t, DirectionDown, keys[1].Type)
	assert.Equal(t, uint16(32), keys[1].Keycode)
	assert.True(t, keys[1].Modifiers.Ctrl)
	assert.False(t, keys[1].Modifiers.Shift)
}

func TestKeybindRequiresExactModifierSet(t *testing.T) {
	backend := &fakeBackend{}
	rec := &recorder{}
	m := NewManager(backend, rec.onKey, rec.onMouse, rec.onKeybind)
	require.NoError(t, m.Register(Keybind{ID: "ptt", KeyCode: keyPtr(32), Modifiers: Modifiers{Ctrl: true}}))
	require.NoError(t, m.Start())
	defer m.Stop()

	// Ctrl+Shift held: not an exact match, only the raw events go out.
	backend.send(Event{Kind: KindKeyDown, Keycode: 29, KeyName: "ctrl"})
	backend.send(Event{Kind: KindKeyDown, Keycode: 42, KeyName: "shift"})
	backend.send(Event{Kind: KindKeyDown, Keycode: 32, KeyName: "d"})
	backend.send(Event{Kind: KindKeyUp, Keycode: 32, KeyName: "d"})

	// Release shift: now Ctrl+keycode 32 matches on both edges.
	backend.send(Event{Kind: KindKeyUp, Keycode: 42, KeyName: "shift"})
	backend.send(Event{Kind: KindKeyDown, Keycode: 32, KeyName: "d"})
	backend.send(Event{Kind: KindKeyUp, Keycode: 32, KeyName: "d"})

	got := rec.waitKeybinds(t, 2)
	assert.Equal(t, []string{"ptt:down", "ptt:up"}, got)
}

func TestMouseKeybind(t *testing.T) {
	backend := &fakeBackend{}
	rec := &recorder{}
	m := NewManager(backend, rec.onKey, rec.onMouse, rec.onKeybind)
	require.NoError(t, m.Register(Keybind{ID: "talk", MouseButton: keyPtr(4)}))
	require.NoError(t, m.Start())
	defer m.Stop()

	backend.send(Event{Kind: KindMouseDown, Button: 4})
	backend.send(Event{Kind: KindMouseUp, Button: 4})

	got := rec.waitKeybinds(t, 2)
	assert.Equal(t, []string{"talk:down", "talk:up"}, got)
}

func TestRegisterValidation(t *testing.T) {
	m := NewManager(&fakeBackend{}, nil, nil, nil)

	assert.ErrorIs(t, m.Register(Keybind{ID: "both", KeyCode: keyPtr(1), MouseButton: keyPtr(2)}), ErrInvalidKeybind)
	assert.ErrorIs(t, m.Register(Keybind{ID: "neither"}), ErrInvalidKeybind)
}

func TestRegisterReplaceInPlaceAndBound(t *testing.T) {
	m := NewManager(&fakeBackend{}, nil, nil, nil)

	for i := 0; i < MaxKeybinds; i++ {
		require.NoError(t, m.Register(Keybind{ID: string(rune('a' + i)), KeyCode: keyPtr(uint16(i))}))
	}
	assert.ErrorIs(t, m.Register(Keybind{ID: "overflow", KeyCode: keyPtr(99)}), ErrTooManyKeybinds)

	// Replacing an existing id does not count against the bound.
	require.NoError(t, m.Register(Keybind{ID: "a", KeyCode: keyPtr(77), Modifiers: Modifiers{Alt: true}}))
	assert.Equal(t, MaxKeybinds, m.KeybindCount())

	m.Unregister("a")
	assert.Equal(t, MaxKeybinds-1, m.KeybindCount())
	m.Unregister("a") // repeat is a no-op
	assert.Equal(t, MaxKeybinds-1, m.KeybindCount())

	m.UnregisterAll()
	assert.Equal(t, 0, m.KeybindCount())
}

func TestListenerDeathResetsToStopped(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, nil, nil, nil)
	require.NoError(t, m.Start())

	// Simulate the listener dying underneath the manager.
	backend.mu.Lock()
	close(backend.events)
	backend.events = nil
	backend.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for m.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, m.IsRunning())

	// And a restart works.
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	m.Stop()
}
