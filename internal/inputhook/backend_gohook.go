package inputhook

import (
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// GohookBackend attaches the native OS hook via robotn/gohook and translates
// its events into the package vocabulary.
type GohookBackend struct {
	mu      sync.Mutex
	running bool
}

// NewGohookBackend returns the default native backend.
func NewGohookBackend() *GohookBackend {
	return &GohookBackend{}
}

// Start attaches the native hook and returns the translated event channel.
func (b *GohookBackend) Start() (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw := hook.Start()
	b.running = true

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for ev := range raw {
			translated, ok := translate(ev)
			if !ok {
				continue
			}
			select {
			case out <- translated:
			default:
				// Content is not keeping up; dropping a raw event is
				// preferable to blocking the native hook thread.
			}
		}
	}()
	return out, nil
}

// Stop detaches the native hook. Safe to call when not running.
func (b *GohookBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	hook.End()
}

func translate(ev hook.Event) (Event, bool) {
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		return Event{Kind: KindKeyDown, Keycode: ev.Rawcode, KeyName: keyName(ev)}, true
	case hook.KeyUp:
		return Event{Kind: KindKeyUp, Keycode: ev.Rawcode, KeyName: keyName(ev)}, true
	case hook.MouseDown:
		return Event{Kind: KindMouseDown, Button: ev.Button}, true
	case hook.MouseUp:
		return Event{Kind: KindMouseUp, Button: ev.Button}, true
	default:
		return Event{}, false
	}
}

func keyName(ev hook.Event) string {
	name := hook.RawcodetoKeychar(ev.Rawcode)
	if name == "" && ev.Keychar != 0 && ev.Keychar != 65535 {
		name = string(ev.Keychar)
	}
	return strings.ToLower(name)
}

// modifierForKeyName maps a backend key name onto the four modifier booleans
// tracked per event.
func modifierForKeyName(name string) (string, bool) {
	switch name {
	case "ctrl", "lctrl", "rctrl", "control":
		return "ctrl", true
	case "alt", "lalt", "ralt":
		return "alt", true
	case "shift", "lshift", "rshift":
		return "shift", true
	case "cmd", "lcmd", "rcmd", "meta", "win", "lwin", "rwin", "super":
		return "meta", true
	default:
		return "", false
	}
}
