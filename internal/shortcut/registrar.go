package shortcut

import (
	"golang.design/x/hotkey"
)

// HotkeyRegistrar registers accelerators through golang.design/x/hotkey.
type HotkeyRegistrar struct{}

// NewHotkeyRegistrar returns the default OS registrar.
func NewHotkeyRegistrar() *HotkeyRegistrar {
	return &HotkeyRegistrar{}
}

type hotkeyRegistration struct {
	hk *hotkey.Hotkey
}

func (r *hotkeyRegistration) Triggered() <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range r.hk.Keydown() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}

func (r *hotkeyRegistration) Close() error {
	return r.hk.Unregister()
}

// Register parses and registers the accelerator with the OS.
func (r *HotkeyRegistrar) Register(accelerator string) (Registration, error) {
	modifiers, key, err := parseAccelerator(accelerator)
	if err != nil {
		return nil, err
	}
	hk := hotkey.New(modifiers, key)
	if err := hk.Register(); err != nil {
		return nil, err
	}
	return &hotkeyRegistration{hk: hk}, nil
}
