//go:build windows

package shortcut

import (
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

// parseAccelerator converts a string accelerator (e.g. "ctrl+shift+k") into
// golang.design/x/hotkey modifiers and key.
func parseAccelerator(accelerator string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(accelerator)), "+")
	var modifiers []hotkey.Modifier

	keyStr := parts[len(parts)-1]
	key, exists := keyMap[keyStr]
	if !exists {
		return nil, 0, fmt.Errorf("unsupported key: %s", keyStr)
	}

	for _, part := range parts[:len(parts)-1] {
		switch part {
		case "ctrl", "control":
			modifiers = append(modifiers, hotkey.ModCtrl)
		case "alt":
			modifiers = append(modifiers, hotkey.ModAlt)
		case "shift":
			modifiers = append(modifiers, hotkey.ModShift)
		case "super", "win", "cmd", "meta":
			modifiers = append(modifiers, hotkey.ModWin)
		default:
			return nil, 0, fmt.Errorf("unsupported modifier: %s", part)
		}
	}

	return modifiers, key, nil
}
