//go:build !windows && !linux

package shortcut

import (
	"fmt"

	"golang.design/x/hotkey"
)

// parseAccelerator is not implemented on this OS; registration degrades to a
// provider failure at the bridge.
func parseAccelerator(accelerator string) ([]hotkey.Modifier, hotkey.Key, error) {
	return nil, 0, fmt.Errorf("global shortcuts are not supported on this OS")
}
