//go:build !windows

package notify

import (
	"github.com/gen2brain/beeep"
)

// displayNative shows a notification through the desktop notification service.
func displayNative(appName, title, body, iconPath string) error {
	_ = appName // beeep derives the sender from the process
	return beeep.Notify(title, body, iconPath)
}
