//go:build windows

package notify

import (
	"github.com/go-toast/toast"
)

// displayNative shows a toast notification on Windows.
func displayNative(appName, title, body, iconPath string) error {
	notification := toast.Notification{
		AppID:   appName,
		Title:   title,
		Message: body,
		Icon:    iconPath,
	}
	return notification.Push()
}
