package bridge

import (
	"context"

	"github.com/chatwrap/chatwrap/internal/autostart"
	"github.com/chatwrap/chatwrap/internal/capture"
	"github.com/chatwrap/chatwrap/internal/inputhook"
	"github.com/chatwrap/chatwrap/internal/notify"
	"github.com/chatwrap/chatwrap/internal/settings"
	"github.com/chatwrap/chatwrap/internal/shortcut"
)

// WindowControl is the slice of the window lifecycle the router may drive.
type WindowControl interface {
	Minimize()
	ToggleMaximize()
	IsMaximized() bool
	Hide()
	FocusMain()
	SetZoom(factor float64)
	ToggleDevTools()
	ReloadServer()
	ConfigureServer()
	CancelFirstRun()
}

// BadgeSink receives the debounced unread-count updates.
type BadgeSink interface {
	SetBadge(count int)
}

// Deps carries the capability providers the request catalogue dispatches to.
// SaveDialog and Fetch are injectable so handlers can be exercised without a
// display server or network.
type Deps struct {
	Settings  *settings.Store
	Capture   *capture.Manager
	Hook      *inputhook.Manager
	Shortcuts *shortcut.Manager
	Notify    *notify.Manager
	Autostart *autostart.Manager
	Window    WindowControl
	Badge     BadgeSink
	Version   string

	SaveDialog func(suggestedName string) (string, bool)
	Fetch      func(ctx context.Context, rawurl, destPath string) (int64, error)

	ReadClipboard  func() (string, error)
	WriteClipboard func(text string) error
}
