// Package app wires the managers together and owns startup and shutdown
// ordering.
package app

import (
	"encoding/base64"
	"log"
	"os"
	"sync"

	atotto "github.com/atotto/clipboard"

	"github.com/chatwrap/chatwrap/internal/autostart"
	"github.com/chatwrap/chatwrap/internal/bridge"
	"github.com/chatwrap/chatwrap/internal/capture"
	"github.com/chatwrap/chatwrap/internal/download"
	"github.com/chatwrap/chatwrap/internal/inputhook"
	"github.com/chatwrap/chatwrap/internal/notify"
	"github.com/chatwrap/chatwrap/internal/resources"
	"github.com/chatwrap/chatwrap/internal/settings"
	"github.com/chatwrap/chatwrap/internal/shortcut"
	"github.com/chatwrap/chatwrap/internal/tray"
	"github.com/chatwrap/chatwrap/internal/ui"
	"github.com/chatwrap/chatwrap/internal/window"
)

const appName = "ChatWrap"

func saveDialog(suggestedName string) (string, bool) {
	return ui.SaveFileDialog(suggestedName)
}

// Application represents the main application.
type Application struct {
	version string
	store   *settings.Store

	router           *bridge.Router
	windowManager    *window.Manager
	trayManager      *tray.Manager
	captureManager   *capture.Manager
	hookManager      *inputhook.Manager
	shortcutManager  *shortcut.Manager
	notifyManager    *notify.Manager
	autostartManager *autostart.Manager

	iconData  []byte
	stopWatch func()
	quitOnce  sync.Once
}

// New creates a new application instance.
func New(store *settings.Store, version string) *Application {
	app := &Application{
		store:   store,
		version: version,
	}

	var err error
	app.iconData, err = resources.GetIcon()
	if err != nil {
		log.Printf("Warning: Failed to load embedded icon: %v", err)
	}

	app.captureManager = capture.NewManager(capture.NoopProvider{})
	app.hookManager = inputhook.NewManager(
		inputhook.NewGohookBackend(),
		app.onGlobalKey,
		app.onGlobalMouse,
		app.onKeybindTriggered,
	)
	app.shortcutManager = shortcut.NewManager(shortcut.NewHotkeyRegistrar(), app.onShortcutTriggered)
	app.notifyManager = notify.NewManager(appName, app.iconData, nil, app.onNotificationClick)
	app.notifyManager.SetOnShown(app.onNotificationShown)

	app.autostartManager, err = autostart.New("chatwrap", appName)
	if err != nil {
		log.Printf("Warning: Autostart is unavailable: %v", err)
	}

	app.windowManager = window.NewManager(window.Options{
		Store:          store,
		ResetPageState: app.onPageGone,
		OnHide:         app.onWindowHidden,
	})

	app.router = bridge.NewRouter(bridge.Deps{
		Settings:       store,
		Capture:        app.captureManager,
		Hook:           app.hookManager,
		Shortcuts:      app.shortcutManager,
		Notify:         app.notifyManager,
		Autostart:      app.autostartManager,
		Window:         app.windowManager,
		Badge:          app, // forwards to the tray once it is up
		Version:        version,
		SaveDialog:     saveDialog,
		Fetch:          download.Fetch,
		ReadClipboard:  atotto.ReadAll,
		WriteClipboard: atotto.WriteAll,
	})
	app.windowManager.AttachRouter(app.router)

	app.trayManager = tray.NewManager(version, app.iconData,
		app.onTrayOpen, app.onTraySettings, app.Quit)

	return app
}

// MarkFirstRun records that this session opened with the first-run prompt.
func (a *Application) MarkFirstRun() {
	a.windowManager.MarkFirstRun()
}

// Router exposes the bridge for the command layer and tests.
func (a *Application) Router() *bridge.Router {
	return a.router
}

// Run starts the tray and the settings watcher, then drives the main window
// loop on the calling goroutine until quit. Native window toolkits want that
// loop on the process main thread, so the tray runs beside it.
func (a *Application) Run() {
	stop, err := a.store.Watch(a.onSettingsFileChanged)
	if err != nil {
		log.Printf("Warning: Settings file watcher unavailable: %v", err)
	} else {
		a.stopWatch = stop
	}

	go a.trayManager.Run()

	a.windowManager.Run()
	a.shutdown()
}

// Quit initiates a full shutdown. Safe to call from any goroutine and more
// than once.
func (a *Application) Quit() {
	a.quitOnce.Do(func() {
		log.Println("Shutting down.")
		a.windowManager.Quit()
	})
}

// shutdown tears the managers down after the window loop has returned.
// Ordering: stop sources of new work first, then release OS registrations,
// then the tray.
func (a *Application) shutdown() {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.hookManager.Stop()
	a.shortcutManager.UnregisterAll()
	a.hookManager.UnregisterAll()
	a.captureManager.CancelAll("shutdown")
	a.notifyManager.CloseAll()
	a.trayManager.Quit()
}

// RequestDisplayMedia registers a screen-share request and announces it to
// content so the in-page picker can answer with capture-select-source. The
// resolve callback fires exactly once with the chosen source, or with no
// video on decline, timeout or navigation.
func (a *Application) RequestDisplayMedia(resolve func(capture.Selection)) {
	requestID, ok := a.captureManager.Begin(resolve)
	if !ok {
		return
	}
	a.router.Emit(bridge.EventDisplayMediaRequested, map[string]any{
		"requestId": requestID,
	})
}

// SetBadge implements bridge.BadgeSink by forwarding to the tray.
func (a *Application) SetBadge(count int) {
	a.trayManager.SetBadge(count)
}

// --- callbacks ---

// onPageGone clears page-scoped state when the main window's document goes
// away: registrations do not survive navigation or hide.
func (a *Application) onPageGone() {
	a.hookManager.UnregisterAll()
	a.shortcutManager.UnregisterAll()
	a.captureManager.CancelAll("navigation")
}

// onWindowHidden shows the tray hint the first time the window folds away.
func (a *Application) onWindowHidden(first bool) {
	if !first {
		return
	}
	a.notifyManager.Show(appName,
		"Still running in the system tray. Use the tray menu to reopen or quit.", "", "")
}

func (a *Application) onTrayOpen() {
	a.windowManager.ShowMain()
	a.windowManager.FocusMain()
}

func (a *Application) onTraySettings() {
	a.windowManager.ConfigureServer()
}

// onSettingsFileChanged reloads the server when the settings file is edited
// outside the app.
func (a *Application) onSettingsFileChanged() {
	log.Println("Settings file changed on disk; reloading server.")
	a.router.Emit(bridge.EventOpenSettings, nil)
	a.windowManager.ReloadServer()
}

func (a *Application) onGlobalKey(ev inputhook.KeyEvent) {
	a.router.Emit(bridge.EventGlobalKey, ev)
}

func (a *Application) onGlobalMouse(ev inputhook.MouseEvent) {
	a.router.Emit(bridge.EventGlobalMouse, ev)
}

func (a *Application) onKeybindTriggered(id string, direction inputhook.Direction) {
	a.router.Emit(bridge.EventKeybindTriggered, map[string]any{
		"id":   id,
		"type": string(direction),
	})
}

func (a *Application) onShortcutTriggered(id string) {
	a.router.Emit(bridge.EventKeybindTriggered, map[string]any{
		"id":   id,
		"type": string(inputhook.DirectionDown),
	})
}

func (a *Application) onNotificationClick(id, url string) {
	a.windowManager.ShowMain()
	a.windowManager.FocusMain()
	a.router.Emit(bridge.EventNotificationClick, map[string]any{
		"id":  id,
		"url": url,
	})
}

// maxSoundBytes caps the sound file shipped to content per notification.
const maxSoundBytes = 1 << 20

// onNotificationShown asks content to play the configured sound, if any.
// Content cannot read local files, so the file bytes travel with the event.
func (a *Application) onNotificationShown(id string) {
	sound := a.store.Get().NotificationSound
	if sound == "" {
		return
	}
	data, err := os.ReadFile(sound)
	if err != nil {
		log.Printf("Failed to read notification sound %s: %v", sound, err)
		return
	}
	if len(data) > maxSoundBytes {
		log.Printf("Notification sound %s exceeds %d bytes, skipping.", sound, maxSoundBytes)
		return
	}
	a.router.Emit(bridge.EventPlaySound, map[string]any{
		"id":   id,
		"data": base64.StdEncoding.EncodeToString(data),
	})
}
