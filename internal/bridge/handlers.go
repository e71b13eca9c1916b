package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chatwrap/chatwrap/internal/capture"
	"github.com/chatwrap/chatwrap/internal/download"
	"github.com/chatwrap/chatwrap/internal/inputhook"
	"github.com/chatwrap/chatwrap/internal/settings"
	"github.com/chatwrap/chatwrap/internal/shortcut"
	"github.com/chatwrap/chatwrap/internal/ui"
)

// badgeDebounce coalesces rapid unread-count updates into one sink call.
const badgeDebounce = 300 * time.Millisecond

func (r *Router) registerCatalogue() {
	r.handlers["desktop-info"] = r.handleDesktopInfo

	r.handlers["window-minimize"] = r.handleWindowMinimize
	r.handlers["window-maximize"] = r.handleWindowMaximize
	r.handlers["window-close"] = r.handleWindowClose
	r.handlers["window-is-maximized"] = r.handleWindowIsMaximized

	r.handlers["open-external"] = r.handleOpenExternal

	r.handlers["clipboard-read-text"] = r.handleClipboardRead
	r.handlers["clipboard-write-text"] = r.handleClipboardWrite

	r.handlers["capture-get-sources"] = r.handleCaptureGetSources
	r.handlers["capture-select-source"] = r.handleCaptureSelectSource

	r.handlers["shortcut-register"] = r.handleShortcutRegister
	r.handlers["shortcut-unregister"] = r.handleShortcutUnregister
	r.handlers["shortcut-unregister-all"] = r.handleShortcutUnregisterAll

	r.handlers["autostart-enable"] = r.handleAutostartEnable
	r.handlers["autostart-disable"] = r.handleAutostartDisable
	r.handlers["autostart-is-enabled"] = r.handleAutostartIsEnabled
	r.handlers["autostart-is-initialized"] = r.handleAutostartIsInitialized
	r.handlers["autostart-mark-initialized"] = r.handleAutostartMarkInitialized

	r.handlers["media-access-status"] = r.handleCapabilityGranted
	r.handlers["accessibility-status"] = r.handleCapabilityGranted

	r.handlers["download-file"] = r.handleDownloadFile

	r.handlers["notification-show"] = r.handleNotificationShow
	r.handlers["notification-close"] = r.handleNotificationClose
	r.handlers["notification-close-many"] = r.handleNotificationCloseMany

	r.handlers["badge-get"] = r.handleBadgeGet
	r.handlers["badge-set"] = r.handleBadgeSet

	r.handlers["zoom-get"] = r.handleZoomGet
	r.handlers["zoom-set"] = r.handleZoomSet

	r.handlers["devtools-toggle"] = r.handleDevtoolsToggle

	r.handlers["keyhook-start"] = r.handleKeyhookStart
	r.handlers["keyhook-stop"] = r.handleKeyhookStop
	r.handlers["keyhook-is-running"] = r.handleKeyhookIsRunning
	r.handlers["keybind-register"] = r.handleKeybindRegister
	r.handlers["keybind-unregister"] = r.handleKeybindUnregister
	r.handlers["keybind-unregister-all"] = r.handleKeybindUnregisterAll

	r.handlers["spellcheck-get-state"] = r.handleSpellcheckState
	r.handlers["spellcheck-set-languages"] = r.handleSpellcheckState

	r.handlers["passkey-status"] = r.handlePasskeyStatus
	r.handlers["passkey-create"] = r.handleUnsupported
	r.handlers["passkey-get"] = r.handleUnsupported

	r.handlers["updater-check"] = r.handleUpdaterCheck

	r.handlers["server-url-get"] = r.handleServerURLGet
	r.handlers["server-url-set"] = r.handleServerURLSet
	r.handlers["server-url-configure"] = r.handleServerURLConfigure
	r.handlers["cancel-first-run"] = r.handleCancelFirstRun
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(payload, v)
}

// --- platform / window ---

func (r *Router) handleDesktopInfo(json.RawMessage) string {
	return OK(Result{"os": runtime.GOOS, "arch": runtime.GOARCH, "version": r.deps.Version})
}

func (r *Router) handleWindowMinimize(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	r.deps.Window.Minimize()
	return OK(nil)
}

func (r *Router) handleWindowMaximize(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	r.deps.Window.ToggleMaximize()
	return OK(nil)
}

func (r *Router) handleWindowClose(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	// User-initiated close hides to the tray; the lifecycle decides whether
	// this is actually a quit.
	r.deps.Window.Hide()
	return OK(nil)
}

func (r *Router) handleWindowIsMaximized(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	return OK(Result{"maximized": r.deps.Window.IsMaximized()})
}

// --- external URLs ---

func (r *Router) handleOpenExternal(payload json.RawMessage) string {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.URL == "" || len(req.URL) > MaxURLBytes {
		return Fail(CodeBadRequest, nil)
	}
	// Scheme is re-validated here even though the render-side client claims
	// to have checked it already.
	if err := ui.OpenExternal(req.URL); err != nil {
		if errors.Is(err, ui.ErrSchemeNotAllowed) {
			return Fail(CodeSchemeNotAllowed, nil)
		}
		return Fail(CodeProviderFailure, Result{"detail": err.Error()})
	}
	return OK(nil)
}

// --- clipboard ---

func (r *Router) handleClipboardRead(json.RawMessage) string {
	if r.deps.ReadClipboard == nil {
		return Fail(CodeProviderFailure, nil)
	}
	text, err := r.deps.ReadClipboard()
	if err != nil {
		log.Printf("Clipboard read failed: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(Result{"text": text})
}

func (r *Router) handleClipboardWrite(payload json.RawMessage) string {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if len(req.Text) > MaxClipboardBytes {
		return Fail(CodePayloadTooLarge, nil)
	}
	if r.deps.WriteClipboard == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.WriteClipboard(req.Text); err != nil {
		log.Printf("Clipboard write failed: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(nil)
}

// --- capture ---

func (r *Router) handleCaptureGetSources(payload json.RawMessage) string {
	var req struct {
		Types []string `json:"types"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	types := make([]capture.SourceType, 0, len(req.Types))
	for _, t := range req.Types {
		switch capture.SourceType(t) {
		case capture.SourceScreen, capture.SourceWindow:
			types = append(types, capture.SourceType(t))
		default:
			return Fail(CodeBadRequest, Result{"detail": "unknown source type: " + t})
		}
	}
	if r.deps.Capture == nil {
		return OK(Result{"sources": []capture.Source{}})
	}
	sources := r.deps.Capture.Enumerate(types)
	if sources == nil {
		sources = []capture.Source{}
	}
	return OK(Result{"sources": sources})
}

func (r *Router) handleCaptureSelectSource(payload json.RawMessage) string {
	var req struct {
		RequestID string `json:"requestId"`
		SourceID  string `json:"sourceId"`
		WithAudio bool   `json:"withAudio"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.RequestID == "" || len(req.RequestID) > MaxIDBytes || len(req.SourceID) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Capture != nil {
		r.deps.Capture.Select(req.RequestID, req.SourceID, req.WithAudio)
	}
	return OK(nil)
}

// --- global shortcuts ---

func (r *Router) handleShortcutRegister(payload json.RawMessage) string {
	var req struct {
		Accelerator string `json:"accelerator"`
		ID          string `json:"id"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.Accelerator == "" || req.ID == "" ||
		len(req.Accelerator) > MaxIDBytes || len(req.ID) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Shortcuts == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.Shortcuts.Register(req.Accelerator, req.ID); err != nil {
		if errors.Is(err, shortcut.ErrTooManyShortcuts) {
			return Fail(CodeLimitExceeded, nil)
		}
		return Fail(CodeProviderFailure, Result{"detail": err.Error()})
	}
	return OK(nil)
}

func (r *Router) handleShortcutUnregister(payload json.RawMessage) string {
	var req struct {
		Accelerator string `json:"accelerator"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.Accelerator == "" || len(req.Accelerator) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Shortcuts != nil {
		r.deps.Shortcuts.Unregister(req.Accelerator)
	}
	return OK(nil)
}

func (r *Router) handleShortcutUnregisterAll(json.RawMessage) string {
	if r.deps.Shortcuts != nil {
		r.deps.Shortcuts.UnregisterAll()
	}
	return OK(nil)
}

// --- autostart ---

func (r *Router) handleAutostartEnable(json.RawMessage) string {
	if r.deps.Autostart == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.Autostart.Enable(); err != nil {
		log.Printf("Failed to enable autostart: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(nil)
}

func (r *Router) handleAutostartDisable(json.RawMessage) string {
	if r.deps.Autostart == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.Autostart.Disable(); err != nil {
		log.Printf("Failed to disable autostart: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(nil)
}

func (r *Router) handleAutostartIsEnabled(json.RawMessage) string {
	if r.deps.Autostart == nil {
		return OK(Result{"enabled": false})
	}
	return OK(Result{"enabled": r.deps.Autostart.IsEnabled()})
}

func (r *Router) handleAutostartIsInitialized(json.RawMessage) string {
	if r.deps.Settings == nil {
		return OK(Result{"initialized": false})
	}
	return OK(Result{"initialized": r.deps.Settings.FlagSet(settings.FlagAutostartInitialized)})
}

func (r *Router) handleAutostartMarkInitialized(json.RawMessage) string {
	if r.deps.Settings == nil {
		return Fail(CodeProviderFailure, nil)
	}
	first, err := r.deps.Settings.MarkFlag(settings.FlagAutostartInitialized)
	if err != nil {
		log.Printf("Failed to mark autostart initialized: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(Result{"first": first})
}

// --- capability stubs ---

// handleCapabilityGranted answers media/accessibility checks; on the
// platforms this shell targets the checks always pass.
func (r *Router) handleCapabilityGranted(json.RawMessage) string {
	return OK(Result{"granted": true})
}

// --- download ---

func (r *Router) handleDownloadFile(payload json.RawMessage) string {
	var req struct {
		URL           string `json:"url"`
		SuggestedName string `json:"suggestedName"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.URL == "" || len(req.URL) > MaxURLBytes {
		return Fail(CodeBadRequest, nil)
	}
	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return Fail(CodeSchemeNotAllowed, nil)
	}

	name := filepath.Base(filepath.Clean(req.SuggestedName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "download"
	}

	if r.deps.SaveDialog == nil || r.deps.Fetch == nil {
		return Fail(CodeProviderFailure, nil)
	}
	destPath, ok := r.deps.SaveDialog(name)
	if !ok {
		return Fail(CodeCancelled, nil)
	}

	written, err := r.deps.Fetch(context.Background(), req.URL, destPath)
	if err != nil {
		log.Printf("Download of '%s' failed: %v", req.URL, err)
		switch {
		case errors.Is(err, download.ErrSchemeNotAllowed):
			return Fail(CodeSchemeNotAllowed, nil)
		case errors.Is(err, download.ErrTooLarge):
			return Fail(CodeLimitExceeded, nil)
		default:
			return Fail(CodeProviderFailure, Result{"detail": err.Error()})
		}
	}
	return OK(Result{"path": destPath, "bytes": written})
}

// --- notifications ---

func (r *Router) handleNotificationShow(payload json.RawMessage) string {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon"`
		URL   string `json:"url"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if len(req.URL) > MaxURLBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Notify == nil {
		return OK(Result{"id": ""})
	}
	id := r.deps.Notify.Show(req.Title, req.Body, req.Icon, req.URL)
	return OK(Result{"id": id})
}

func (r *Router) handleNotificationClose(payload json.RawMessage) string {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.ID == "" || len(req.ID) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Notify != nil {
		r.deps.Notify.Close(req.ID)
	}
	return OK(nil)
}

func (r *Router) handleNotificationCloseMany(payload json.RawMessage) string {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if len(req.IDs) > MaxCloseBatch {
		return Fail(CodeBadRequest, nil)
	}
	for _, id := range req.IDs {
		if id == "" || len(id) > MaxIDBytes {
			return Fail(CodeBadRequest, nil)
		}
	}
	if r.deps.Notify != nil {
		r.deps.Notify.CloseMany(req.IDs)
	}
	return OK(nil)
}

// --- badge ---

func (r *Router) handleBadgeGet(json.RawMessage) string {
	r.badgeMu.Lock()
	defer r.badgeMu.Unlock()
	return OK(Result{"count": r.badgeCount})
}

// handleBadgeSet debounces rapid updates so the tray is not redrawn on every
// keystroke-sized unread change.
func (r *Router) handleBadgeSet(payload json.RawMessage) string {
	var req struct {
		Count int `json:"count"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.Count < 0 {
		req.Count = 0
	}

	r.badgeMu.Lock()
	r.badgeCount = req.Count
	r.badgePending = req.Count
	if r.badgeTimer == nil {
		r.badgeTimer = time.AfterFunc(badgeDebounce, r.flushBadge)
	} else {
		r.badgeTimer.Reset(badgeDebounce)
	}
	r.badgeMu.Unlock()

	return OK(Result{"count": req.Count})
}

func (r *Router) flushBadge() {
	r.badgeMu.Lock()
	count := r.badgePending
	r.badgeMu.Unlock()
	if r.deps.Badge != nil {
		r.deps.Badge.SetBadge(count)
	}
}

// --- zoom ---

func (r *Router) handleZoomGet(json.RawMessage) string {
	if r.deps.Settings == nil {
		return OK(Result{"factor": settings.DefaultZoom})
	}
	return OK(Result{"factor": r.deps.Settings.Zoom()})
}

func (r *Router) handleZoomSet(payload json.RawMessage) string {
	var req struct {
		Factor float64 `json:"factor"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	clamped := settings.ClampZoom(req.Factor)
	if r.deps.Settings != nil {
		if err := r.deps.Settings.SetZoom(clamped); err != nil {
			log.Printf("Failed to persist zoom factor: %v", err)
		}
	}
	if r.deps.Window != nil {
		r.deps.Window.SetZoom(clamped)
	}
	return OK(Result{"factor": clamped})
}

// --- devtools ---

func (r *Router) handleDevtoolsToggle(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	r.deps.Window.ToggleDevTools()
	return OK(nil)
}

// --- input hook / keybinds ---

func (r *Router) handleKeyhookStart(json.RawMessage) string {
	if r.deps.Hook == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.Hook.Start(); err != nil {
		log.Printf("Failed to start input hook: %v", err)
		return Fail(CodeProviderFailure, nil)
	}
	return OK(nil)
}

func (r *Router) handleKeyhookStop(json.RawMessage) string {
	if r.deps.Hook != nil {
		r.deps.Hook.Stop()
	}
	return OK(nil)
}

func (r *Router) handleKeyhookIsRunning(json.RawMessage) string {
	running := r.deps.Hook != nil && r.deps.Hook.IsRunning()
	return OK(Result{"running": running})
}

func (r *Router) handleKeybindRegister(payload json.RawMessage) string {
	var req struct {
		ID          string  `json:"id"`
		Keycode     *uint16 `json:"keycode"`
		MouseButton *uint16 `json:"mouseButton"`
		Ctrl        bool    `json:"ctrl"`
		Alt         bool    `json:"alt"`
		Shift       bool    `json:"shift"`
		Meta        bool    `json:"meta"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.ID == "" || len(req.ID) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Hook == nil {
		return Fail(CodeProviderFailure, nil)
	}
	kb := inputhook.Keybind{
		ID:          req.ID,
		KeyCode:     req.Keycode,
		MouseButton: req.MouseButton,
		Modifiers: inputhook.Modifiers{
			Ctrl:  req.Ctrl,
			Alt:   req.Alt,
			Shift: req.Shift,
			Meta:  req.Meta,
		},
	}
	if err := r.deps.Hook.Register(kb); err != nil {
		if errors.Is(err, inputhook.ErrTooManyKeybinds) {
			return Fail(CodeLimitExceeded, nil)
		}
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	return OK(nil)
}

func (r *Router) handleKeybindUnregister(payload json.RawMessage) string {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.ID == "" || len(req.ID) > MaxIDBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Hook != nil {
		r.deps.Hook.Unregister(req.ID)
	}
	return OK(nil)
}

func (r *Router) handleKeybindUnregisterAll(json.RawMessage) string {
	if r.deps.Hook != nil {
		r.deps.Hook.UnregisterAll()
	}
	return OK(nil)
}

// --- stubs ---

func (r *Router) handleSpellcheckState(json.RawMessage) string {
	return OK(Result{"supported": false})
}

func (r *Router) handlePasskeyStatus(json.RawMessage) string {
	return OK(Result{"available": false})
}

func (r *Router) handleUnsupported(json.RawMessage) string {
	return Fail(CodeUnsupported, nil)
}

func (r *Router) handleUpdaterCheck(json.RawMessage) string {
	return OK(Result{"updateAvailable": false, "version": r.deps.Version})
}

// --- server URL / first run ---

func (r *Router) handleServerURLGet(json.RawMessage) string {
	if r.deps.Settings == nil {
		return OK(Result{"url": ""})
	}
	return OK(Result{"url": r.deps.Settings.Get().ServerURL})
}

func (r *Router) handleServerURLSet(payload json.RawMessage) string {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(payload, &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}
	if req.URL == "" || len(req.URL) > MaxURLBytes {
		return Fail(CodeBadRequest, nil)
	}
	if r.deps.Settings == nil {
		return Fail(CodeProviderFailure, nil)
	}
	if err := r.deps.Settings.SetServerURL(req.URL); err != nil {
		if errors.Is(err, settings.ErrInvalidServerURL) {
			return Fail(CodeBadRequest, Result{"detail": err.Error()})
		}
		return Fail(CodeProviderFailure, Result{"detail": err.Error()})
	}
	if r.deps.Window != nil {
		r.deps.Window.ReloadServer()
	}
	return OK(nil)
}

func (r *Router) handleServerURLConfigure(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	r.deps.Window.ConfigureServer()
	return OK(nil)
}

func (r *Router) handleCancelFirstRun(json.RawMessage) string {
	if r.deps.Window == nil {
		return Fail(CodeProviderFailure, nil)
	}
	r.deps.Window.CancelFirstRun()
	return OK(nil)
}
