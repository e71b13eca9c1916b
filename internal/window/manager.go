package window

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chatwrap/chatwrap/internal/bridge"
	"github.com/chatwrap/chatwrap/internal/settings"
	"github.com/chatwrap/chatwrap/internal/ui"
)

// State is the lifecycle position of the main window.
type State int

const (
	StateNoWindow State = iota
	StateOpen
	StateHidden
	StateDestroyed
)

const (
	ownerMain   = "main"
	windowTitle = "ChatWrap"

	probeTimeout = 10 * time.Second
)

// Options wires the Manager. NewHost and Probe default to the native webview
// factory and an HTTP reachability check; tests replace them.
type Options struct {
	Store *settings.Store

	// NewHost creates a window; debug requests an inspectable engine.
	NewHost func(debug bool) Host

	// Probe checks the server before navigating so a dead server yields the
	// diagnostic page instead of an engine error screen.
	Probe func(rawurl string) error

	// ResetPageState tears down page-scoped registrations (keybinds, global
	// shortcuts, pending capture picks) when the document goes away.
	ResetPageState func()

	// OnHide runs after the main window folds into the tray. first is true
	// only the very first time this installation hides.
	OnHide func(first bool)
}

type popup struct {
	host   Host
	policy Policy
}

// Manager owns the main window lifecycle: create, load or fall back to the
// diagnostic page, hide to tray, re-show, and quit. It implements
// bridge.WindowControl.
type Manager struct {
	store   *settings.Store
	router  *bridge.Router
	newHost func(debug bool) Host
	probe   func(rawurl string) error
	reset   func()
	onHide  func(first bool)

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	main      Host
	popups    map[string]*popup
	popupSeq  int
	maximized bool
	devtools  bool
	restart   bool
	firstRun  bool
	quitting  bool
}

// NewManager builds the lifecycle manager. AttachRouter must be called before
// Run.
func NewManager(opts Options) *Manager {
	m := &Manager{
		store:   opts.Store,
		newHost: opts.NewHost,
		probe:   opts.Probe,
		reset:   opts.ResetPageState,
		onHide:  opts.OnHide,
		popups:  make(map[string]*popup),
	}
	m.cond = sync.NewCond(&m.mu)
	if m.newHost == nil {
		m.newHost = NewWebviewHost
	}
	if m.probe == nil {
		m.probe = probeServer
	}
	return m
}

// AttachRouter hands the Manager the bridge it serves. Split from NewManager
// because the router's Deps point back at the Manager.
func (m *Manager) AttachRouter(r *bridge.Router) {
	m.router = r
}

// MarkFirstRun records that this session began with the first-run prompt, so
// a cancel-first-run request from content quits instead of being ignored.
func (m *Manager) MarkFirstRun() {
	m.mu.Lock()
	m.firstRun = true
	m.mu.Unlock()
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run drives the main window until Quit. It blocks the calling goroutine;
// native toolkits want this on the process main thread. Hiding tears the
// window down and parks here until ShowMain, so a hidden window holds no
// document and no page-scoped registrations.
func (m *Manager) Run() {
	for {
		m.mu.Lock()
		if m.quitting {
			m.state = StateDestroyed
			m.mu.Unlock()
			return
		}
		host := m.newHost(m.devtools)
		m.main = host
		m.state = StateOpen
		m.mu.Unlock()

		m.prepare(host, ownerMain)
		m.load(host)
		host.Run()
		host.Destroy()

		if m.router != nil {
			m.router.Unsubscribe(ownerMain)
		}
		if m.reset != nil {
			m.reset()
		}

		m.mu.Lock()
		m.main = nil
		if m.quitting {
			m.state = StateDestroyed
			m.mu.Unlock()
			return
		}
		if m.restart {
			m.restart = false
			m.mu.Unlock()
			continue
		}
		m.state = StateHidden
		m.mu.Unlock()

		m.notifyHidden()

		m.mu.Lock()
		for m.state == StateHidden && !m.quitting {
			m.cond.Wait()
		}
		m.mu.Unlock()
	}
}

// prepare injects the client bootstrap and binds the boundary functions for
// one window.
func (m *Manager) prepare(host Host, owner string) {
	host.SetTitle(windowTitle)

	var requests []string
	if m.router != nil {
		requests = m.router.RequestNames()
	}
	host.Init(clientScript(requests, m.store.Zoom()))

	bindOrLog(host, bindInvoke, func(raw string) string {
		if m.router == nil {
			return bridge.Fail(bridge.CodeProviderFailure, nil)
		}
		return m.router.Dispatch(raw)
	})
	bindOrLog(host, bindSubscribe, func(event string) bool {
		if m.router == nil {
			return false
		}
		return m.router.Subscribe(event, owner, func(event string, payload any) {
			pushEvent(host, event, payload)
		})
	})
	bindOrLog(host, bindOpenWindow, func(rawurl string) {
		m.openWindow(owner, rawurl)
	})
	bindOrLog(host, bindNavigate, func(rawurl string) bool {
		return m.allowNavigation(owner, rawurl)
	})
	bindOrLog(host, bindRetry, func() {
		m.load(host)
	})
}

func bindOrLog(host Host, name string, fn any) {
	if err := host.Bind(name, fn); err != nil {
		log.Printf("Failed to bind '%s': %v", name, err)
	}
}

// pushEvent delivers one event into a window's document. Marshalling failures
// drop the event rather than injecting malformed script.
func pushEvent(host Host, event string, payload any) {
	js, err := emitScript(event, payload)
	if err != nil {
		log.Printf("Dropping event '%s': %v", event, err)
		return
	}
	host.Dispatch(func() {
		host.Eval(js)
	})
}

// load navigates the host to the configured server, or shows the diagnostic
// page when the server does not answer. Called on the host's own thread
// (before Run, or from a bound callback).
func (m *Manager) load(host Host) {
	addr := m.store.Get().ServerURL
	if err := m.probe(addr); err != nil {
		log.Printf("Server '%s' not reachable: %v", addr, err)
		host.SetHTML(DiagnosticPage(addr, err))
		return
	}
	host.Navigate(addr)
}

func probeServer(rawurl string) error {
	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Get(rawurl)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// openWindow applies the popup policy to a window.open (or target=_blank)
// request coming out of the named window.
func (m *Manager) openWindow(owner, rawurl string) {
	if owner != ownerMain {
		// Popups do not spawn further popups. Externally openable targets
		// still go to the OS handler.
		if err := ui.OpenExternal(rawurl); err != nil {
			log.Printf("Blocked window.open('%s') from %s: %v", rawurl, owner, err)
		}
		return
	}

	policy, ok := PolicyFor(m.store.Get().ServerURL)
	if !ok {
		log.Printf("Blocked window.open('%s'): no server configured.", rawurl)
		return
	}
	switch policy.DecidePopup(rawurl) {
	case PopupAllow:
		m.spawnPopup(rawurl, policy)
	case PopupExternal:
		if err := ui.OpenExternal(rawurl); err != nil {
			log.Printf("Failed to open '%s' externally: %v", rawurl, err)
		}
	default:
		log.Printf("Blocked window.open('%s').", rawurl)
	}
}

// allowNavigation decides whether an in-window navigation may proceed. The
// main window stays on the configured server's host; a popup stays inside the
// scheme+host frozen when it was created. Rejected targets with an externally
// openable scheme are handed to the OS handler instead of loading in-window.
func (m *Manager) allowNavigation(owner, rawurl string) bool {
	if owner == ownerMain {
		if policy, ok := PolicyFor(m.store.Get().ServerURL); ok && policy.AllowMainNavigation(rawurl) {
			return true
		}
	} else {
		m.mu.Lock()
		p, exists := m.popups[owner]
		m.mu.Unlock()
		if exists && p.policy.SameOrigin(rawurl) {
			return true
		}
	}
	if ui.ExternallyOpenable(rawurl) {
		if err := ui.OpenExternal(rawurl); err != nil {
			log.Printf("Failed to open '%s' externally: %v", rawurl, err)
		}
		return false
	}
	log.Printf("Blocked navigation to '%s' from %s.", rawurl, owner)
	return false
}

// spawnPopup opens a same-origin child window carrying the same bridge. The
// policy passed in is frozen: a later server change does not widen what this
// popup may do.
func (m *Manager) spawnPopup(rawurl string, policy Policy) {
	m.mu.Lock()
	if m.quitting {
		m.mu.Unlock()
		return
	}
	m.popupSeq++
	owner := fmt.Sprintf("popup-%d", m.popupSeq)
	host := m.newHost(m.devtools)
	m.popups[owner] = &popup{host: host, policy: policy}
	m.mu.Unlock()

	m.prepare(host, owner)
	host.Navigate(rawurl)

	go func() {
		host.Run()
		host.Destroy()
		if m.router != nil {
			m.router.Unsubscribe(owner)
		}
		m.mu.Lock()
		delete(m.popups, owner)
		m.mu.Unlock()
	}()
}

// notifyHidden marks the tray-hint flag and tells the app the window folded
// into the tray.
func (m *Manager) notifyHidden() {
	first, err := m.store.MarkFlag(settings.FlagTrayHintShown)
	if err != nil {
		log.Printf("Failed to record tray hint flag: %v", err)
		first = false
	}
	if m.onHide != nil {
		m.onHide(first)
	}
}

// ShowMain brings the main window back after a hide.
func (m *Manager) ShowMain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateHidden {
		return
	}
	m.state = StateOpen
	m.cond.Broadcast()
}

// Quit terminates every window and lets Run return.
func (m *Manager) Quit() {
	m.mu.Lock()
	m.quitting = true
	main := m.main
	popups := make([]*popup, 0, len(m.popups))
	for _, p := range m.popups {
		popups = append(popups, p)
	}
	m.cond.Broadcast()
	m.mu.Unlock()

	for _, p := range popups {
		p.host.Dispatch(p.host.Terminate)
	}
	if main != nil {
		main.Dispatch(main.Terminate)
	}
}

// --- bridge.WindowControl ---

// Minimize folds the window into the tray. The shell is tray-first; there is
// no separate taskbar presence to shrink to.
func (m *Manager) Minimize() { m.Hide() }

// Hide closes the main window without quitting.
func (m *Manager) Hide() {
	m.mu.Lock()
	main := m.main
	open := m.state == StateOpen
	m.mu.Unlock()
	if open && main != nil {
		main.Dispatch(main.Terminate)
	}
}

// ToggleMaximize flips the tracked maximize state and tells content so its
// chrome buttons stay in sync.
func (m *Manager) ToggleMaximize() {
	m.mu.Lock()
	m.maximized = !m.maximized
	maximized := m.maximized
	m.mu.Unlock()
	if m.router != nil {
		m.router.Emit(bridge.EventMaximizeChange, map[string]any{"maximized": maximized})
	}
}

// IsMaximized reports the tracked maximize state.
func (m *Manager) IsMaximized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maximized
}

// FocusMain raises the main window, recreating it if it is hidden.
func (m *Manager) FocusMain() {
	m.mu.Lock()
	main := m.main
	hidden := m.state == StateHidden
	m.mu.Unlock()
	if hidden {
		m.ShowMain()
		return
	}
	if main != nil {
		main.Dispatch(func() {
			main.Eval("window.focus();")
		})
	}
}

// SetZoom applies a zoom factor to the current document. Persistence is the
// caller's concern.
func (m *Manager) SetZoom(factor float64) {
	m.mu.Lock()
	main := m.main
	m.mu.Unlock()
	if main != nil {
		main.Dispatch(func() {
			main.Eval(zoomScript(factor))
		})
	}
}

// ToggleDevTools recreates the main window with the engine's inspector
// enabled or disabled. The engine only honors the flag at creation time.
func (m *Manager) ToggleDevTools() {
	m.mu.Lock()
	m.devtools = !m.devtools
	m.restart = true
	main := m.main
	m.mu.Unlock()
	if main != nil {
		main.Dispatch(main.Terminate)
	}
}

// ReloadServer reloads the configured server in the open window. A hidden
// window loads fresh on its next show anyway.
func (m *Manager) ReloadServer() {
	m.mu.Lock()
	main := m.main
	open := m.state == StateOpen
	m.mu.Unlock()
	if open && main != nil {
		main.Dispatch(func() {
			m.load(main)
		})
	}
}

// ConfigureServer prompts for a new server URL and reloads on success. Runs
// the dialog off the webview thread so the window stays responsive.
func (m *Manager) ConfigureServer() {
	go func() {
		current := m.store.Get().ServerURL
		raw, ok := ui.PromptServerURL(current)
		if !ok {
			return
		}
		if err := m.store.SetServerURL(raw); err != nil {
			log.Printf("Rejected server URL '%s': %v", raw, err)
			ui.ErrorBox("The server address must be an absolute http or https URL.")
			return
		}
		m.ReloadServer()
	}()
}

// CancelFirstRun quits when the session is still in its first-run
// configuration; outside first run the request is a no-op.
func (m *Manager) CancelFirstRun() {
	m.mu.Lock()
	firstRun := m.firstRun
	m.mu.Unlock()
	if firstRun {
		m.Quit()
	}
}
