package window

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwrap/chatwrap/internal/bridge"
	"github.com/chatwrap/chatwrap/internal/settings"
)

type fakeHost struct {
	mu        sync.Mutex
	navs      []string
	htmls     []string
	evals     []string
	binds     map[string]any
	term      chan struct{}
	termOnce  sync.Once
	destroyed bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{binds: make(map[string]any), term: make(chan struct{})}
}

func (h *fakeHost) Navigate(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.navs = append(h.navs, url)
}

func (h *fakeHost) SetHTML(html string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.htmls = append(h.htmls, html)
}

func (h *fakeHost) SetTitle(string) {}
func (h *fakeHost) Init(string)     {}

func (h *fakeHost) Eval(js string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evals = append(h.evals, js)
}

func (h *fakeHost) Dispatch(fn func()) { fn() }

func (h *fakeHost) Bind(name string, fn any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.binds[name] = fn
	return nil
}

func (h *fakeHost) Run()       { <-h.term }
func (h *fakeHost) Terminate() { h.termOnce.Do(func() { close(h.term) }) }

func (h *fakeHost) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
}

func (h *fakeHost) lastNav() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.navs) == 0 {
		return ""
	}
	return h.navs[len(h.navs)-1]
}

type hostFactory struct {
	mu    sync.Mutex
	hosts []*fakeHost
}

func (f *hostFactory) new(debug bool) Host {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := newFakeHost()
	f.hosts = append(f.hosts, h)
	return h
}

func (f *hostFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hosts)
}

func (f *hostFactory) host(i int) *fakeHost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hosts[i]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

type managerEnv struct {
	m       *Manager
	factory *hostFactory
	store   *settings.Store
	router  *bridge.Router
	done    chan struct{}

	mu     sync.Mutex
	resets int
	hides  []bool
}

func (e *managerEnv) hideLog() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.hides...)
}

func (e *managerEnv) resetCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

func newManagerEnv(t *testing.T, probeErr error) *managerEnv {
	t.Helper()
	store, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SetServerURL("https://chat.example.com"))

	env := &managerEnv{factory: &hostFactory{}, store: store, done: make(chan struct{})}

	env.m = NewManager(Options{
		Store:   store,
		NewHost: env.factory.new,
		Probe: func(string) error {
			return probeErr
		},
		ResetPageState: func() {
			env.mu.Lock()
			env.resets++
			env.mu.Unlock()
		},
		OnHide: func(first bool) {
			env.mu.Lock()
			env.hides = append(env.hides, first)
			env.mu.Unlock()
		},
	})
	env.router = bridge.NewRouter(bridge.Deps{Settings: store, Window: env.m})
	env.m.AttachRouter(env.router)

	go func() {
		env.m.Run()
		close(env.done)
	}()

	return env
}

func (e *managerEnv) quit(t *testing.T) {
	t.Helper()
	e.m.Quit()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
}

func TestRunNavigatesToServer(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	host := env.factory.host(0)
	waitFor(t, func() bool { return host.lastNav() == "https://chat.example.com" }, "did not navigate")
	assert.Equal(t, StateOpen, env.m.State())
}

func TestProbeFailureShowsDiagnosticPage(t *testing.T) {
	env := newManagerEnv(t, errors.New("connection refused"))
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	host := env.factory.host(0)
	waitFor(t, func() bool {
		host.mu.Lock()
		defer host.mu.Unlock()
		return len(host.htmls) == 1
	}, "diagnostic page not shown")

	host.mu.Lock()
	page := host.htmls[0]
	host.mu.Unlock()
	assert.Contains(t, page, "chat.example.com")
	assert.Contains(t, page, "connection refused")
	assert.Empty(t, host.lastNav())
}

func TestHideFoldsToTrayAndShowRecreates(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	env.m.Hide()
	waitFor(t, func() bool { return len(env.hideLog()) == 1 }, "window did not hide")

	// First hide marks the tray hint flag and reports first=true.
	assert.Equal(t, []bool{true}, env.hideLog())
	assert.True(t, env.store.FlagSet(settings.FlagTrayHintShown))
	assert.GreaterOrEqual(t, env.resetCount(), 1, "hide must clear page-scoped state")

	env.m.ShowMain()
	waitFor(t, func() bool { return env.factory.count() == 2 }, "window not recreated on show")
	waitFor(t, func() bool {
		return env.factory.host(1).lastNav() == "https://chat.example.com"
	}, "recreated window did not navigate")

	env.m.Hide()
	waitFor(t, func() bool { return len(env.hideLog()) == 2 }, "second hide failed")
	assert.Equal(t, []bool{true, false}, env.hideLog())
}

func TestQuitWhileHidden(t *testing.T) {
	env := newManagerEnv(t, nil)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	env.m.Hide()
	waitFor(t, func() bool { return env.m.State() == StateHidden }, "window did not hide")

	env.quit(t)
	assert.Equal(t, StateDestroyed, env.m.State())
	assert.Equal(t, 1, env.factory.count())
}

func TestSameOriginPopupSpawnsWindow(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")

	env.m.openWindow(ownerMain, "https://chat.example.com/call/123")
	waitFor(t, func() bool { return env.factory.count() == 2 }, "popup not created")
	popup := env.factory.host(1)
	assert.Equal(t, "https://chat.example.com/call/123", popup.lastNav())

	// A popup may not spawn further popups.
	env.m.openWindow("popup-1", "https://chat.example.com/another")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, env.factory.count())
}

func TestDeniedPopupCreatesNothing(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	env.m.openWindow(ownerMain, "javascript:alert(1)")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, env.factory.count())
}

func TestPopupPolicyFrozenAtCreation(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	env.m.openWindow(ownerMain, "https://chat.example.com/call")
	waitFor(t, func() bool { return env.factory.count() == 2 }, "popup not created")

	// Changing the server later must not widen what owner main decided with,
	// and the existing popup keeps its frozen origin.
	require.NoError(t, env.store.SetServerURL("https://elsewhere.example.com"))
	env.m.mu.Lock()
	pol := env.m.popups["popup-1"].policy
	env.m.mu.Unlock()
	assert.Equal(t, "chat.example.com", pol.Host)

	// New popups are judged against the new server.
	env.m.openWindow(ownerMain, "https://elsewhere.example.com/x")
	waitFor(t, func() bool { return env.factory.count() == 3 }, "popup against new origin not created")
}

func TestMainNavigationConfinedToServerHost(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	host := env.factory.host(0)
	host.mu.Lock()
	_, bound := host.binds[bindNavigate]
	host.mu.Unlock()
	assert.True(t, bound, "navigation guard not bound")

	assert.True(t, env.m.allowNavigation(ownerMain, "https://chat.example.com/other"))
	// Host comparison only: a scheme change on the configured host stays
	// in-window.
	assert.True(t, env.m.allowNavigation(ownerMain, "http://chat.example.com/other"))

	assert.False(t, env.m.allowNavigation(ownerMain, "javascript:alert(1)"))
	assert.False(t, env.m.allowNavigation(ownerMain, "file:///etc/passwd"))
	assert.False(t, env.m.allowNavigation(ownerMain, "://broken"))
}

func TestPopupNavigationConfinedToFrozenOrigin(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	env.m.openWindow(ownerMain, "https://chat.example.com/call")
	waitFor(t, func() bool { return env.factory.count() == 2 }, "popup not created")

	assert.True(t, env.m.allowNavigation("popup-1", "https://chat.example.com/elsewhere"))
	assert.False(t, env.m.allowNavigation("popup-1", "javascript:alert(1)"))

	// A later server change never widens what the popup was created with.
	require.NoError(t, env.store.SetServerURL("https://elsewhere.example.com"))
	assert.True(t, env.m.allowNavigation("popup-1", "https://chat.example.com/still"))

	// An owner without an entry in the popup table gets nothing.
	assert.False(t, env.m.allowNavigation("popup-9", "javascript:alert(1)"))
}

func TestToggleMaximizeTracksAndEmits(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	var events []any
	env.router.Subscribe(bridge.EventMaximizeChange, "test", func(event string, payload any) {
		events = append(events, payload)
	})

	assert.False(t, env.m.IsMaximized())
	env.m.ToggleMaximize()
	assert.True(t, env.m.IsMaximized())
	require.Len(t, events, 1)

	env.m.ToggleMaximize()
	assert.False(t, env.m.IsMaximized())
}

func TestReloadServerNavigatesInPlace(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	host := env.factory.host(0)
	waitFor(t, func() bool { return host.lastNav() != "" }, "initial navigation missing")

	require.NoError(t, env.store.SetServerURL("https://next.example.com"))
	env.m.ReloadServer()
	waitFor(t, func() bool { return host.lastNav() == "https://next.example.com" }, "reload did not navigate")
	assert.Equal(t, 1, env.factory.count(), "reload must not recreate the window")
}

func TestCancelFirstRunQuitsOnlyDuringFirstRun(t *testing.T) {
	env := newManagerEnv(t, nil)
	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")

	env.m.CancelFirstRun()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateOpen, env.m.State())

	env.m.MarkFirstRun()
	env.m.CancelFirstRun()
	select {
	case <-env.done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel-first-run did not quit during first run")
	}
}

func TestSetZoomEvaluatesInMainWindow(t *testing.T) {
	env := newManagerEnv(t, nil)
	defer env.quit(t)

	waitFor(t, func() bool { return env.factory.count() == 1 }, "no window created")
	host := env.factory.host(0)

	env.m.SetZoom(1.25)
	waitFor(t, func() bool {
		host.mu.Lock()
		defer host.mu.Unlock()
		for _, js := range host.evals {
			if strings.Contains(js, "1.2500") {
				return true
			}
		}
		return false
	}, "zoom eval missing")
}
