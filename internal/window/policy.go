package window

import (
	"net/url"

	"github.com/chatwrap/chatwrap/internal/ui"
)

// Policy captures the scheme and host an origin-scoped decision is made
// against. Popup policies are frozen at popup creation time, so a later
// server-URL change cannot retroactively grant an open popup new trust.
type Policy struct {
	Scheme string
	Host   string
}

// PolicyFor derives a Policy from the configured server URL.
func PolicyFor(serverURL string) (Policy, bool) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return Policy{}, false
	}
	return Policy{Scheme: u.Scheme, Host: u.Host}, true
}

// SameOrigin reports whether raw matches the policy's scheme and host.
func (p Policy) SameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == p.Scheme && u.Host == p.Host
}

// AllowMainNavigation reports whether the main window may navigate to raw.
// Only the host is compared: an https upgrade stays in-window.
func (p Policy) AllowMainNavigation(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Host == p.Host
}

// PopupDecision is the outcome for a window.open request.
type PopupDecision int

const (
	// PopupDeny drops the request entirely.
	PopupDeny PopupDecision = iota
	// PopupAllow opens a popup window carrying the same bridge.
	PopupAllow
	// PopupExternal hands the URL to the OS default handler.
	PopupExternal
)

// DecidePopup classifies a window.open request from same-origin content.
func (p Policy) DecidePopup(raw string) PopupDecision {
	if p.SameOrigin(raw) {
		return PopupAllow
	}
	if ui.ExternallyOpenable(raw) {
		return PopupExternal
	}
	return PopupDeny
}
