package window

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Names bound into every document. The content side reaches the host only
// through these.
const (
	bindInvoke     = "__chatwrapInvoke"
	bindSubscribe  = "__chatwrapSubscribe"
	bindOpenWindow = "__chatwrapOpenWindow"
	bindNavigate   = "__chatwrapGuardNavigate"
	bindRetry      = "__chatwrapRetry"
)

// clientScript builds the bootstrap injected before any page script runs. It
// installs window.chatwrap, refuses request names outside the catalogue,
// funnels window.open plus target=_blank links through the host's popup
// policy, and routes every other anchor click and form submit through the
// host's navigation guard.
func clientScript(requests []string, zoom float64) string {
	allowed, err := json.Marshal(requests)
	if err != nil {
		allowed = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("(function () {\n'use strict';\n")
	fmt.Fprintf(&b, "var allowed = {};\n%s.forEach(function (n) { allowed[n] = true; });\n", allowed)
	b.WriteString(`var handlers = {};
window.chatwrap = {
	invoke: function (name, payload) {
		if (!allowed[name]) {
			return Promise.resolve({ ok: false, error: 'unknown_request' });
		}
		var req = JSON.stringify({ name: name, payload: payload === undefined ? null : payload });
		return window.` + bindInvoke + `(req).then(function (res) { return JSON.parse(res); });
	},
	on: function (event, cb) {
		handlers[event] = cb;
		return window.` + bindSubscribe + `(event);
	},
	off: function (event) {
		delete handlers[event];
	}
};
window.__chatwrapEmit = function (event, payload) {
	var cb = handlers[event];
	if (cb) {
		try { cb(payload); } catch (e) { console.error('chatwrap handler failed', event, e); }
	}
};
window.open = function (url) {
	window.` + bindOpenWindow + `(String(url || ''));
	return null;
};
document.addEventListener('click', function (e) {
	var a = e.target && e.target.closest ? e.target.closest('a[href]') : null;
	if (!a || !a.href) {
		return;
	}
	var raw = a.getAttribute('href') || '';
	if (raw.charAt(0) === '#') {
		return;
	}
	e.preventDefault();
	if (a.target === '_blank') {
		window.` + bindOpenWindow + `(a.href);
		return;
	}
	var url = a.href;
	window.` + bindNavigate + `(url).then(function (ok) {
		if (ok) { window.location.href = url; }
	});
}, true);
document.addEventListener('submit', function (e) {
	var form = e.target;
	var action = String((form && form.action) || window.location.href);
	e.preventDefault();
	window.` + bindNavigate + `(action).then(function (ok) {
		if (ok && form) { form.submit(); }
	});
}, true);
document.addEventListener('keydown', function (e) {
	if (!e.ctrlKey && !e.metaKey) {
		return;
	}
	if (e.key === '+' || e.key === '=') {
		e.preventDefault();
		window.__chatwrapEmit('zoom-in', {});
	} else if (e.key === '-') {
		e.preventDefault();
		window.__chatwrapEmit('zoom-out', {});
	} else if (e.key === '0') {
		e.preventDefault();
		window.__chatwrapEmit('zoom-reset', {});
	}
}, true);
document.addEventListener('contextmenu', function (e) {
	var t = e.target;
	if (t && (t.tagName === 'TEXTAREA' || t.isContentEditable)) {
		window.__chatwrapEmit('textarea-context-menu-target', { x: e.clientX, y: e.clientY });
	}
}, true);
`)
	b.WriteString(zoomScript(zoom))
	b.WriteString("\n})();\n")
	return b.String()
}

// zoomScript applies the persisted zoom factor to the current document.
func zoomScript(factor float64) string {
	return fmt.Sprintf("document.documentElement.style.zoom = %.4f;", factor)
}

// emitScript builds the call that delivers one event to the document's
// registered handler.
func emitScript(event string, payload any) (string, error) {
	ev, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("window.__chatwrapEmit(%s, %s);", ev, data), nil
}
