// Package ui holds small host-side UI helpers: handing URLs to the OS
// default handler and the blocking dialogs built on zenity.
package ui

import (
	"errors"
	"log"
	"net/url"
)

// ErrSchemeNotAllowed rejects URLs outside the external-open allow-list.
var ErrSchemeNotAllowed = errors.New("URL scheme is not allowed for external open")

// ExternallyOpenable reports whether the URL may be handed to the OS default
// handler. Only http, https and mailto qualify; anything else (file:,
// javascript:, custom schemes) is rejected.
func ExternallyOpenable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "mailto":
		return true
	default:
		return false
	}
}

// OpenExternal hands the URL to the OS default handler after re-validating
// the scheme at this layer. Callers may have validated already; validation is
// never trusted across the boundary.
func OpenExternal(raw string) error {
	if !ExternallyOpenable(raw) {
		log.Printf("Refusing to open external URL with disallowed scheme: %s", raw)
		return ErrSchemeNotAllowed
	}
	log.Printf("Opening external URL: %s", raw)
	return openNative(raw)
}
