package bridge

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"
)

// Handler validates and executes one named request, returning an encoded
// Result.
type Handler func(payload json.RawMessage) string

// listener is one registered event callback. owner scopes replacement: a
// window re-subscribing replaces only its own previous listener on that
// channel, never listeners owned elsewhere.
type listener struct {
	owner string
	fn    func(event string, payload any)
}

// Router dispatches the fixed request catalogue and fans events out to
// subscribers.
type Router struct {
	deps     Deps
	handlers map[string]Handler

	mu        sync.Mutex
	listeners map[string][]listener

	badgeMu      sync.Mutex
	badgeCount   int
	badgePending int
	badgeTimer   *time.Timer
}

// NewRouter builds the Router and registers the request catalogue.
func NewRouter(deps Deps) *Router {
	r := &Router{
		deps:      deps,
		handlers:  make(map[string]Handler),
		listeners: make(map[string][]listener),
	}
	r.registerCatalogue()
	return r
}

// Dispatch decodes and routes one raw request. It never panics across the
// boundary; malformed input yields a discriminated failure.
func (r *Router) Dispatch(raw string) string {
	if len(raw) > MaxPayloadBytes {
		return Fail(CodePayloadTooLarge, nil)
	}

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return Fail(CodeBadRequest, Result{"detail": err.Error()})
	}

	handler, exists := r.handlers[req.Name]
	if !exists {
		log.Printf("Bridge: unknown request '%s'.", req.Name)
		return Fail(CodeUnknownRequest, Result{"name": req.Name})
	}
	return handler(req.Payload)
}

// Subscribe registers fn as owner's listener for the named event channel.
// The owner's previous listener on that channel is removed first, so
// re-subscription (e.g. on re-render) never stacks duplicates. Unknown event
// names are rejected.
func (r *Router) Subscribe(event, owner string, fn func(event string, payload any)) bool {
	if !KnownEvent(event) {
		log.Printf("Bridge: refusing subscription to unknown event '%s'.", event)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.listeners[event][:0]
	for _, l := range r.listeners[event] {
		if l.owner != owner {
			kept = append(kept, l)
		}
	}
	r.listeners[event] = append(kept, listener{owner: owner, fn: fn})
	return true
}

// Unsubscribe removes owner's listeners from every channel. Called when a
// window is destroyed.
func (r *Router) Unsubscribe(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for event, ls := range r.listeners {
		kept := ls[:0]
		for _, l := range ls {
			if l.owner != owner {
				kept = append(kept, l)
			}
		}
		r.listeners[event] = kept
	}
}

// Emit pushes payload to every current listener of the channel, in
// registration order.
func (r *Router) Emit(event string, payload any) {
	r.mu.Lock()
	ls := append([]listener(nil), r.listeners[event]...)
	r.mu.Unlock()

	for _, l := range ls {
		l.fn(event, payload)
	}
}

// RequestNames lists the request catalogue, sorted. The window layer embeds
// this into the render-side client so unknown names are refused before they
// cross the boundary.
func (r *Router) RequestNames() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListenerCount reports the listeners on a channel.
func (r *Router) ListenerCount(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[event])
}
