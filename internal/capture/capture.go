// Package capture manages screen-share source enumeration and the pending
// selection protocol between the OS media request and the in-page picker.
package capture

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SourceType filters enumeration to screens, windows or both.
type SourceType string

const (
	SourceScreen SourceType = "screen"
	SourceWindow SourceType = "window"
)

// Source is one enumerable capture target. Thumbnail is a data URI; DisplayID
// associates a screen source with its display.
type Source struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      SourceType `json:"type"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	DisplayID string     `json:"displayId,omitempty"`
}

// Selection is the terminal result of one capture request. A nil Video means
// the request was declined, timed out or was cancelled.
type Selection struct {
	Video *Source
	Audio bool
}

// Provider enumerates capture sources from the OS. Implementations are thin
// adapters over platform capture APIs; errors degrade to an empty list at the
// call site rather than crossing the bridge.
type Provider interface {
	Sources(types []SourceType) ([]Source, error)
}

// SelectionTimeout bounds how long an OS media request waits for the in-page
// picker before auto-resolving with no video.
const SelectionTimeout = 60 * time.Second

// MaxPending bounds the number of concurrently outstanding requests; beyond
// it new requests resolve immediately with no video.
const MaxPending = 8

type pendingRequest struct {
	resolve func(Selection)
	timer   *time.Timer
}

// Manager owns the pending-request table and the source cache. Each request id
// resolves exactly once, via explicit selection, timeout, navigation or
// shutdown; every terminal transition clears the cache.
type Manager struct {
	mu       sync.Mutex
	provider Provider
	pending  map[string]*pendingRequest
	cache    map[string]Source
}

// NewManager creates a Manager backed by the given provider.
func NewManager(provider Provider) *Manager {
	return &Manager{
		provider: provider,
		pending:  make(map[string]*pendingRequest),
		cache:    make(map[string]Source),
	}
}

// Enumerate lists sources matching the filter, replaces the cache with the
// full result set and returns the redacted view handed to content.
func (m *Manager) Enumerate(types []SourceType) []Source {
	if len(types) == 0 {
		types = []SourceType{SourceScreen, SourceWindow}
	}
	sources, err := m.provider.Sources(types)
	if err != nil {
		log.Printf("Capture source enumeration failed: %v. Returning empty list.", err)
		sources = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]Source, len(sources))
	for _, src := range sources {
		m.cache[src.ID] = src
	}
	return sources
}

// Begin registers a new pending request for an OS-level media callback and
// returns its opaque request id. The resolve callback is invoked exactly once.
// When the pending table is full the callback resolves immediately with no
// video and Begin reports ok=false.
func (m *Manager) Begin(resolve func(Selection)) (requestID string, ok bool) {
	m.mu.Lock()
	if len(m.pending) >= MaxPending {
		m.mu.Unlock()
		log.Printf("Too many pending capture requests (%d); rejecting new request.", MaxPending)
		resolve(Selection{})
		return "", false
	}

	requestID = uuid.NewString()
	entry := &pendingRequest{resolve: resolve}
	entry.timer = time.AfterFunc(SelectionTimeout, func() {
		m.expire(requestID)
	})
	m.pending[requestID] = entry
	m.mu.Unlock()

	log.Printf("Capture request %s pending selection.", requestID)
	return requestID, true
}

// Select resolves the pending request with the cached source matching
// sourceID, or with no video when sourceID is empty or unknown. A stale or
// already-resolved request id is a no-op apart from clearing the cache.
func (m *Manager) Select(requestID, sourceID string, withAudio bool) {
	m.mu.Lock()
	entry, exists := m.pending[requestID]
	if !exists {
		// Late or duplicate selection; the request already resolved.
		m.cache = make(map[string]Source)
		m.mu.Unlock()
		log.Printf("Ignoring selection for unknown capture request %s.", requestID)
		return
	}

	entry.timer.Stop()
	delete(m.pending, requestID)

	var sel Selection
	if sourceID != "" {
		if src, found := m.cache[sourceID]; found {
			sel = Selection{Video: &src, Audio: withAudio}
		} else {
			log.Printf("Capture request %s referenced unknown source '%s'; resolving with no video.", requestID, sourceID)
		}
	}
	m.cache = make(map[string]Source)
	m.mu.Unlock()

	entry.resolve(sel)
}

// expire auto-resolves a request whose selection never arrived.
func (m *Manager) expire(requestID string) {
	m.mu.Lock()
	entry, exists := m.pending[requestID]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.pending, requestID)
	m.cache = make(map[string]Source)
	m.mu.Unlock()

	log.Printf("Capture request %s timed out; resolving with no video.", requestID)
	entry.resolve(Selection{})
}

// CancelAll resolves every pending request with no video and clears the cache.
// Called on navigation (the originating picker UI is gone) and at shutdown.
func (m *Manager) CancelAll(reason string) {
	m.mu.Lock()
	entries := make([]*pendingRequest, 0, len(m.pending))
	for id, entry := range m.pending {
		entry.timer.Stop()
		entries = append(entries, entry)
		delete(m.pending, id)
	}
	m.cache = make(map[string]Source)
	m.mu.Unlock()

	if len(entries) > 0 {
		log.Printf("Cancelling %d pending capture request(s): %s.", len(entries), reason)
	}
	for _, entry := range entries {
		entry.resolve(Selection{})
	}
}

// PendingCount reports the number of unresolved requests.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// CachedCount reports the number of cached sources.
func (m *Manager) CachedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// NoopProvider is used on platforms without a capture adapter; enumeration
// degrades to an empty list.
type NoopProvider struct{}

// Sources always returns an empty list.
func (NoopProvider) Sources([]SourceType) ([]Source, error) {
	return nil, nil
}
