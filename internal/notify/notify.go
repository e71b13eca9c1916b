// Package notify manages native desktop notifications on behalf of the
// content process: a bounded table of active entries, validated inputs and a
// safety timer per entry, since not every platform reliably reports the
// native "closed" signal.
package notify

import (
	"encoding/base64"
	"errors"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxActive bounds the concurrently shown notifications; beyond it Show
	// returns an empty id and creates no native handle.
	MaxActive = 16
	// AutoExpire force-closes and forgets an entry whose close signal never
	// arrived.
	AutoExpire = 30 * time.Second

	maxTitleRunes = 128
	maxBodyRunes  = 512
	// MaxIconBytes caps the decoded inline icon payload.
	MaxIconBytes = 256 * 1024
)

// ErrBadIcon is returned when an inline icon is not a recognized image data
// URI under the size cap.
var ErrBadIcon = errors.New("notification icon must be a png/jpeg/gif data URI under the size cap")

// DisplayFunc renders one native notification. iconPath may be empty.
type DisplayFunc func(appName, title, body, iconPath string) error

type active struct {
	timer    *time.Timer
	clickURL string
	iconPath string
}

// Manager owns the active-notification table.
type Manager struct {
	mu           sync.Mutex
	appName      string
	embeddedIcon []byte
	display      DisplayFunc
	active       map[string]*active
	onClick      func(id, url string)
	onShown      func(id string)
}

// SetOnShown installs a callback fired after a notification is successfully
// displayed. Used for the optional notification sound.
func (m *Manager) SetOnShown(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShown = fn
}

// NewManager creates a Manager. display may be nil, in which case the
// platform displayer is used. onClick fires when a notification is clicked,
// carrying the attached URL if any.
func NewManager(appName string, embeddedIcon []byte, display DisplayFunc, onClick func(id, url string)) *Manager {
	if display == nil {
		display = displayNative
	}
	return &Manager{
		appName:      appName,
		embeddedIcon: embeddedIcon,
		display:      display,
		active:       make(map[string]*active),
		onClick:      onClick,
	}
}

// Show validates and displays a notification and returns its generated id.
// An empty id means the request was rejected (table full) or display failed;
// no native handle exists in either case.
func (m *Manager) Show(title, body, iconDataURI, clickURL string) string {
	title = truncateRunes(title, maxTitleRunes)
	body = truncateRunes(body, maxBodyRunes)

	if clickURL != "" && !clickURLAllowed(clickURL) {
		log.Printf("Dropping notification click URL with disallowed scheme: %s", clickURL)
		clickURL = ""
	}

	iconPath := ""
	if iconDataURI != "" {
		path, err := m.writeIcon(iconDataURI)
		if err != nil {
			log.Printf("Ignoring invalid notification icon: %v", err)
		} else {
			iconPath = path
		}
	}
	if iconPath == "" && len(m.embeddedIcon) > 0 {
		if path, err := writeTempIcon(m.embeddedIcon); err == nil {
			iconPath = path
		}
	}

	m.mu.Lock()
	if len(m.active) >= MaxActive {
		m.mu.Unlock()
		log.Printf("Too many active notifications (%d); rejecting new one.", MaxActive)
		removeIconFile(iconPath)
		return ""
	}
	id := uuid.NewString()
	entry := &active{clickURL: clickURL, iconPath: iconPath}
	entry.timer = time.AfterFunc(AutoExpire, func() {
		if m.remove(id) {
			log.Printf("Notification %s expired.", id)
		}
	})
	m.active[id] = entry
	m.mu.Unlock()

	if err := m.display(m.appName, title, body, iconPath); err != nil {
		log.Printf("Failed to display notification: %v", err)
		m.remove(id)
		return ""
	}

	m.mu.Lock()
	shown := m.onShown
	m.mu.Unlock()
	if shown != nil {
		shown(id)
	}
	return id
}

// Click tears down the entry and fires the click callback with the attached
// URL. A second click or a click after expiry is a harmless no-op.
func (m *Manager) Click(id string) {
	m.mu.Lock()
	entry, exists := m.active[id]
	var clickURL string
	if exists {
		clickURL = entry.clickURL
	}
	m.mu.Unlock()

	if !m.remove(id) {
		return
	}
	if m.onClick != nil {
		m.onClick(id, clickURL)
	}
}

// Close tears down the entry. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.remove(id)
}

// CloseMany tears down each listed entry.
func (m *Manager) CloseMany(ids []string) {
	for _, id := range ids {
		m.remove(id)
	}
}

// CloseAll tears down every active entry; called at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.remove(id)
	}
}

// ActiveCount reports the number of live entries.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// remove is the single teardown point. It reports whether the entry still
// existed, so double teardown from racing timer/click/close paths is safe.
func (m *Manager) remove(id string) bool {
	m.mu.Lock()
	entry, exists := m.active[id]
	if exists {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	entry.timer.Stop()
	removeIconFile(entry.iconPath)
	return true
}

// writeIcon validates the inline data URI and writes the decoded image to a
// temp file for the native displayer.
func (m *Manager) writeIcon(dataURI string) (string, error) {
	payload := ""
	for _, prefix := range []string{
		"data:image/png;base64,",
		"data:image/jpeg;base64,",
		"data:image/gif;base64,",
	} {
		if strings.HasPrefix(dataURI, prefix) {
			payload = strings.TrimPrefix(dataURI, prefix)
			break
		}
	}
	if payload == "" {
		return "", ErrBadIcon
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxIconBytes {
		return "", ErrBadIcon
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) > MaxIconBytes {
		return "", ErrBadIcon
	}
	return writeTempIcon(raw)
}

// writeTempIcon writes icon bytes to a temporary file and returns its
// absolute path.
func writeTempIcon(iconData []byte) (string, error) {
	tmpFile, err := os.CreateTemp("", "chatwrap-icon-*")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := tmpFile.Write(iconData); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	absPath, err := filepath.Abs(tmpFile.Name())
	if err != nil {
		return tmpFile.Name(), nil
	}
	return absPath, nil
}

func removeIconFile(path string) {
	if path == "" {
		return
	}
	// Give the native renderer a moment before the file disappears.
	time.AfterFunc(10*time.Second, func() { os.Remove(path) })
}

func clickURLAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
