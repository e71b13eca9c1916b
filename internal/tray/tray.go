package tray

import (
	"fmt"
	"log"

	"github.com/getlantern/systray"
)

// Manager handles the system tray icon and menu. The tray outlives the main
// window: hiding the window leaves the tray as the only way back in.
type Manager struct {
	version      string
	embeddedIcon []byte
	onOpen       func()
	onSettings   func()
	onQuit       func()

	badgeCh chan int
}

// NewManager creates a new system tray manager.
func NewManager(version string, embeddedIcon []byte, onOpen, onSettings, onQuit func()) *Manager {
	return &Manager{
		version:      version,
		embeddedIcon: embeddedIcon,
		onOpen:       onOpen,
		onSettings:   onSettings,
		onQuit:       onQuit,
		badgeCh:      make(chan int, 1),
	}
}

// Run initializes and starts the system tray. Blocks until systray.Quit.
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Quit tears the tray down.
func (m *Manager) Quit() {
	systray.Quit()
}

// SetBadge updates the tooltip with the unread count. Safe to call before the
// tray is ready; the latest count wins.
func (m *Manager) SetBadge(count int) {
	select {
	case m.badgeCh <- count:
	default:
		// Drain the stale count and keep the newest.
		select {
		case <-m.badgeCh:
		default:
		}
		select {
		case m.badgeCh <- count:
		default:
		}
	}
}

func (m *Manager) onReady() {
	title := fmt.Sprintf("ChatWrap %s", m.version)
	systray.SetTitle("ChatWrap")
	systray.SetTooltip(title)
	if len(m.embeddedIcon) > 0 {
		systray.SetIcon(m.embeddedIcon)
	} else {
		log.Println("Warning: No embedded icon data to set for systray.")
	}

	miVersion := systray.AddMenuItem(title, "ChatWrap version")
	miVersion.Disable()
	systray.AddSeparator()

	miOpen := systray.AddMenuItem("Open ChatWrap", "Show the main window")
	miSettings := systray.AddMenuItem("Server Settings...", "Change the server address")
	systray.AddSeparator()
	miQuit := systray.AddMenuItem("Quit", "Exit the application")

	go func() {
		for range miOpen.ClickedCh {
			log.Println("Open menu item clicked.")
			if m.onOpen != nil {
				m.onOpen()
			}
		}
	}()
	go func() {
		for range miSettings.ClickedCh {
			log.Println("Server Settings menu item clicked.")
			if m.onSettings != nil {
				m.onSettings()
			}
		}
	}()
	go func() {
		<-miQuit.ClickedCh
		log.Println("Quit menu item clicked.")
		if m.onQuit != nil {
			m.onQuit()
		}
		systray.Quit()
	}()

	go func() {
		for count := range m.badgeCh {
			if count > 0 {
				systray.SetTooltip(fmt.Sprintf("%s - %d unread", title, count))
			} else {
				systray.SetTooltip(title)
			}
		}
	}()

	log.Println("Systray ready and menu configured.")
}

func (m *Manager) onExit() {
	log.Println("Systray exiting.")
}
