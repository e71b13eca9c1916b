package bridge

// Outbound event channels (host to content).
const (
	EventMaximizeChange        = "window-maximize-change"
	EventZoomIn                = "zoom-in"
	EventZoomOut               = "zoom-out"
	EventZoomReset             = "zoom-reset"
	EventDisplayMediaRequested = "display-media-requested"
	EventNotificationClick     = "notification-click"
	EventGlobalKey             = "global-key-event"
	EventGlobalMouse           = "global-mouse-event"
	EventKeybindTriggered      = "global-keybind-triggered"
	EventOpenSettings          = "open-settings"
	EventPlaySound             = "play-notification-sound"
	EventSpellcheckState       = "spellcheck-state-changed"
	EventTextareaContextMenu   = "textarea-context-menu-target"
)

// knownEvents is the subscription allow-list; content cannot register
// interest in channels outside the catalogue.
var knownEvents = map[string]bool{
	EventMaximizeChange:        true,
	EventZoomIn:                true,
	EventZoomOut:               true,
	EventZoomReset:             true,
	EventDisplayMediaRequested: true,
	EventNotificationClick:     true,
	EventGlobalKey:             true,
	EventGlobalMouse:           true,
	EventKeybindTriggered:      true,
	EventOpenSettings:          true,
	EventPlaySound:             true,
	EventSpellcheckState:       true,
	EventTextareaContextMenu:   true,
}

// KnownEvent reports whether name is in the event catalogue.
func KnownEvent(name string) bool {
	return knownEvents[name]
}
