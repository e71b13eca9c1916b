package ui

import (
	"errors"
	"log"

	"github.com/ncruces/zenity"
)

const dialogTitle = "ChatWrap"

// PromptServerURL shows a modal entry dialog asking for the chat server URL.
// ok is false when the user cancelled.
func PromptServerURL(current string) (value string, ok bool) {
	value, err := zenity.Entry(
		"Enter the chat server URL (e.g. https://chat.example.com):",
		zenity.Title(dialogTitle+" - Server"),
		zenity.EntryText(current),
	)
	if err != nil {
		if !errors.Is(err, zenity.ErrCanceled) {
			log.Printf("Server URL prompt failed: %v", err)
		}
		return "", false
	}
	return value, true
}

// SaveFileDialog asks where to save a download. ok is false when cancelled.
func SaveFileDialog(suggestedName string) (path string, ok bool) {
	path, err := zenity.SelectFileSave(
		zenity.Title(dialogTitle+" - Save File"),
		zenity.Filename(suggestedName),
		zenity.ConfirmOverwrite(),
	)
	if err != nil {
		if !errors.Is(err, zenity.ErrCanceled) {
			log.Printf("Save dialog failed: %v", err)
		}
		return "", false
	}
	return path, true
}

// ErrorBox shows a modal error dialog.
func ErrorBox(message string) {
	if err := zenity.Error(message, zenity.Title(dialogTitle), zenity.ErrorIcon); err != nil {
		log.Printf("Failed to show error dialog: %v", err)
	}
}
