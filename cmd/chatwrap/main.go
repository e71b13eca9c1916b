package main

import (
	"fmt"
	"log"
	"os"

	"github.com/chatwrap/chatwrap/internal/app"
	"github.com/chatwrap/chatwrap/internal/settings"
	"github.com/chatwrap/chatwrap/internal/ui"
)

const version = "v1.0.0"

func main() {
	log.Printf("ChatWrap %s starting...", version)

	dir, err := settings.DefaultDir()
	if err != nil {
		log.Fatalf("Error resolving settings directory: %v", err)
	}
	store, err := settings.Open(dir)
	if err != nil {
		log.Fatalf("Error opening settings: %v", err)
	}

	application := app.New(store, version)

	// First run: no server configured yet. Cancelling the prompt quits.
	if store.Get().ServerURL == "" {
		if !promptInitialServerURL(store) {
			log.Println("First-run configuration cancelled; exiting.")
			return
		}
		application.MarkFirstRun()
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	application.Run()
}

// promptInitialServerURL asks for the server address until a valid one is
// stored or the user cancels.
func promptInitialServerURL(store *settings.Store) bool {
	for {
		raw, ok := ui.PromptServerURL("")
		if !ok {
			return false
		}
		if err := store.SetServerURL(raw); err != nil {
			log.Printf("Rejected server URL '%s': %v", raw, err)
			ui.ErrorBox("The server address must be an absolute http or https URL.")
			continue
		}
		return true
	}
}
