// Package keymap defines key bindings and action dispatch for the viewer.
package keymap

// Action represents a user-triggerable action.
type Action string

const (
	// Global actions
	ActionQuit Action = "quit"
	ActionHelp Action = "help"

	// Navigation actions
	ActionNext  Action = "next"
	ActionPrev  Action = "prev"
	ActionFirst Action = "first"
	ActionLast  Action = "last"

	// Slideshow actions
	ActionToggleSlideshow Action = "toggle_slideshow"

	// Export actions
	ActionSaveASCII Action = "save_ascii" // a - write <stem>.ascii next to the image
)
