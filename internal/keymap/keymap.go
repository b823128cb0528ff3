package keymap

// Binding describes a single key binding.
type Binding struct {
	Action      Action
	Keys        []string
	Description string
	Context     string // "global", "navigation", "slideshow"
}

// All contains all key bindings.
var All = []Binding{
	// Global
	{ActionQuit, []string{"q", "ctrl+c"}, "Quit", "global"},
	{ActionHelp, []string{"?"}, "Show keys", "global"},
	{ActionSaveASCII, []string{"a"}, "Save ASCII art", "global"},

	// Navigation
	{ActionNext, []string{"n", "right", "l", "j", "pgdown"}, "Next image", "navigation"},
	{ActionPrev, []string{"p", "left", "h", "k", "pgup"}, "Previous image", "navigation"},
	{ActionFirst, []string{"g", "home"}, "First image", "navigation"},
	{ActionLast, []string{"G", "end"}, "Last image", "navigation"},

	// Slideshow
	{ActionToggleSlideshow, []string{"s", " "}, "Start/stop slideshow", "slideshow"},
}

// ByContext returns key bindings filtered by context.
func ByContext(context string) []Binding {
	var result []Binding
	for _, kb := range All {
		if kb.Context == context {
			result = append(result, kb)
		}
	}
	return result
}
