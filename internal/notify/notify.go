// Package notify provides desktop notifications via D-Bus.
package notify

import (
	"path/filepath"
)

// Urgency represents notification priority levels as defined by org.freedesktop.Notifications.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// ASCIISaved describes an exported ASCII file. The source image doubles
// as the notification icon.
func ASCIISaved(asciiPath, imagePath string) Notification {
	icon := imagePath
	if abs, err := filepath.Abs(imagePath); err == nil {
		icon = abs
	}
	return Notification{
		Title:   "ASCII art saved",
		Body:    filepath.Base(asciiPath),
		Icon:    icon,
		Timeout: 3000,
		Urgency: UrgencyLow,
	}
}

// Disabled returns a notifier that drops every notification.
func Disabled() Notifier {
	return &stubNotifier{}
}
