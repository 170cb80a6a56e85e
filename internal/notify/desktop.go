package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier sends desktop notifications when a session finishes,
// so a caller running paratest in the background doesn't have to poll
// get_status. Urgency and icon reflect the session's terminal status
// rather than a generic message.
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send sends a desktop notification
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return d.sendMacOS(n)
	case "linux":
		return d.sendLinux(n)
	default:
		return nil // Unsupported
	}
}

func (d *DesktopNotifier) sendMacOS(n Notification) error {
	body := n.Message
	if n.SessionID != "" {
		body += fmt.Sprintf(" (session %s)", shortSessionID(n.SessionID))
	}
	script := fmt.Sprintf(
		`display notification %q with title %q sound name %q`,
		body, n.Title, soundForType(n.Type))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func (d *DesktopNotifier) sendLinux(n Notification) error {
	args := []string{
		"--urgency", urgencyForType(n.Type),
		"--icon", IconForType(n.Type),
	}
	if n.SessionID != "" {
		args = append(args, "--hint", "string:x-session-id:"+n.SessionID)
	}
	args = append(args, n.Title, n.Message)
	cmd := exec.Command("notify-send", args...)
	return cmd.Run()
}

// IconForType returns a freedesktop.org icon name for the notification
// type, used as notify-send's --icon.
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}

// urgencyForType maps a notification type to notify-send's urgency
// levels: a failed session should not be easy to dismiss unnoticed.
func urgencyForType(t NotificationType) string {
	switch t {
	case NotifyError:
		return "critical"
	case NotifyWarning:
		return "normal"
	default:
		return "low"
	}
}

// soundForType maps a notification type to a macOS system sound name.
func soundForType(t NotificationType) string {
	switch t {
	case NotifyError:
		return "Basso"
	case NotifySuccess:
		return "Glass"
	default:
		return "Pop"
	}
}

// shortSessionID truncates a session UUID to its first segment for a
// compact notification body.
func shortSessionID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
