package inject

import (
	"log/slog"
	"unicode/utf8"

	"github.com/gen2brain/beeep"
)

// maxNotifyRunes bounds the transcript preview shown in a notification.
const maxNotifyRunes = 120

// Notifier shows desktop notifications about dictation results.
type Notifier struct {
	title   string
	enabled bool
	logger  *slog.Logger
	notify  func(title, message string) error
}

// NewNotifier returns a Notifier. A disabled Notifier does nothing.
func NewNotifier(title string, enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		title:   title,
		enabled: enabled,
		logger:  logger.With("component", "notify"),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Transcribed announces delivered text.
func (n *Notifier) Transcribed(text string) {
	n.send(preview(text))
}

// Failed announces a session that produced no text.
func (n *Notifier) Failed(reason string) {
	n.send("No transcript: " + reason)
}

func (n *Notifier) send(msg string) {
	if n == nil || !n.enabled {
		return
	}
	if err := n.notify(n.title, msg); err != nil {
		n.logger.Debug("notification failed", "error", err)
	}
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= maxNotifyRunes {
		return text
	}
	r := []rune(text)
	return string(r[:maxNotifyRunes-1]) + "…"
}
