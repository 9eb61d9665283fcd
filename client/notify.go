package client

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Notification is an inbound-message alert for the signed-in admin.
type Notification struct {
	Title          string
	Body           string
	ConversationID string
}

// Notifier emits a local notification. Implementations are best-effort:
// they must never block and never fail the caller.
type Notifier interface {
	Notify(n Notification)
}

// BellNotifier rings the terminal bell and logs the notification. Write
// errors are swallowed; an alert is a UX nicety, not state.
type BellNotifier struct {
	Out io.Writer
	Log *zap.Logger
}

// Notify implements Notifier.
func (b *BellNotifier) Notify(n Notification) {
	if b.Out != nil {
		fmt.Fprint(b.Out, "\a")
	}
	if b.Log != nil {
		b.Log.Info("notification",
			zap.String("title", n.Title),
			zap.String("conversation", n.ConversationID))
	}
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Notification) {}
