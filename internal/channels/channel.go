// Package channels implements chat platform adapters.
package channels

import (
	"context"

	"github.com/voxrelay/voxrelay/internal/bus"
)

// Channel defines the interface for chat platforms (Telegram, Slack, etc).
type Channel interface {
	// Name returns the channel name (e.g. "telegram").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
	// Send sends a message to a specific chat.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}

// allowed reports whether sender passes the allow-list. An empty list means
// everyone is allowed.
func allowed(allowFrom []string, sender string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	for _, a := range allowFrom {
		if a == sender {
			return true
		}
	}
	return false
}
