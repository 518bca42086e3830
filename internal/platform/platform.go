// Package platform defines the boundary to the chat platform: channel
// provisioning, message primitives, and the inbound event stream that the
// question engine consumes. Everything behind this interface is owned by a
// concrete adapter (internal/telegram in this repo, fakes in tests).
package platform

import (
	"context"

	"github.com/user/relatobot/internal/types"
)

// ChannelOptions controls the scope of a provisioned channel. The channel
// is visible to nobody by default, plus the viewer (view + send) and the
// system identity (view + send + manage).
type ChannelOptions struct {
	Category string
	Viewer   types.UserID
}

// Conn is the full set of platform capabilities the daemon needs. Each
// method returns an explicit error; callers classify with errors.Is against
// the sentinels in errors.go.
type Conn interface {
	CreateChannel(ctx context.Context, name string, opts ChannelOptions) (types.ChannelID, error)
	DeleteChannel(ctx context.Context, ch types.ChannelID) error
	ChannelExists(ctx context.Context, ch types.ChannelID) bool

	Send(ctx context.Context, ch types.ChannelID, text string) (types.MessageID, error)
	SendChoices(ctx context.Context, ch types.ChannelID, prompt string, options []string) (types.MessageID, error)
	SendFile(ctx context.Context, ch types.ChannelID, path string) error
	DeleteMessage(ctx context.Context, ch types.ChannelID, id types.MessageID) error
	Purge(ctx context.Context, ch types.ChannelID, limit int) error

	// Notify sends a private notice to a user outside any session channel.
	Notify(ctx context.Context, user types.UserID, text string) error

	// Subscribe returns a stream of inbound events scoped to one channel.
	// The returned cancel func releases the subscription and closes the
	// channel.
	Subscribe(ch types.ChannelID) (<-chan Event, func())
}
