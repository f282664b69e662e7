// Package chat connects the bot to a chat platform (IRC, Discord, Slack).
// Adapters translate platform events into InboundMessage values; the Router
// turns prefixed messages into command requests and the Daemon ties the
// connection, the command dispatcher and the background jobs together.
package chat

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Sender is the send half of an Adapter.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string // "irc", "discord", "slack"
	ChannelID string // channel the message was posted in; empty for private messages
	UserID    string // platform-specific user identifier
	UserName  string // nickname / display name
	// Account is the sender's network identity when the platform already
	// authenticates it (Discord, Slack). Empty means it must be looked up
	// through an Identifier.
	Account   string
	Text      string
	Private   bool
	Timestamp time.Time
}

// ReplyTarget returns where an answer to the message goes: the channel, or
// the sender for private messages.
func (m InboundMessage) ReplyTarget() string {
	if m.Private || m.ChannelID == "" {
		return m.UserID
	}
	return m.ChannelID
}

// OutboundMessage represents a message to be sent to the chat platform.
// Text may carry IRC control codes; adapters for other platforms convert them.
type OutboundMessage struct {
	ChannelID string
	Text      string
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// Identifier is implemented by adapters that can verify a sender's network
// identity, e.g. IRC services accounts via WHOIS. An empty account with a
// nil error means the user is not identified.
type Identifier interface {
	Identify(ctx context.Context, nick string) (string, error)
}

// Joiner is implemented by adapters whose bot can join and leave channels
// on request.
type Joiner interface {
	Join(ctx context.Context, channel, key string) error
	Part(ctx context.Context, channel string) error
}
