// Package chat is the boundary to the messaging platform: the messenger
// contract, the mention formatting contract, and reply chunking. The
// platform gateway itself is external; it speaks to us over the transport
// in this package.
package chat

import (
	"context"
	"time"
)

// Event kinds the gateway can deliver.
const (
	KindMessage = "message"
	KindEdit    = "edit"
	KindDelete  = "delete"
)

// IncomingMessage is one event from the platform gateway.
type IncomingMessage struct {
	// ID is the platform message ID. Assigned locally when the gateway
	// omits one.
	ID string
	// ConversationID scopes the message to one conversation.
	ConversationID string
	// ChannelID is the platform channel, when the conversation has one.
	ChannelID string
	AuthorID   string
	AuthorName string
	// Text is the message body. Raw wire mentions of authors the
	// transport has seen arrive rewritten to @Name(ID); unknown IDs keep
	// their raw token.
	Text   string
	SentAt time.Time
	// ReplyToID is set when the message replies to an earlier one.
	ReplyToID string
	// ReplyToText carries the quoted text so replies to messages we no
	// longer retain still resolve.
	ReplyToText string
	// Kind is one of the Kind constants; empty means KindMessage.
	Kind string
}

// Messenger sends replies to and receives events from the platform.
type Messenger interface {
	// Send delivers one reply to a conversation. Long replies are split
	// into platform-sized chunks before the wire.
	Send(ctx context.Context, conversationID, text string) error

	// Subscribe returns the stream of inbound events. The channel closes
	// when the messenger shuts down.
	Subscribe(ctx context.Context) (<-chan IncomingMessage, error)
}
