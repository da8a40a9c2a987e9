// Package chat abstracts the conversation transport. The concrete chat
// integration (WhatsApp, Telegram, ...) lives outside this repository; a
// console transport is provided for local runs.
package chat

import "context"

// Transport delivers outbound messages to conversations.
type Transport interface {
	// SendMessage sends text to a conversation and returns the message
	// identifier assigned by the transport. That identifier is the
	// correlation key for reaction events.
	SendMessage(ctx context.Context, conversationID, text string) (string, error)
}
