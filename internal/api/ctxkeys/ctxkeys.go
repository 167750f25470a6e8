// Package ctxkeys holds the context keys shared by the api packages.
// It is a leaf package so api, handlers and middleware can all import it.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
// context.Value compares both type and value, so plain string keys from
// other packages cannot collide with these.
type Key string

const (
	// ConversationID selects the conversation a request operates on.
	// Injected by middleware.Conversation, read by the chat handlers.
	ConversationID Key = "conversation_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
