package agent

import (
	"context"
	"sync"

	"github.com/joss/taskagent/internal/domain"
)

// MessageCallback is called after a message is appended
type MessageCallback func(ctx context.Context, msg domain.Message)

// Conversation is the append-only message log of one run.
// Only the owning run appends; readers get copies.
type Conversation struct {
	messages []domain.Message
	mu       sync.RWMutex
	callback MessageCallback
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{}
}

// OnAppend sets the callback for external persistence
func (c *Conversation) OnAppend(cb MessageCallback) {
	c.callback = cb
}

func (c *Conversation) append(ctx context.Context, msg domain.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	if c.callback != nil {
		c.callback(ctx, msg)
	}
}

// Messages returns a copy of all messages
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]domain.Message, len(c.messages))
	copy(msgs, c.messages)
	return msgs
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
