// Package transport delivers a finished outbound message through a
// configured email provider. One Deliver call, no internal retry beyond
// the HTTP client's own transient-error handling.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/message"
)

// Response reports what the provider said when it accepted a message.
// Line is the provider-specific acceptance line, when one exists.
type Response struct {
	MessageID string
	Line      string
}

// Transport is a single synchronous delivery operation.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, msg *message.OutboundMessage) (*Response, error)
}

// Error is a transport-layer failure. Transient errors (provider
// rejections, rate limits, network trouble) are converted by the
// executor into a skip; anything else propagates as fatal to the send.
type Error struct {
	Transient bool
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Message, e.Err)
	}
	return "transport: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a recognized transient transport
// failure that should become a skip rather than propagate.
func IsTransient(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Transient
}

// Capture is an in-memory transport for tests and local development. It
// records every delivered message and fabricates an acceptance line.
type Capture struct {
	mu        sync.Mutex
	Delivered []*message.OutboundMessage

	// FailWith, when set, is returned by the next Deliver call.
	FailWith error
}

// NewCapture creates an empty capture transport.
func NewCapture() *Capture {
	return &Capture{}
}

// Name returns the provider name.
func (c *Capture) Name() string { return "capture" }

// Deliver records the message.
func (c *Capture) Deliver(_ context.Context, msg *message.OutboundMessage) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		err := c.FailWith
		c.FailWith = nil
		return nil, err
	}
	c.Delivered = append(c.Delivered, msg)
	id := uuid.NewString()
	return &Response{MessageID: id, Line: "250 Ok: queued as " + id}, nil
}

// Count returns how many messages were delivered.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Delivered)
}
