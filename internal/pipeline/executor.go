package pipeline

import (
	"context"

	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/transport"
)

// deliver hands the finished message to the transport exactly once.
// Transient transport failures become a recorded skip so the row in the
// log explains the non-delivery; anything else is a real error for the
// caller to surface.
func deliver(ctx context.Context, t transport.Transport, msg *message.OutboundMessage) (*transport.Response, *Decision, error) {
	resp, err := t.Deliver(ctx, msg)
	if err != nil {
		if transport.IsTransient(err) {
			return nil, &Decision{Skip: true, Reason: SkipCustom, Detail: err.Error()}, nil
		}
		return nil, nil, err
	}
	return resp, nil, nil
}
