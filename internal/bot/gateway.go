package bot

import (
	"context"
	"errors"
	"time"
)

// ErrAwaitTimeout reports that no matching reply arrived in time.
var ErrAwaitTimeout = errors.New("timed out waiting for a reply")

// Gateway is the chat surface the orchestrator talks back through. One
// Gateway is bound to the user and channel of the message being handled,
// which keeps the orchestrator testable without a live chat session.
type Gateway interface {
	// Reply sends a message to the originating channel.
	Reply(text string) error
	// AwaitReply blocks until the same user sends a message matching filter,
	// the timeout elapses (ErrAwaitTimeout), or ctx is done. It must not
	// block handling of other users' messages.
	AwaitReply(ctx context.Context, filter func(string) bool, timeout time.Duration) (string, error)
}
