package notify

import (
	"context"
	"fmt"

	"github.com/quickvoicy/quickvoicy/internal/domain"
)

// Sender delivers a text message to a chat identity on one platform.
// Both bots implement it.
type Sender interface {
	Platform() string
	Send(ctx context.Context, platformID string, text string) error
}

// Dispatcher routes notifications to the sender registered for the user's
// platform. Delivery is fire-and-forget from the caller's point of view:
// failures are returned for logging only, never acted on.
type Dispatcher struct {
	senders map[string]Sender
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{senders: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		d.senders[s.Platform()] = s
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, user *domain.User, text string) error {
	sender, ok := d.senders[user.Platform]
	if !ok {
		return fmt.Errorf("no sender registered for platform %q", user.Platform)
	}
	return sender.Send(ctx, user.PlatformID, text)
}
