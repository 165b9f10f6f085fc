package cache

import (
	"context"

	"github.com/NeuralTrust/callgate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
)

type EventListener interface {
	Listen(ctx context.Context, channels ...channel.Channel)
	Register(eventType string, handler EventHandler)
}

// EventHandler receives the decoded event registered for its type.
type EventHandler func(ctx context.Context, ev event.Event) error
