package cache

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
)

type EventSubscriber[T event.Event] interface {
	OnEvent(ctx context.Context, ev T) error
}

// RegisterEventSubscriber binds a typed subscriber to the event type T.
func RegisterEventSubscriber[T event.Event](l EventListener, subscriber EventSubscriber[T]) {
	var zero T
	l.Register(zero.Type(), func(ctx context.Context, ev event.Event) error {
		typed, ok := ev.(T)
		if !ok {
			return fmt.Errorf("unexpected event %T for %s", ev, zero.Type())
		}
		return subscriber.OnEvent(ctx, typed)
	})
}
