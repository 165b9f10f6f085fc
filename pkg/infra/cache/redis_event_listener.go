package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/NeuralTrust/callgate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

const reconnectDelay = time.Second

type redisEventListener struct {
	logger   *logrus.Logger
	cache    Client
	registry map[string]reflect.Type

	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

func NewRedisEventListener(
	logger *logrus.Logger,
	cache Client,
	registry map[string]reflect.Type,
) EventListener {
	return &redisEventListener{
		logger:   logger,
		cache:    cache,
		registry: registry,
		handlers: make(map[string][]EventHandler),
	}
}

func (r *redisEventListener) Register(eventType string, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Listen blocks until ctx is done, reconnecting whenever the subscription drops.
func (r *redisEventListener) Listen(ctx context.Context, channels ...channel.Channel) {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, string(ch))
	}

	for {
		r.listenOnce(ctx, names)
		if ctx.Err() != nil {
			r.logger.Info("redis pubsub listener shutting down")
			return
		}
		// rotations published while disconnected are lost, so local copies can't be trusted
		r.cache.ClearAllTTLMaps()
		r.logger.Warn("redis pubsub disconnected, local cache cleared, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (r *redisEventListener) listenOnce(ctx context.Context, names []string) {
	pubSub := r.cache.RedisClient().Subscribe(ctx, names...)
	defer func() { _ = pubSub.Close() }()

	r.logger.WithField("channels", names).Debug("redis pubsub connected")

	msgs := pubSub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Payload)
		}
	}
}

func (r *redisEventListener) handleMessage(ctx context.Context, payload string) {
	ev, err := r.decode(payload)
	if err != nil {
		r.logger.WithError(err).Error("error decoding redis message")
		return
	}

	r.mu.RLock()
	handlers := append([]EventHandler(nil), r.handlers[ev.Type()]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			r.logger.WithError(err).WithField("event", ev.Type()).Error("event subscriber failed")
		}
	}
}

func (r *redisEventListener) decode(payload string) (event.Event, error) {
	var envelope RedisMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, err
	}
	concreteType, ok := r.registry[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", envelope.Type)
	}
	ptr := reflect.New(concreteType)
	if err := json.Unmarshal(envelope.Event, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", envelope.Type, err)
	}
	ev, ok := ptr.Elem().Interface().(event.Event)
	if !ok {
		return nil, fmt.Errorf("%s does not implement event.Event", envelope.Type)
	}
	return ev, nil
}
