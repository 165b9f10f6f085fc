package subscriber

import (
	"context"

	infraCache "github.com/NeuralTrust/callgate/pkg/infra/cache"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

// Every replica keeps tokens in a local map; it has to drop a key once the
// key changed in redis.

type TokenRotatedEventSubscriber struct {
	logger *logrus.Logger
	cache  infraCache.Client
}

func NewTokenRotatedEventSubscriber(
	logger *logrus.Logger,
	c infraCache.Client,
) infraCache.EventSubscriber[event.TokenRotatedEvent] {
	return &TokenRotatedEventSubscriber{logger: logger, cache: c}
}

func (s TokenRotatedEventSubscriber) OnEvent(_ context.Context, evt event.TokenRotatedEvent) error {
	s.logger.WithField("session_id", evt.SessionID).Debug("invalidating rotated session token")
	forgetLocal(s.cache, evt.Key)
	return nil
}

type TokenRevokedEventSubscriber struct {
	logger *logrus.Logger
	cache  infraCache.Client
}

func NewTokenRevokedEventSubscriber(
	logger *logrus.Logger,
	c infraCache.Client,
) infraCache.EventSubscriber[event.TokenRevokedEvent] {
	return &TokenRevokedEventSubscriber{logger: logger, cache: c}
}

func (s TokenRevokedEventSubscriber) OnEvent(_ context.Context, evt event.TokenRevokedEvent) error {
	s.logger.WithField("session_id", evt.SessionID).Debug("invalidating revoked session token")
	forgetLocal(s.cache, evt.Key)
	return nil
}

func forgetLocal(c infraCache.Client, key string) {
	if m := c.GetTTLMap(infraCache.TokenTTLName); m != nil {
		m.Delete(key)
	}
}
