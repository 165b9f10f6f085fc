package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	infraCache "github.com/NeuralTrust/callgate/pkg/infra/cache"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptySessionID = errors.New("session id is required")
	ErrEmptyToken     = errors.New("token is required")
)

// TokenWriter stores the per-session tokens that the interceptor turns into
// Authorization headers.
type TokenWriter interface {
	SetToken(ctx context.Context, sessionID, token string, ttl time.Duration) error
	RevokeToken(ctx context.Context, sessionID string) error
}

type tokenWriter struct {
	logger     *logrus.Logger
	cache      infraCache.Client
	publisher  infraCache.EventPublisher
	keyPattern string
}

// NewTokenWriter returns a writer using keyPattern (a single %s for the
// session id). An empty pattern uses infraCache.SessionTokenKeyPattern.
func NewTokenWriter(
	logger *logrus.Logger,
	cache infraCache.Client,
	publisher infraCache.EventPublisher,
	keyPattern string,
) TokenWriter {
	if keyPattern == "" {
		keyPattern = infraCache.SessionTokenKeyPattern
	}
	return &tokenWriter{
		logger:     logger,
		cache:      cache,
		publisher:  publisher,
		keyPattern: keyPattern,
	}
}

func (w *tokenWriter) SetToken(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if token == "" {
		return ErrEmptyToken
	}
	key := fmt.Sprintf(w.keyPattern, sessionID)
	if err := w.cache.Set(ctx, key, token, ttl); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	w.publish(ctx, event.TokenRotatedEvent{SessionID: sessionID, Key: key})
	return nil
}

func (w *tokenWriter) RevokeToken(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	key := fmt.Sprintf(w.keyPattern, sessionID)
	if err := w.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	w.publish(ctx, event.TokenRevokedEvent{SessionID: sessionID, Key: key})
	return nil
}

// publish failures only delay other replicas until their local entry expires.
func (w *tokenWriter) publish(ctx context.Context, ev event.Event) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		w.logger.WithError(err).WithField("event", ev.Type()).Error("failed to publish token event")
	}
}
