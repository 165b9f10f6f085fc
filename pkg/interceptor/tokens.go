package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/NeuralTrust/callgate/pkg/infra/cache"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTokenKeyPattern = cache.SessionTokenKeyPattern
	DefaultSessionStateKey = "session_id"
)

type TokenOptions struct {
	// KeyPattern takes the session id, e.g. "session:%s:token".
	KeyPattern string
	// StateKey names the state entry holding the session id.
	StateKey string
}

type sessionContextKey struct{}

// ContextWithSession scopes a session id to a single dispatch. It wins over
// the session id kept in state.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionContextKey{}).(string)
	return sessionID, ok && sessionID != ""
}

// RedisTokenHeaders sets "Authorization: Bearer <token>" from the token cached
// for the session on ctx, or else the one found in state. On a miss it
// resolves to nil so the call keeps its original headers.
func RedisTokenHeaders(client cache.Client, logger *logrus.Logger, opts TokenOptions) HeadersFunc {
	if opts.KeyPattern == "" {
		opts.KeyPattern = DefaultTokenKeyPattern
	}
	if opts.StateKey == "" {
		opts.StateKey = DefaultSessionStateKey
	}
	return func(ctx context.Context, orig http.Header, state types.State) http.Header {
		sessionID, ok := SessionFromContext(ctx)
		if !ok {
			sessionID, _ = state[opts.StateKey].(string)
		}
		if sessionID == "" {
			return nil
		}
		key := fmt.Sprintf(opts.KeyPattern, sessionID)
		token, err := client.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, redis.Nil) && logger != nil {
				logger.WithError(err).WithField("key", key).Warn("failed to read session token")
			}
			return nil
		}
		if token == "" {
			return nil
		}
		out := orig.Clone()
		if out == nil {
			out = make(http.Header)
		}
		out.Set("Authorization", "Bearer "+token)
		return out
	}
}

// ChainHeaders runs resolvers in order, each one seeing the headers produced
// so far. It resolves to nil only when every resolver does.
func ChainHeaders(fns ...HeadersFunc) HeadersFunc {
	return func(ctx context.Context, orig http.Header, state types.State) http.Header {
		current := orig
		changed := false
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if h := fn(ctx, current, state); h != nil {
				current = h
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return current
	}
}
