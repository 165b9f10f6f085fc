package interceptor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NeuralTrust/callgate/pkg/infra/cache"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// Settings is the declarative part of the interceptor configuration, as read
// from config files or the environment.
type Settings struct {
	BaseURL     string            `mapstructure:"base_url"`
	Headers     map[string]string `mapstructure:"headers"`
	HeaderToken TokenSettings     `mapstructure:"header_token"`
	LogCalls    bool              `mapstructure:"log_calls"`
}

type TokenSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	KeyPattern string `mapstructure:"key_pattern"`
	StateKey   string `mapstructure:"state_key"`
}

// SessionKey is the meta and state key carrying the session id.
func (t TokenSettings) SessionKey() string {
	if t.StateKey == "" {
		return DefaultSessionStateKey
	}
	return t.StateKey
}

func DecodeSettings(raw map[string]interface{}) (Settings, error) {
	var s Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, fmt.Errorf("failed to decode interceptor settings: %w", err)
	}
	return s, nil
}

// Config turns settings into hooks. tokens may be nil when no cache is
// configured, in which case header_token is ignored.
func (s Settings) Config(tokens cache.Client, logger *logrus.Logger) Config {
	var cfg Config

	var resolvers []HeadersFunc
	if len(s.Headers) > 0 {
		static := make(http.Header, len(s.Headers))
		for k, v := range s.Headers {
			static.Set(k, v)
		}
		// static headers are merged over the call's own headers
		resolvers = append(resolvers, func(_ context.Context, orig http.Header, _ types.State) http.Header {
			out := orig.Clone()
			if out == nil {
				out = make(http.Header, len(static))
			}
			for k, v := range static {
				out[k] = append([]string(nil), v...)
			}
			return out
		})
	}
	if s.HeaderToken.Enabled && tokens != nil {
		resolvers = append(resolvers, RedisTokenHeaders(tokens, logger, TokenOptions{
			KeyPattern: s.HeaderToken.KeyPattern,
			StateKey:   s.HeaderToken.StateKey,
		}))
	}
	if len(resolvers) > 0 {
		cfg.Headers = ChainHeaders(resolvers...)
	}

	if s.BaseURL != "" {
		base := s.BaseURL
		cfg.GetBaseURL = func(context.Context, types.State) string { return base }
	}

	if s.LogCalls && logger != nil {
		cfg.OnRequestInit = func(_ context.Context, state types.State) {
			logger.WithField("last_action", state["last_action"]).Info("api call started")
		}
		cfg.OnRequestSuccess = func(_ context.Context, _ types.State, body map[string]interface{}) {
			logger.WithField("fields", len(body)).Info("api call succeeded")
		}
		cfg.OnRequestError = func(_ context.Context, _ types.State, body map[string]interface{}) {
			logger.WithField(StatusCodeKey, body[StatusCodeKey]).Warn("api call failed")
		}
	}
	return cfg
}
