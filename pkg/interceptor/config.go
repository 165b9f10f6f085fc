package interceptor

import (
	"context"
	"net/http"

	"github.com/NeuralTrust/callgate/pkg/types"
)

const (
	OptionHeaders          = "headers"
	OptionOpHeaders        = "opHeaders"
	OptionGetURL           = "getURL"
	OptionGetBaseURL       = "getBaseURL"
	OptionOnRequestInit    = "onRequestInit"
	OptionOnRequestSuccess = "onRequestSuccess"
	OptionOnRequestError   = "onRequestError"
)

type (
	// HeadersFunc resolves the headers of an API call. A nil result keeps orig.
	HeadersFunc func(ctx context.Context, orig http.Header, state types.State) http.Header
	URLFunc     func(ctx context.Context, endpoint string, state types.State) string
	BaseURLFunc func(ctx context.Context, state types.State) string
	InitFunc    func(ctx context.Context, state types.State)
	SuccessFunc func(ctx context.Context, state types.State, body map[string]interface{})
	ErrorFunc   func(ctx context.Context, state types.State, body map[string]interface{})
)

// Config holds the optional hooks of the interceptor. Zero value is a no-op.
type Config struct {
	Headers          HeadersFunc
	GetURL           URLFunc
	GetBaseURL       BaseURLFunc
	OnRequestInit    InitFunc
	OnRequestSuccess SuccessFunc
	OnRequestError   ErrorFunc
}

// StaticHeaders always resolves to a copy of h.
func StaticHeaders(h http.Header) HeadersFunc {
	return func(context.Context, http.Header, types.State) http.Header {
		if h == nil {
			return nil
		}
		return h.Clone()
	}
}

// NewConfig builds a Config from loosely typed options, the same shape that
// plugin settings arrive in. Values for function options that are not
// functions yield a *ConfigError. Unknown keys are ignored.
func NewConfig(options map[string]interface{}) (Config, error) {
	var cfg Config

	for _, name := range []string{OptionHeaders, OptionOpHeaders} {
		v, ok := options[name]
		if !ok || v == nil {
			continue
		}
		cfg.Headers = toHeadersFunc(v)
		break
	}

	if v, ok := options[OptionGetURL]; ok && v != nil {
		switch fn := v.(type) {
		case URLFunc:
			cfg.GetURL = fn
		case func(context.Context, string, types.State) string:
			cfg.GetURL = fn
		case func(string, types.State) string:
			cfg.GetURL = func(_ context.Context, endpoint string, state types.State) string {
				return fn(endpoint, state)
			}
		default:
			return Config{}, expectFunction(OptionGetURL)
		}
	}

	if v, ok := options[OptionGetBaseURL]; ok && v != nil {
		switch fn := v.(type) {
		case BaseURLFunc:
			cfg.GetBaseURL = fn
		case func(context.Context, types.State) string:
			cfg.GetBaseURL = fn
		case func(types.State) string:
			cfg.GetBaseURL = func(_ context.Context, state types.State) string {
				return fn(state)
			}
		default:
			return Config{}, expectFunction(OptionGetBaseURL)
		}
	}

	if v, ok := options[OptionOnRequestInit]; ok && v != nil {
		switch fn := v.(type) {
		case InitFunc:
			cfg.OnRequestInit = fn
		case func(context.Context, types.State):
			cfg.OnRequestInit = fn
		case func(types.State):
			cfg.OnRequestInit = func(_ context.Context, state types.State) { fn(state) }
		default:
			return Config{}, expectFunction(OptionOnRequestInit)
		}
	}

	if v, ok := options[OptionOnRequestSuccess]; ok && v != nil {
		fn, ok := toBodyFunc(v)
		if !ok {
			return Config{}, expectFunction(OptionOnRequestSuccess)
		}
		cfg.OnRequestSuccess = SuccessFunc(fn)
	}

	if v, ok := options[OptionOnRequestError]; ok && v != nil {
		fn, ok := toBodyFunc(v)
		if !ok {
			return Config{}, expectFunction(OptionOnRequestError)
		}
		cfg.OnRequestError = ErrorFunc(fn)
	}

	return cfg, nil
}

type bodyFunc func(ctx context.Context, state types.State, body map[string]interface{})

func toBodyFunc(v interface{}) (bodyFunc, bool) {
	switch fn := v.(type) {
	case SuccessFunc:
		return bodyFunc(fn), true
	case ErrorFunc:
		return bodyFunc(fn), true
	case func(context.Context, types.State, map[string]interface{}):
		return fn, true
	case func(types.State, map[string]interface{}):
		return func(_ context.Context, state types.State, body map[string]interface{}) {
			fn(state, body)
		}, true
	default:
		return nil, false
	}
}

// toHeadersFunc accepts a header object or a resolver. Anything else resolves
// to nil, which keeps the original headers of the call.
func toHeadersFunc(v interface{}) HeadersFunc {
	switch h := v.(type) {
	case HeadersFunc:
		return h
	case func(context.Context, http.Header, types.State) http.Header:
		return h
	case func(http.Header, types.State) http.Header:
		return func(_ context.Context, orig http.Header, state types.State) http.Header {
			return h(orig, state)
		}
	case http.Header:
		return StaticHeaders(h)
	case map[string][]string:
		return StaticHeaders(http.Header(h))
	case map[string]string:
		out := make(http.Header, len(h))
		for k, val := range h {
			out.Set(k, val)
		}
		return StaticHeaders(out)
	case map[string]interface{}:
		out := make(http.Header, len(h))
		for k, raw := range h {
			switch val := raw.(type) {
			case string:
				out.Set(k, val)
			case []string:
				for _, s := range val {
					out.Add(k, s)
				}
			case []interface{}:
				for _, item := range val {
					if s, ok := item.(string); ok {
						out.Add(k, s)
					}
				}
			}
		}
		return StaticHeaders(out)
	default:
		return func(context.Context, http.Header, types.State) http.Header { return nil }
	}
}
