package interceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/NeuralTrust/callgate/pkg/infra/prometheus"
	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/sirupsen/logrus"
)

const StatusCodeKey = "status_code"

var absoluteURL = regexp.MustCompile(`(?i)^((http|https|ftp)://)`)

type interceptor struct {
	cfg    Config
	logger *logrus.Logger
}

// New returns a store middleware that rewrites API-call actions according to
// cfg before handing them to the next stage. Other actions pass untouched.
func New(cfg Config, logger *logrus.Logger) store.Middleware {
	if logger == nil {
		logger = logrus.New()
	}
	i := &interceptor{cfg: cfg, logger: logger}
	return i.middleware
}

func (i *interceptor) middleware(api store.MiddlewareAPI) func(next store.Dispatch) store.Dispatch {
	return func(next store.Dispatch) store.Dispatch {
		return func(ctx context.Context, action *types.Action) (interface{}, error) {
			if !action.IsAPICall() {
				return next(ctx, action)
			}
			if err := i.intercept(ctx, api.GetState(), action.CallAPI); err != nil {
				i.logger.WithError(err).WithField("action", action.Type).Error("failed to intercept api call")
				return nil, err
			}
			return next(ctx, action)
		}
	}
}

func (i *interceptor) intercept(ctx context.Context, state types.State, call *types.CallAPI) error {
	if i.cfg.Headers != nil {
		if h := i.cfg.Headers(ctx, call.Headers, state); h != nil {
			call.Headers = h
			prometheus.InterceptorRewrites.WithLabelValues("headers").Inc()
		}
	}

	endpoint, err := i.resolveURL(ctx, call.Endpoint, state)
	if err != nil {
		return err
	}
	if endpoint != call.Endpoint {
		i.logger.WithFields(logrus.Fields{
			"from": call.Endpoint,
			"to":   endpoint,
		}).Debug("api call endpoint rewritten")
		call.Endpoint = endpoint
		prometheus.InterceptorRewrites.WithLabelValues("endpoint").Inc()
	}

	if i.cfg.OnRequestInit != nil {
		call.Descriptor(types.PhaseInit).Payload = i.initPayload
	}
	if i.cfg.OnRequestSuccess != nil {
		call.Descriptor(types.PhaseSuccess).Payload = i.successPayload
	}
	if i.cfg.OnRequestError != nil {
		call.Descriptor(types.PhaseError).Payload = i.errorPayload
	}
	return nil
}

// resolveURL leaves absolute endpoints alone. Relative ones go through GetURL,
// or are joined to GetBaseURL when only that is set.
func (i *interceptor) resolveURL(ctx context.Context, endpoint string, state types.State) (string, error) {
	if absoluteURL.MatchString(endpoint) {
		return endpoint, nil
	}
	switch {
	case i.cfg.GetURL != nil:
		custom := i.cfg.GetURL(ctx, endpoint, state)
		if custom == "" {
			return "", &ConfigError{Option: "return value of " + OptionGetURL, Expected: "String"}
		}
		return custom, nil
	case i.cfg.GetBaseURL != nil:
		base := i.cfg.GetBaseURL(ctx, state)
		if base == "" {
			return "", &ConfigError{Option: "return value of " + OptionGetBaseURL, Expected: "String"}
		}
		return joinURL(base, endpoint), nil
	default:
		return endpoint, nil
	}
}

func joinURL(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (i *interceptor) initPayload(
	ctx context.Context,
	_ *types.Action,
	state types.State,
	res *http.Response,
) (interface{}, error) {
	i.cfg.OnRequestInit(ctx, state)
	if res == nil {
		return nil, nil
	}
	return res, nil
}

func (i *interceptor) successPayload(
	ctx context.Context,
	_ *types.Action,
	state types.State,
	res *http.Response,
) (interface{}, error) {
	decoded, err := readJSON(res, false)
	if err != nil {
		return nil, err
	}
	// arrays and scalars add no fields, the hook gets an empty object
	// rather than index-keyed entries
	i.cfg.OnRequestSuccess(ctx, state, copyObject(nil, decoded))
	return decoded, nil
}

func (i *interceptor) errorPayload(
	ctx context.Context,
	_ *types.Action,
	state types.State,
	res *http.Response,
) (interface{}, error) {
	decoded, err := readJSON(res, true)
	if err != nil {
		return nil, err
	}
	status := 0
	if res != nil {
		status = res.StatusCode
	}
	// a non-object body contributes no fields, only the status is set
	body := copyObject(map[string]interface{}{StatusCodeKey: status}, decoded)
	i.cfg.OnRequestError(ctx, state, body)
	return decoded, nil
}

// readJSON decodes the response body. With emptyAsObject an empty body
// decodes to an empty object instead of failing.
func readJSON(res *http.Response, emptyAsObject bool) (interface{}, error) {
	if res == nil || res.Body == nil {
		if emptyAsObject {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("response has no body")
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if emptyAsObject {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to decode response body: empty body")
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return decoded, nil
}

// copyObject overlays the fields of src, when it is a JSON object, on dst.
func copyObject(dst map[string]interface{}, src interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{})
	}
	if obj, ok := src.(map[string]interface{}); ok {
		for k, v := range obj {
			dst[k] = v
		}
	}
	return dst
}
