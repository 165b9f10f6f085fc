package callapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NeuralTrust/callgate/pkg/infra/httpx"
	"github.com/NeuralTrust/callgate/pkg/infra/prometheus"
	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader  = "X-Request-Id"
	RequestIDMetaKey = "request_id"
)

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

type executor struct {
	client  httpx.Client
	breaker httpx.CircuitBreaker
	logger  *logrus.Logger
}

// NewMiddleware returns the store middleware that performs API calls. It must
// run after any middleware that rewrites CallAPI descriptors. breaker may be nil.
func NewMiddleware(client httpx.Client, breaker httpx.CircuitBreaker, logger *logrus.Logger) store.Middleware {
	if logger == nil {
		logger = logrus.New()
	}
	e := &executor{client: client, breaker: breaker, logger: logger}
	return e.middleware
}

func (e *executor) middleware(api store.MiddlewareAPI) func(next store.Dispatch) store.Dispatch {
	return func(next store.Dispatch) store.Dispatch {
		return func(ctx context.Context, action *types.Action) (interface{}, error) {
			if !action.IsAPICall() {
				return next(ctx, action)
			}
			return e.execute(ctx, api, next, action)
		}
	}
}

func (e *executor) execute(
	ctx context.Context,
	api store.MiddlewareAPI,
	next store.Dispatch,
	action *types.Action,
) (interface{}, error) {
	call := action.CallAPI
	method, err := validate(call)
	if err != nil {
		return nil, err
	}

	requestID := call.Headers.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	log := e.logger.WithFields(logrus.Fields{
		"action":     action.Type,
		"method":     method,
		"endpoint":   call.Endpoint,
		"request_id": requestID,
	})

	initAction := e.lifecycleAction(ctx, api, action, types.PhaseInit, requestID, nil, nil)
	if _, err := e.dispatch(ctx, next, initAction); err != nil {
		return nil, err
	}

	req, err := buildRequest(ctx, method, call, requestID)
	if err != nil {
		return e.requestFailed(ctx, next, action, requestID, err)
	}

	start := time.Now()
	resp, err := e.do(req)
	prometheus.APICallLatency.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		prometheus.APICallsTotal.WithLabelValues(method, "error").Inc()
		log.WithError(err).Warn("api call failed before a response was received")
		return e.requestFailed(ctx, next, action, requestID, err)
	}
	prometheus.APICallsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return e.requestFailed(ctx, next, action, requestID, fmt.Errorf("failed to read response body: %w", err))
	}
	body, decoded, err := httpx.DecodeBody(resp.Header, raw)
	if err != nil {
		return e.requestFailed(ctx, next, action, requestID, fmt.Errorf("failed to decode response body: %w", err))
	}
	if decoded {
		resp.Header = resp.Header.Clone()
		resp.Header.Del("Content-Encoding")
	}

	phase := types.PhaseError
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		phase = types.PhaseSuccess
	}
	log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"phase":  phase.String(),
	}).Debug("api call completed")

	final := e.lifecycleAction(ctx, api, action, phase, requestID, resp, body)
	if _, err := e.dispatch(ctx, next, final); err != nil {
		return nil, err
	}
	return final, nil
}

func (e *executor) do(req *http.Request) (*http.Response, error) {
	if e.breaker == nil {
		return e.client.Do(req)
	}
	var resp *http.Response
	err := e.breaker.Execute(func() error {
		r, err := e.client.Do(req)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("upstream responded with status %d", r.StatusCode)
		}
		return nil
	})
	// a 5xx still carries a response for the error phase
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// requestFailed re-dispatches the init type as an error action.
func (e *executor) requestFailed(
	ctx context.Context,
	next store.Dispatch,
	action *types.Action,
	requestID string,
	cause error,
) (interface{}, error) {
	desc := action.CallAPI.Descriptor(types.PhaseInit)
	failed := &types.Action{
		Type:    desc.Type,
		Payload: &RequestError{Message: cause.Error(), Err: cause},
		Error:   true,
		Meta:    withRequestID(desc.Meta, requestID),
	}
	if _, err := e.dispatch(ctx, next, failed); err != nil {
		return nil, err
	}
	return failed, nil
}

func (e *executor) dispatch(ctx context.Context, next store.Dispatch, action *types.Action) (interface{}, error) {
	prometheus.ActionsDispatched.WithLabelValues(action.Type, strconv.FormatBool(action.Error)).Inc()
	return next(ctx, action)
}

func (e *executor) lifecycleAction(
	ctx context.Context,
	api store.MiddlewareAPI,
	action *types.Action,
	phase types.Phase,
	requestID string,
	resp *http.Response,
	body []byte,
) *types.Action {
	desc := action.CallAPI.Descriptor(phase)
	out := &types.Action{
		Type:  desc.Type,
		Error: phase == types.PhaseError,
		Meta:  withRequestID(desc.Meta, requestID),
	}

	if desc.Payload != nil {
		payload, err := desc.Payload(ctx, action, api.GetState(), freshResponse(resp, body))
		if err != nil {
			e.logger.WithError(err).WithField("type", desc.Type).Warn("payload function failed")
			out.Payload = &InternalError{Message: err.Error(), Err: err}
			out.Error = true
			return out
		}
		out.Payload = payload
		return out
	}

	switch phase {
	case types.PhaseSuccess:
		out.Payload = parseBody(body)
	case types.PhaseError:
		out.Payload = &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Response:   parseBody(body),
		}
	}
	return out
}

func validate(call *types.CallAPI) (string, error) {
	var problems []string

	if call.Endpoint == "" {
		problems = append(problems, "endpoint is required")
	} else if u, err := url.Parse(call.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("endpoint %q must be an absolute url", call.Endpoint))
	}

	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}
	if _, ok := allowedMethods[method]; !ok {
		problems = append(problems, fmt.Sprintf("invalid method %q", call.Method))
	}

	for i := range call.Types {
		if call.Types[i].Type == "" {
			problems = append(problems, fmt.Sprintf("%s type is required", types.Phase(i)))
		}
	}

	if len(problems) > 0 {
		return "", &ValidationError{Problems: problems}
	}
	return method, nil
}

func buildRequest(ctx context.Context, method string, call *types.CallAPI, requestID string) (*http.Request, error) {
	var body io.Reader
	setJSON := false
	switch b := call.Body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		setJSON = true
	}

	req, err := http.NewRequestWithContext(ctx, method, call.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range call.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if setJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID)
	return req, nil
}

// freshResponse hands each payload function its own readable body.
func freshResponse(resp *http.Response, body []byte) *http.Response {
	if resp == nil {
		return nil
	}
	clone := *resp
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	return &clone
}

func parseBody(body []byte) interface{} {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}

func withRequestID(meta map[string]interface{}, requestID string) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[RequestIDMetaKey] = requestID
	return out
}
