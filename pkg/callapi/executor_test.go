package callapi_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NeuralTrust/callgate/pkg/callapi"
	"github.com/NeuralTrust/callgate/pkg/infra/httpx"
	"github.com/NeuralTrust/callgate/pkg/infra/httpx/mocks"
	"github.com/NeuralTrust/callgate/pkg/interceptor"
	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordTypes keeps every action that reaches the reducer.
func recordTypes(out *[]*types.Action) store.Middleware {
	return func(api store.MiddlewareAPI) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(ctx context.Context, action *types.Action) (interface{}, error) {
				*out = append(*out, action)
				return next(ctx, action)
			}
		}
	}
}

func usersAction(endpoint string) *types.Action {
	return &types.Action{
		Type: "FETCH_USERS",
		CallAPI: &types.CallAPI{
			Endpoint: endpoint,
			Method:   http.MethodGet,
			Types: [3]types.TypeDescriptor{
				{Type: "USERS_REQUEST"},
				{Type: "USERS_SUCCESS"},
				{Type: "USERS_FAILURE"},
			},
		},
	}
}

func newStore(client httpx.Client, breaker httpx.CircuitBreaker, cfg interceptor.Config, seen *[]*types.Action) *store.Store {
	logger := logrus.New()
	return store.New(
		store.RequestsReducer,
		types.State{"session_id": "s-1"},
		interceptor.New(cfg, logger),
		callapi.NewMiddleware(client, breaker, logger),
		recordTypes(seen),
	)
}

func typesOf(actions []*types.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}

func TestExecutor_SuccessFlow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get(callapi.RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"id":1}]}`))
	}))
	defer ts.Close()

	var inits, successes, failures int
	var successBody map[string]interface{}
	cfg := interceptor.Config{
		Headers:    interceptor.StaticHeaders(http.Header{"Accept": []string{"application/json"}}),
		GetBaseURL: func(context.Context, types.State) string { return ts.URL + "/api" },
		OnRequestInit: func(_ context.Context, state types.State) {
			inits++
			assert.Equal(t, "s-1", state["session_id"])
		},
		OnRequestSuccess: func(_ context.Context, _ types.State, body map[string]interface{}) {
			successes++
			successBody = body
		},
		OnRequestError: func(context.Context, types.State, map[string]interface{}) { failures++ },
	}

	var seen []*types.Action
	s := newStore(httpx.NewFastHTTPClient(), nil, cfg, &seen)

	res, err := s.Dispatch(context.Background(), usersAction("/users"))
	require.NoError(t, err)

	final, ok := res.(*types.Action)
	require.True(t, ok)
	assert.Equal(t, "USERS_SUCCESS", final.Type)
	assert.False(t, final.Error)
	assert.Equal(t, map[string]interface{}{"users": []interface{}{map[string]interface{}{"id": float64(1)}}}, final.Payload)
	assert.NotEmpty(t, final.Meta[callapi.RequestIDMetaKey])

	assert.Equal(t, []string{"USERS_REQUEST", "USERS_SUCCESS"}, typesOf(seen))
	assert.Equal(t, seen[0].Meta[callapi.RequestIDMetaKey], seen[1].Meta[callapi.RequestIDMetaKey])
	assert.Equal(t, []int{1, 1, 0}, []int{inits, successes, failures})
	assert.Contains(t, successBody, "users")

	requests, ok := s.GetState()[store.RequestsKey].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, requests, "USERS_SUCCESS")
}

func TestExecutor_ErrorFlow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"bad input"}`))
	}))
	defer ts.Close()

	var errorBodies []map[string]interface{}
	cfg := interceptor.Config{
		OnRequestError: func(_ context.Context, _ types.State, body map[string]interface{}) {
			errorBodies = append(errorBodies, body)
		},
	}

	var seen []*types.Action
	s := newStore(httpx.NewFastHTTPClient(), nil, cfg, &seen)

	res, err := s.Dispatch(context.Background(), usersAction(ts.URL+"/users"))
	require.NoError(t, err)

	final := res.(*types.Action)
	assert.Equal(t, "USERS_FAILURE", final.Type)
	assert.True(t, final.Error)
	assert.Equal(t, map[string]interface{}{"message": "bad input"}, final.Payload)
	require.Len(t, errorBodies, 1)
	assert.Equal(t, map[string]interface{}{
		interceptor.StatusCodeKey: http.StatusUnprocessableEntity,
		"message":                 "bad input",
	}, errorBodies[0])
	assert.Equal(t, []string{"USERS_REQUEST", "USERS_FAILURE"}, typesOf(seen))
}

func TestExecutor_DefaultErrorPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))
	defer ts.Close()

	var seen []*types.Action
	s := newStore(httpx.NewFastHTTPClient(), nil, interceptor.Config{}, &seen)

	res, err := s.Dispatch(context.Background(), usersAction(ts.URL))
	require.NoError(t, err)

	final := res.(*types.Action)
	apiErr, ok := final.Payload.(*callapi.APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not Found", apiErr.StatusText)
	assert.Equal(t, "nope", apiErr.Response)
}

func TestExecutor_CompressedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"ok":true}`))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf.Bytes())
	}))
	defer ts.Close()

	var body map[string]interface{}
	cfg := interceptor.Config{
		OnRequestSuccess: func(_ context.Context, _ types.State, b map[string]interface{}) { body = b },
	}
	var seen []*types.Action
	s := newStore(httpx.NewFastHTTPClient(), nil, cfg, &seen)

	res, err := s.Dispatch(context.Background(), usersAction(ts.URL))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, res.(*types.Action).Payload)
	assert.Equal(t, map[string]interface{}{"ok": true}, body)
}

func TestExecutor_TransportFailure(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	var inits, failures int
	cfg := interceptor.Config{
		OnRequestInit:  func(context.Context, types.State) { inits++ },
		OnRequestError: func(context.Context, types.State, map[string]interface{}) { failures++ },
	}
	var seen []*types.Action
	s := newStore(client, nil, cfg, &seen)

	res, err := s.Dispatch(context.Background(), usersAction("https://api.example.com/users"))
	require.NoError(t, err)

	final := res.(*types.Action)
	assert.Equal(t, "USERS_REQUEST", final.Type)
	assert.True(t, final.Error)
	var reqErr *callapi.RequestError
	require.True(t, errors.As(final.Payload.(error), &reqErr))
	assert.Contains(t, reqErr.Message, "connection refused")

	assert.Equal(t, []string{"USERS_REQUEST", "USERS_REQUEST"}, typesOf(seen))
	assert.Equal(t, 1, inits)
	assert.Equal(t, 0, failures)
	client.AssertExpectations(t)
}

func TestExecutor_BreakerOpens(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.Anything).Return(nil, errors.New("timeout")).Once()

	breaker := httpx.NewCircuitBreaker("users", time.Minute, 1)
	var seen []*types.Action
	s := newStore(client, breaker, interceptor.Config{}, &seen)

	_, err := s.Dispatch(context.Background(), usersAction("https://api.example.com/users"))
	require.NoError(t, err)

	res, err := s.Dispatch(context.Background(), usersAction("https://api.example.com/users"))
	require.NoError(t, err)
	final := res.(*types.Action)
	assert.True(t, final.Error)
	assert.ErrorIs(t, final.Payload.(error), httpx.ErrBreakerOpen)
	client.AssertNumberOfCalls(t, "Do", 1)
}

func TestExecutor_ServerErrorStillReachesErrorPhase(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"retry":true}`))),
	}, nil)

	breaker := httpx.NewCircuitBreaker("users", time.Minute, 5)
	var seen []*types.Action
	s := newStore(client, breaker, interceptor.Config{}, &seen)

	res, err := s.Dispatch(context.Background(), usersAction("https://api.example.com/users"))
	require.NoError(t, err)
	final := res.(*types.Action)
	assert.Equal(t, "USERS_FAILURE", final.Type)
	assert.Equal(t, http.StatusServiceUnavailable, final.Payload.(*callapi.APIError).Status)
}

func TestExecutor_PayloadFunctionFailure(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(`not json`))),
	}, nil)

	cfg := interceptor.Config{
		OnRequestSuccess: func(context.Context, types.State, map[string]interface{}) {},
	}
	var seen []*types.Action
	s := newStore(client, nil, cfg, &seen)

	res, err := s.Dispatch(context.Background(), usersAction("https://api.example.com/users"))
	require.NoError(t, err)
	final := res.(*types.Action)
	assert.Equal(t, "USERS_SUCCESS", final.Type)
	assert.True(t, final.Error)
	_, ok := final.Payload.(*callapi.InternalError)
	assert.True(t, ok)
}

func TestExecutor_RequestBodyAndHeaders(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.GetBody == nil {
			return false
		}
		rc, _ := req.GetBody()
		body, _ := io.ReadAll(rc)
		return req.Method == http.MethodPost &&
			string(body) == `{"name":"ada"}` &&
			req.Header.Get("Content-Type") == "application/json" &&
			req.Header.Get(callapi.RequestIDHeader) == "fixed-id"
	})).Return(&http.Response{
		StatusCode: http.StatusCreated,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil)

	action := usersAction("https://api.example.com/users")
	action.CallAPI.Method = "post"
	action.CallAPI.Body = map[string]string{"name": "ada"}
	action.CallAPI.Headers = http.Header{callapi.RequestIDHeader: []string{"fixed-id"}}

	var seen []*types.Action
	s := newStore(client, nil, interceptor.Config{}, &seen)

	res, err := s.Dispatch(context.Background(), action)
	require.NoError(t, err)
	final := res.(*types.Action)
	assert.Equal(t, "USERS_SUCCESS", final.Type)
	assert.Nil(t, final.Payload)
	assert.Equal(t, "fixed-id", final.Meta[callapi.RequestIDMetaKey])
	client.AssertExpectations(t)
}

func TestExecutor_Validation(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	var seen []*types.Action
	s := newStore(client, nil, interceptor.Config{}, &seen)

	action := usersAction("/relative")
	action.CallAPI.Method = "BREW"
	action.CallAPI.Types[2].Type = ""

	_, err := s.Dispatch(context.Background(), action)

	var vErr *callapi.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Problems, 3)
	assert.Empty(t, seen)
	client.AssertNotCalled(t, "Do", mock.Anything)
}

func TestExecutor_PassesPlainActions(t *testing.T) {
	client := new(mocks.MockHTTPClient)
	var seen []*types.Action
	s := newStore(client, nil, interceptor.Config{}, &seen)

	_, err := s.Dispatch(context.Background(), &types.Action{Type: "PLAIN"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PLAIN"}, typesOf(seen))
}
