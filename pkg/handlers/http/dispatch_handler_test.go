package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/callgate/pkg/callapi"
	"github.com/NeuralTrust/callgate/pkg/infra/httpx"
	"github.com/NeuralTrust/callgate/pkg/interceptor"
	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDispatcher struct{ err error }

func (d failingDispatcher) Dispatch(context.Context, *types.Action) (interface{}, error) {
	return nil, d.err
}

func newDispatchApp(d Dispatcher) *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/dispatch", NewDispatchHandler(logrus.New(), d, "").Handle)
	return app
}

func postJSON(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/dispatch", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp, out
}

func TestDispatchHandler_PlainAction(t *testing.T) {
	s := store.New(store.RequestsReducer, nil)
	app := newDispatchApp(s)

	resp, out := postJSON(t, app, `{"type":"PING","payload":{"n":1}}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "PING", out["type"])
	assert.Equal(t, "PING", s.GetState()[store.LastActionKey])
}

func TestDispatchHandler_APICall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer upstream.Close()

	logger := logrus.New()
	cfg := interceptor.Config{
		GetBaseURL: func(context.Context, types.State) string { return upstream.URL + "/v1" },
	}
	s := store.New(
		store.RequestsReducer,
		nil,
		interceptor.New(cfg, logger),
		callapi.NewMiddleware(httpx.NewFastHTTPClient(), nil, logger),
	)
	app := newDispatchApp(s)

	resp, out := postJSON(t, app, `{
		"call_api": {
			"endpoint": "/users",
			"method": "GET",
			"headers": {"x-api-key": "k"},
			"types": ["USER_REQUEST", {"type": "USER_SUCCESS", "meta": {"page": 1}}, "USER_FAILURE"]
		}
	}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "USER_SUCCESS", out["type"])
	assert.Equal(t, map[string]interface{}{"id": float64(7)}, out["payload"])
	meta, ok := out["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), meta["page"])
	assert.NotEmpty(t, meta[callapi.RequestIDMetaKey])
}

func TestDispatchHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{"type":`, status: fiber.StatusBadRequest},
		{name: "missing type", body: `{"payload":1}`, status: fiber.StatusBadRequest},
		{
			name:   "config error",
			body:   `{"type":"X"}`,
			err:    &interceptor.ConfigError{Option: "return value of getURL", Expected: "String"},
			status: fiber.StatusUnprocessableEntity,
		},
		{
			name:   "validation error",
			body:   `{"type":"X"}`,
			err:    &callapi.ValidationError{Problems: []string{"endpoint is required"}},
			status: fiber.StatusUnprocessableEntity,
		},
		{name: "other error", body: `{"type":"X"}`, err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newDispatchApp(failingDispatcher{err: tt.err})
			resp, out := postJSON(t, app, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}
