package request

import (
	"fmt"
	"net/http"

	"github.com/NeuralTrust/callgate/pkg/types"
)

// DispatchRequest is the body of POST /api/v1/dispatch.
type DispatchRequest struct {
	Type    string                 `json:"type"`
	Payload interface{}            `json:"payload,omitempty"`
	Error   bool                   `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
	CallAPI *CallAPIRequest        `json:"call_api,omitempty"`
}

type CallAPIRequest struct {
	Endpoint string                  `json:"endpoint"`
	Method   string                  `json:"method"`
	Headers  map[string]string       `json:"headers,omitempty"`
	Body     interface{}             `json:"body,omitempty"`
	Types    [3]types.TypeDescriptor `json:"types"`
}

func (r *DispatchRequest) Validate() error {
	if r.Type == "" && r.CallAPI == nil {
		return fmt.Errorf("type is required")
	}
	if r.CallAPI != nil && r.CallAPI.Endpoint == "" {
		return fmt.Errorf("call_api.endpoint is required")
	}
	return nil
}

func (r *DispatchRequest) ToAction() *types.Action {
	action := &types.Action{
		Type:    r.Type,
		Payload: r.Payload,
		Error:   r.Error,
		Meta:    r.Meta,
	}
	if r.CallAPI == nil {
		return action
	}
	var headers http.Header
	if len(r.CallAPI.Headers) > 0 {
		headers = make(http.Header, len(r.CallAPI.Headers))
		for k, v := range r.CallAPI.Headers {
			headers.Set(k, v)
		}
	}
	action.CallAPI = &types.CallAPI{
		Endpoint: r.CallAPI.Endpoint,
		Method:   r.CallAPI.Method,
		Headers:  headers,
		Body:     r.CallAPI.Body,
		Types:    r.CallAPI.Types,
	}
	return action
}
