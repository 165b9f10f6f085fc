package types

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Phase indexes the three lifecycle slots of a CallAPI descriptor.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of the store.
type State map[string]interface{}

// PayloadFunc computes the payload of a lifecycle action. res is nil in the init phase.
type PayloadFunc func(ctx context.Context, action *Action, state State, res *http.Response) (interface{}, error)

// Action is a Flux Standard Action. A non-nil CallAPI marks it as an API-call action.
type Action struct {
	Type    string                 `json:"type"`
	Payload interface{}            `json:"payload,omitempty"`
	Error   bool                   `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
	CallAPI *CallAPI               `json:"call_api,omitempty"`
}

// IsAPICall reports whether the action must be handled by the API-call executor.
func (a *Action) IsAPICall() bool {
	return a != nil && a.CallAPI != nil
}

// CallAPI describes the network call carried by an action.
type CallAPI struct {
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method,omitempty"`
	Headers  http.Header       `json:"headers,omitempty"`
	Body     interface{}       `json:"body,omitempty"`
	Types    [3]TypeDescriptor `json:"types"`
}

// TypeDescriptor is one lifecycle slot: the action type dispatched for that
// phase and an optional payload function.
type TypeDescriptor struct {
	Type    string                 `json:"type"`
	Payload PayloadFunc            `json:"-"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// UnmarshalJSON accepts either a bare type string or an object.
func (d *TypeDescriptor) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*d = TypeDescriptor{Type: name}
		return nil
	}
	var obj struct {
		Type string                 `json:"type"`
		Meta map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("type descriptor must be a string or an object: %w", err)
	}
	*d = TypeDescriptor{Type: obj.Type, Meta: obj.Meta}
	return nil
}

// Descriptor returns the descriptor for the given phase.
func (c *CallAPI) Descriptor(p Phase) *TypeDescriptor {
	return &c.Types[p]
}

// Copy returns a shallow copy of the state, safe to hand to callers.
func (s State) Copy() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
