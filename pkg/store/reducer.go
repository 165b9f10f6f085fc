package store

import (
	"time"

	"github.com/NeuralTrust/callgate/pkg/types"
)

const (
	RequestsKey   = "requests"
	LastActionKey = "last_action"
)

// RequestsReducer keeps the latest payload per action type under
// state["requests"] and the last action type under state["last_action"].
func RequestsReducer(state types.State, action *types.Action) types.State {
	if action.Type == "" {
		return state
	}

	requests := make(map[string]interface{})
	if prev, ok := state[RequestsKey].(map[string]interface{}); ok {
		for k, v := range prev {
			requests[k] = v
		}
	}

	entry := map[string]interface{}{
		"payload": action.Payload,
		"error":   action.Error,
		"at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(action.Meta) > 0 {
		entry["meta"] = action.Meta
	}
	requests[action.Type] = entry

	state[RequestsKey] = requests
	state[LastActionKey] = action.Type
	return state
}

// SessionReducer remembers the session id an action carries in meta[key] so
// later api calls resolve tokens for it, then hands over to next.
func SessionReducer(key string, next Reducer) Reducer {
	return func(state types.State, action *types.Action) types.State {
		if sessionID, ok := action.Meta[key].(string); ok && sessionID != "" {
			if state == nil {
				state = types.State{}
			}
			state[key] = sessionID
		}
		return next(state, action)
	}
}
