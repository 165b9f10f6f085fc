package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(name string, calls *[]string) store.Middleware {
	return func(api store.MiddlewareAPI) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(ctx context.Context, action *types.Action) (interface{}, error) {
				*calls = append(*calls, name)
				return next(ctx, action)
			}
		}
	}
}

func TestStore_Dispatch_MiddlewareOrder(t *testing.T) {
	var calls []string
	s := store.New(store.RequestsReducer, nil, recorder("first", &calls), nil, recorder("second", &calls))

	res, err := s.Dispatch(context.Background(), &types.Action{Type: "PING"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, calls)
	action, ok := res.(*types.Action)
	require.True(t, ok)
	assert.Equal(t, "PING", action.Type)
	assert.Equal(t, "PING", s.GetState()[store.LastActionKey])
}

func TestStore_Dispatch_NilAction(t *testing.T) {
	s := store.New(store.RequestsReducer, nil)
	_, err := s.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, store.ErrNilAction)
}

func TestStore_Dispatch_ReentersChain(t *testing.T) {
	var calls []string
	expand := func(api store.MiddlewareAPI) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(ctx context.Context, action *types.Action) (interface{}, error) {
				if action.Type == "OUTER" {
					if _, err := api.Dispatch(ctx, &types.Action{Type: "INNER"}); err != nil {
						return nil, err
					}
				}
				return next(ctx, action)
			}
		}
	}
	s := store.New(store.RequestsReducer, nil, recorder("log", &calls), expand)

	_, err := s.Dispatch(context.Background(), &types.Action{Type: "OUTER"})
	require.NoError(t, err)

	assert.Len(t, calls, 2)
	requests, ok := s.GetState()[store.RequestsKey].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, requests, "INNER")
	assert.Contains(t, requests, "OUTER")
}

func TestStore_Subscribe(t *testing.T) {
	s := store.New(store.RequestsReducer, types.State{"session_id": "abc"})

	var seen []string
	unsubscribe := s.Subscribe(func(state types.State, action *types.Action) {
		seen = append(seen, action.Type)
		assert.Equal(t, "abc", state["session_id"])
	})

	_, err := s.Dispatch(context.Background(), &types.Action{Type: "A"})
	require.NoError(t, err)
	unsubscribe()
	_, err = s.Dispatch(context.Background(), &types.Action{Type: "B"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, seen)
}

func TestStore_GetState_ReturnsCopy(t *testing.T) {
	s := store.New(nil, types.State{"k": "v"})
	state := s.GetState()
	state["k"] = "changed"
	assert.Equal(t, "v", s.GetState()["k"])
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := store.New(store.RequestsReducer, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Dispatch(context.Background(), &types.Action{Type: "TICK"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "TICK", s.GetState()[store.LastActionKey])
}

func TestRequestsReducer_IgnoresUntypedActions(t *testing.T) {
	state := store.RequestsReducer(types.State{}, &types.Action{})
	assert.Empty(t, state)
}


func TestSessionReducer(t *testing.T) {
	reducer := store.SessionReducer("session_id", store.RequestsReducer)

	state := reducer(types.State{}, &types.Action{Type: "LOGIN", Meta: map[string]interface{}{"session_id": "s-1"}})
	assert.Equal(t, "s-1", state["session_id"])
	assert.Equal(t, "LOGIN", state[store.LastActionKey])

	// actions without a session keep the remembered one
	state = reducer(state, &types.Action{Type: "PING"})
	assert.Equal(t, "s-1", state["session_id"])

	state = reducer(state, &types.Action{Type: "PING", Meta: map[string]interface{}{"session_id": 7}})
	assert.Equal(t, "s-1", state["session_id"])

	state = reducer(state, &types.Action{Type: "SWITCH", Meta: map[string]interface{}{"session_id": "s-2"}})
	assert.Equal(t, "s-2", state["session_id"])
}
