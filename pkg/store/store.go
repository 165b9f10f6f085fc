package store

import (
	"context"
	"errors"
	"sync"

	"github.com/NeuralTrust/callgate/pkg/types"
)

var ErrNilAction = errors.New("action is nil")

// Dispatch sends an action through the pipeline and returns whatever the
// last stage produced.
type Dispatch func(ctx context.Context, action *types.Action) (interface{}, error)

// MiddlewareAPI is what a middleware sees of the store.
type MiddlewareAPI struct {
	GetState func() types.State
	// Dispatch re-enters the full middleware chain.
	Dispatch Dispatch
}

type Middleware func(api MiddlewareAPI) func(next Dispatch) Dispatch

type Reducer func(state types.State, action *types.Action) types.State

type Listener func(state types.State, action *types.Action)

type Store struct {
	mu      sync.RWMutex
	state   types.State
	reducer Reducer

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	dispatch Dispatch
}

// New builds a store. Middlewares run in the given order, the first one sees
// the action first.
func New(reducer Reducer, initial types.State, middlewares ...Middleware) *Store {
	if initial == nil {
		initial = types.State{}
	}
	s := &Store{
		state:     initial,
		reducer:   reducer,
		listeners: make(map[int]Listener),
	}

	api := MiddlewareAPI{
		GetState: s.GetState,
		Dispatch: func(ctx context.Context, action *types.Action) (interface{}, error) {
			return s.dispatch(ctx, action)
		},
	}

	chain := s.reduce
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		chain = middlewares[i](api)(chain)
	}
	s.dispatch = chain
	return s
}

func (s *Store) Dispatch(ctx context.Context, action *types.Action) (interface{}, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return s.dispatch(ctx, action)
}

// GetState returns a shallow copy of the current state.
func (s *Store) GetState() types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Copy()
}

// Subscribe registers a listener called after every reduced action. The
// returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) reduce(_ context.Context, action *types.Action) (interface{}, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	s.mu.Lock()
	if s.reducer != nil {
		next := s.reducer(s.state.Copy(), action)
		if next != nil {
			s.state = next
		}
	}
	snapshot := s.state.Copy()
	s.mu.Unlock()

	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(snapshot, action)
	}
	return action, nil
}
