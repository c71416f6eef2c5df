package view

import (
	"context"
	"sync"

	"github.com/tbourn/go-animals/internal/apiclient"
)

// AnimalsFetcher is the slice of the animals resource the controller needs.
// *apiclient.Resource[apiclient.Animal] satisfies it.
type AnimalsFetcher interface {
	FetchAll(ctx context.Context, opts *apiclient.RequestOptions) (apiclient.Envelope[[]apiclient.Animal], error)
}

// Home controls the animals list view.
//
// Every load gets a new token; results of older loads are discarded. State
// changes are applied under a mutex, so LoadAnimals may be called from
// several goroutines.
type Home struct {
	fetch AnimalsFetcher
	opts  *apiclient.RequestOptions
	obs   Observer

	mu        sync.Mutex
	state     LoadState
	lastToken uint64
	listeners []func(LoadState)
}

// HomeOption configures a Home.
type HomeOption func(*Home)

// WithObserver sets the diagnostics sink.
func WithObserver(o Observer) HomeOption { return func(h *Home) { h.obs = o } }

// WithRequestOptions sets the options passed to every fetch.
func WithRequestOptions(o *apiclient.RequestOptions) HomeOption {
	return func(h *Home) { h.opts = o }
}

// NewHome returns an idle controller with an empty list.
func NewHome(f AnimalsFetcher, opts ...HomeOption) *Home {
	h := &Home{
		fetch: f,
		obs:   NopObserver{},
		state: LoadState{Items: []apiclient.Animal{}, Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnChange registers fn to receive every published state. fn runs while
// the controller is locked and must not call back into Home.
func (h *Home) OnChange(fn func(LoadState)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// State returns a copy of the current state.
func (h *Home) State() LoadState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyState(h.state)
}

// Activate performs the initial load.
func (h *Home) Activate(ctx context.Context) LoadState {
	observe(func() { h.obs.Activated() })
	return h.LoadAnimals(ctx)
}

// LoadAnimals fetches the full list and blocks until the result has been
// applied. The returned state is the controller state after this load, which
// may belong to a newer load if one started meanwhile.
func (h *Home) LoadAnimals(ctx context.Context) LoadState {
	h.mu.Lock()
	h.lastToken++
	tok := h.lastToken
	h.dispatch(LoadStarted{Token: tok})
	h.mu.Unlock()

	env, err := h.fetch.FetchAll(ctx, h.opts)

	var ev Event
	if err != nil {
		ev = LoadFailed{Token: tok, Message: err.Error()}
	} else {
		ev = LoadSucceeded{Token: tok, Envelope: env}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatch(ev)
	return copyState(h.state)
}

// dispatch reduces ev into the state and publishes the result. Callers hold mu.
func (h *Home) dispatch(ev Event) {
	prev := h.state
	next := Reduce(prev, ev)
	if ev.token() != next.Token {
		observe(func() { h.obs.Discarded(ev) })
		return
	}
	h.state = next
	observe(func() { h.obs.Transition(prev, next, ev) })
	for _, fn := range h.listeners {
		fn(copyState(next))
	}
}

func copyState(s LoadState) LoadState {
	s.Items = append([]apiclient.Animal(nil), s.Items...)
	if s.Items == nil {
		s.Items = []apiclient.Animal{}
	}
	return s
}
