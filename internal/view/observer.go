package view

import (
	"github.com/rs/zerolog"
)

// Observer receives controller diagnostics. It never affects state.
type Observer interface {
	Activated()
	Transition(prev, next LoadState, ev Event)
	// Discarded is called for events from a superseded load.
	Discarded(ev Event)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Activated()                             {}
func (NopObserver) Transition(LoadState, LoadState, Event) {}
func (NopObserver) Discarded(Event)                        {}

// LogObserver logs transitions with zerolog.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) Activated() { o.Log.Debug().Msg("home activated") }

func (o LogObserver) Transition(prev, next LoadState, ev Event) {
	switch e := ev.(type) {
	case LoadStarted:
		o.Log.Debug().Uint64("token", e.Token).Msg("starting to load animals")
	case LoadSucceeded:
		l := o.Log.Debug().Uint64("token", e.Token).Int("count", len(next.Items))
		if e.Envelope.Data == nil {
			l.Msg("no data in response")
			return
		}
		l.Msg("animals loaded")
	case LoadFailed:
		o.Log.Error().
			Uint64("token", e.Token).
			Str("status", next.Status.String()).
			Str("error", e.Message).
			Msg("error loading animals")
	}
}

func (o LogObserver) Discarded(ev Event) {
	o.Log.Debug().Uint64("token", ev.token()).Msg("stale load result discarded")
}

func observe(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
