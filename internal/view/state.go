// Package view holds the animals list controller: a tri-state load status
// plus the item list, driven by a pure reducer so every transition can be
// tested without a transport.
package view

import (
	"github.com/tbourn/go-animals/internal/apiclient"
)

// Status is the load status of the list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// LoadState is what the rendering layer reads. ErrorMessage is empty
// unless Status is StatusErrored.
type LoadState struct {
	Items        []apiclient.Animal
	Status       Status
	ErrorMessage string
	// Token identifies the load that produced this state.
	Token uint64
}

// Event is a state transition input. See LoadStarted, LoadSucceeded and
// LoadFailed.
type Event interface{ token() uint64 }

// LoadStarted begins load Token.
type LoadStarted struct{ Token uint64 }

// LoadSucceeded completes load Token with the fetched envelope.
type LoadSucceeded struct {
	Token    uint64
	Envelope apiclient.Envelope[[]apiclient.Animal]
}

// LoadFailed completes load Token with a mapped error message.
type LoadFailed struct {
	Token   uint64
	Message string
}

func (e LoadStarted) token() uint64   { return e.Token }
func (e LoadSucceeded) token() uint64 { return e.Token }
func (e LoadFailed) token() uint64    { return e.Token }

// Reduce applies ev to s and returns the new state.
//
// Completions whose token does not match the load in progress are stale
// and leave s unchanged, so the newest load always wins. A start with a
// token lower than the current one is ignored for the same reason.
func Reduce(s LoadState, ev Event) LoadState {
	switch e := ev.(type) {
	case LoadStarted:
		if e.Token < s.Token {
			return s
		}
		s.Status = StatusLoading
		s.ErrorMessage = ""
		s.Token = e.Token
		return s

	case LoadSucceeded:
		if e.Token != s.Token || s.Status != StatusLoading {
			return s
		}
		if e.Envelope.Data != nil {
			s.Items = append([]apiclient.Animal(nil), (*e.Envelope.Data)...)
		} else {
			s.Items = []apiclient.Animal{}
		}
		s.Status = StatusLoaded
		s.ErrorMessage = ""
		return s

	case LoadFailed:
		if e.Token != s.Token || s.Status != StatusLoading {
			return s
		}
		s.Status = StatusErrored
		s.ErrorMessage = e.Message
		return s
	}
	return s
}
