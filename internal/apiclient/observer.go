package apiclient

import (
	"github.com/rs/zerolog"
)

// Observer receives diagnostics from the client core. Implementations must
// not block; they never affect call results.
type Observer interface {
	// Request is called before each network call.
	Request(method, url string, body any)
	// Failure is called with every failure before it is mapped.
	Failure(f Failure)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Request(string, string, any) {}
func (NopObserver) Failure(Failure)             {}

// LogObserver writes diagnostics to a zerolog logger.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) Request(method, url string, body any) {
	ev := o.Log.Debug().Str("method", method).Str("url", url)
	if body != nil {
		ev = ev.Interface("body", body)
	}
	ev.Msgf("making %s request to %s", method, url)
}

func (o LogObserver) Failure(f Failure) {
	ev := o.Log.Error().
		Str("url", f.URL).
		Int("status", f.StatusCode).
		Str("status_text", f.StatusText).
		Bool("client_side", f.ClientSide).
		Str("message", f.Message)
	if f.ServerMessage != "" {
		ev = ev.Str("server_message", f.ServerMessage)
	}
	if len(f.Payload) > 0 {
		ev = ev.Bytes("payload", truncate(f.Payload, 512))
	}
	if f.Err != nil {
		ev = ev.Err(f.Err)
	}
	ev.Msg("api error")
}

// observe runs fn and swallows any panic so a faulty observer cannot break
// a call.
func observe(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}
