// Package apiclient is the client core for the animals REST API.
//
// It is made of three small pieces:
//   - Normalize turns any decoded response body into an Envelope.
//   - MapError / ErrorMapper turn a failed call into one human-readable message.
//   - API and Resource issue the calls against a fixed base URL and collection path.
//
// Calls are single-shot: no retries, no circuit breaking and no timeout beyond
// what the caller's context carries.
package apiclient

import (
	"net/http"
	"net/url"
)

// Animal is the wire shape of one record of the /animals collection.
// ID and CreatedAt are assigned by the server and absent before creation.
type Animal struct {
	ID        *int64  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// Envelope is the response shape every call is normalized into.
// A nil Data means the server sent no data (absent or null).
type Envelope[T any] struct {
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// RequestOptions are optional per-call modifiers.
type RequestOptions struct {
	// Header is copied onto the outgoing request.
	Header http.Header
	// Params are merged into the request query string.
	Params url.Values
	// WithCredentials sends (and stores) cookies from the transport's jar.
	WithCredentials bool
}

// merge returns a copy of base with o layered on top. Headers and params
// from o replace the same keys in base.
func (base RequestOptions) merge(o *RequestOptions) RequestOptions {
	out := RequestOptions{
		Header:          base.Header.Clone(),
		WithCredentials: base.WithCredentials,
	}
	if base.Params != nil {
		out.Params = url.Values{}
		for k, v := range base.Params {
			out.Params[k] = append([]string(nil), v...)
		}
	}
	if o == nil {
		return out
	}
	for k, v := range o.Header {
		if out.Header == nil {
			out.Header = http.Header{}
		}
		out.Header[k] = append([]string(nil), v...)
	}
	for k, v := range o.Params {
		if out.Params == nil {
			out.Params = url.Values{}
		}
		out.Params[k] = append([]string(nil), v...)
	}
	out.WithCredentials = out.WithCredentials || o.WithCredentials
	return out
}
