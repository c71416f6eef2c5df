package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultBaseURL is the base URL used when none is configured.
const DefaultBaseURL = "http://localhost:3000/api"

// API issues calls relative to BaseURL and normalizes their results.
type API struct {
	BaseURL   string
	Transport Transport
	Mapper    ErrorMapper
	Observer  Observer
	// Defaults are applied to every call before the per-call options.
	Defaults RequestOptions
}

// Option configures an API.
type Option func(*API)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option { return func(a *API) { a.Transport = t } }

// WithObserver sets the diagnostics sink for requests and failures.
func WithObserver(o Observer) Option {
	return func(a *API) {
		a.Observer = o
		a.Mapper.Observer = o
	}
}

// WithDefaults sets options applied to every call.
func WithDefaults(o RequestOptions) Option { return func(a *API) { a.Defaults = o } }

// New returns an API rooted at baseURL (DefaultBaseURL when blank).
func New(baseURL string, opts ...Option) *API {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	a := &API{
		BaseURL:   baseURL,
		Transport: NewHTTPTransport(),
		Observer:  NopObserver{},
	}
	a.Mapper.Observer = a.Observer
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Get issues GET baseURL+endpoint.
func Get[T any](ctx context.Context, a *API, endpoint string, opts *RequestOptions) (Envelope[T], error) {
	return call[T](ctx, a, http.MethodGet, endpoint, nil, opts)
}

// Post issues POST baseURL+endpoint with body encoded as JSON.
func Post[T any](ctx context.Context, a *API, endpoint string, body any, opts *RequestOptions) (Envelope[T], error) {
	return call[T](ctx, a, http.MethodPost, endpoint, body, opts)
}

// Put issues PUT baseURL+endpoint with body encoded as JSON.
func Put[T any](ctx context.Context, a *API, endpoint string, body any, opts *RequestOptions) (Envelope[T], error) {
	return call[T](ctx, a, http.MethodPut, endpoint, body, opts)
}

// Patch issues PATCH baseURL+endpoint with body encoded as JSON.
func Patch[T any](ctx context.Context, a *API, endpoint string, body any, opts *RequestOptions) (Envelope[T], error) {
	return call[T](ctx, a, http.MethodPatch, endpoint, body, opts)
}

// Delete issues DELETE baseURL+endpoint.
func Delete[T any](ctx context.Context, a *API, endpoint string, opts *RequestOptions) (Envelope[T], error) {
	return call[T](ctx, a, http.MethodDelete, endpoint, nil, opts)
}

// call performs exactly one attempt. Any failure comes back as a
// *RequestError carrying the mapped message.
func call[T any](ctx context.Context, a *API, method, endpoint string, body any, opts *RequestOptions) (Envelope[T], error) {
	url := a.BaseURL + endpoint
	observe(func() {
		if a.Observer != nil {
			a.Observer.Request(method, url, body)
		}
	})

	raw, status, err := a.Transport.Do(ctx, method, url, body, a.Defaults.merge(opts))
	if err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			f = &Failure{Message: err.Error(), URL: url, Err: err}
		}
		return Envelope[T]{}, a.fail(*f)
	}

	env, err := Normalize[T](raw)
	if err != nil {
		return Envelope[T]{}, a.fail(Failure{
			StatusCode: status,
			StatusText: http.StatusText(status),
			Message:    fmt.Sprintf("Http failure during parsing for %s", url),
			URL:        url,
			Payload:    raw,
			Err:        err,
		})
	}
	return env, nil
}

// clientFailure rejects a call before any network I/O.
func (a *API) clientFailure(url, msg string) error {
	return a.fail(Failure{ClientSide: true, Message: msg, URL: url})
}

func (a *API) fail(f Failure) error {
	return &RequestError{Message: a.Mapper.Map(f), Failure: &f}
}
