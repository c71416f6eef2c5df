package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport performs one HTTP exchange. On success it returns the raw body
// and status. On failure err is a *Failure.
type Transport interface {
	Do(ctx context.Context, method, rawURL string, body any, opts RequestOptions) (raw []byte, status int, err error)
}

// HTTPTransport is the net/http Transport. Requests are traced with otelhttp
// and cookies are kept in Jar, used only for calls made WithCredentials.
type HTTPTransport struct {
	Client *http.Client
	Jar    http.CookieJar
}

// NewHTTPTransport returns a traced transport with an empty cookie jar and
// no client-side timeout.
func NewHTTPTransport() *HTTPTransport {
	jar, _ := cookiejar.New(nil) // only fails on a bad PublicSuffixList
	return &HTTPTransport{
		Client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Jar:    jar,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, method, rawURL string, body any, opts RequestOptions) ([]byte, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, &Failure{ClientSide: true, Message: err.Error(), URL: rawURL, Err: err}
	}
	if err := checkTarget(u); err != nil {
		return nil, 0, &Failure{ClientSide: true, Message: err.Error(), URL: rawURL, Err: err}
	}
	if len(opts.Params) > 0 {
		q := u.Query()
		for k, vs := range opts.Params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	target := u.String()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &Failure{ClientSide: true, Message: err.Error(), URL: target, Err: err}
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, 0, &Failure{ClientSide: true, Message: err.Error(), URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opts.WithCredentials && t.Jar != nil {
		for _, c := range t.Jar.Cookies(req.URL) {
			req.AddCookie(c)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &Failure{
			StatusCode: 0,
			StatusText: "Unknown Error",
			Message:    fmt.Sprintf("Http failure response for %s: 0 Unknown Error", target),
			URL:        target,
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if opts.WithCredentials && t.Jar != nil {
		if cs := resp.Cookies(); len(cs) > 0 {
			t.Jar.SetCookies(req.URL, cs)
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &Failure{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Message:    fmt.Sprintf("Http failure during reading body of %s: %v", target, err),
			URL:        target,
			Err:        err,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		text := http.StatusText(resp.StatusCode)
		return raw, resp.StatusCode, &Failure{
			StatusCode:    resp.StatusCode,
			StatusText:    text,
			Message:       fmt.Sprintf("Http failure response for %s: %d %s", target, resp.StatusCode, text),
			ServerMessage: serverMessage(raw),
			URL:           target,
			Payload:       raw,
		}
	}
	return raw, resp.StatusCode, nil
}

// checkTarget rejects URLs net/http would refuse without dialing.
func checkTarget(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return fmt.Errorf("unsupported protocol scheme \"\" in %q", u.String())
	default:
		return fmt.Errorf("unsupported protocol scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("no host in request URL %q", u.String())
	}
	return nil
}

// serverMessage pulls "message" (or else "error") out of a JSON error body.
func serverMessage(raw []byte) string {
	var e struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	if s, ok := e.Error.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
