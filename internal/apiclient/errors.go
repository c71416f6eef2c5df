package apiclient

import (
	"fmt"
	"strconv"
)

// UnreachableMessage is reported when no response reached the client.
const UnreachableMessage = "Cannot connect to the server. Please check if the server is running."

// Failure describes a call that did not succeed.
//
// StatusCode 0 means no response was received (dial, DNS, refused,
// cancelled). ClientSide marks failures that happened before the request
// left the client, such as an unencodable body or a malformed URL.
// ServerMessage holds the "message" (or "error") of an error body, if any;
// it is kept for diagnostics and never shown in place of Message.
type Failure struct {
	StatusCode    int
	StatusText    string
	ClientSide    bool
	Message       string
	ServerMessage string
	URL           string
	Payload       []byte
	Err           error
}

func (f *Failure) Error() string {
	if f.ClientSide {
		return "client-side failure: " + f.Message
	}
	return fmt.Sprintf("request failed (status %d): %s", f.StatusCode, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// MapError converts a failure into the single message shown to users.
func MapError(f Failure) string {
	switch {
	case f.ClientSide:
		return "Error: " + f.Message
	case f.StatusCode == 0:
		return UnreachableMessage
	default:
		return "Error Code: " + strconv.Itoa(f.StatusCode) + "\nMessage: " + f.Message
	}
}

// ErrorMapper maps failures like MapError after reporting them to Observer.
type ErrorMapper struct {
	Observer Observer
}

// Map reports f and returns its user-facing message. The observer cannot
// change the result.
func (m ErrorMapper) Map(f Failure) string {
	observe(func() {
		if m.Observer != nil {
			m.Observer.Failure(f)
		}
	})
	return MapError(f)
}

// RequestError is returned by API and Resource calls. Its Error() is exactly
// the mapped message; the structured Failure stays reachable via errors.As.
type RequestError struct {
	Message string
	Failure *Failure
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error {
	if e.Failure == nil {
		return nil
	}
	return e.Failure
}
