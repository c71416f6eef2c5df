package apiclient

import (
	"bytes"
	"encoding/json"
)

// IsEnvelope reports whether raw is a JSON object that carries a "data" key.
// A payload whose own fields include "data" is indistinguishable from an
// envelope and is treated as one.
func IsEnvelope(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	_, ok := obj["data"]
	return ok
}

// Normalize converts a decoded response body into an Envelope.
//
// A JSON object holding a "data" key is already an envelope and is decoded
// as such. Anything else is wrapped as the envelope's data. An empty body or
// JSON null yields an envelope with nil Data. The only error is a body that
// does not decode into T.
func Normalize[T any](raw []byte) (Envelope[T], error) {
	var env Envelope[T]
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return env, nil
	}

	if IsEnvelope(trimmed) {
		var wire struct {
			Data    json.RawMessage `json:"data"`
			Error   json.RawMessage `json:"error"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return Envelope[T]{}, err
		}
		env.Error, env.Message = rawString(wire.Error), rawString(wire.Message)
		if len(wire.Data) == 0 || bytes.Equal(wire.Data, []byte("null")) {
			return env, nil
		}
		var v T
		if err := json.Unmarshal(wire.Data, &v); err != nil {
			return Envelope[T]{}, err
		}
		env.Data = &v
		return env, nil
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Envelope[T]{}, err
	}
	env.Data = &v
	return env, nil
}

// rawString returns raw as a string when it is a JSON string, else "".
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
