package intent

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when an envelope names no known intent.
var ErrUnknownKind = errors.New("unknown intent kind")

// Envelope is the serialized form of an intent: its kind and its payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes an intent as an envelope.
func Marshal(in Intent) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("marshal intent: nil intent")
	}

	var payload any
	switch v := in.(type) {
	case SearchRequested:
		payload = v
	case SearchSucceeded:
		if v.Results == nil {
			v.Results = []Place{}
		}
		payload = v
	case SearchFailed:
		payload = v
	case ResultsCleared:
		payload = struct{}{}
	default:
		return nil, fmt.Errorf("marshal intent %q: %w", in.Kind(), ErrUnknownKind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", in.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: in.Kind(), Payload: body})
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Intent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	switch env.Kind {
	case KindSearchRequested:
		var v SearchRequested
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return v, nil
	case KindSearchSucceeded:
		var v SearchSucceeded
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		if v.Results == nil {
			v.Results = []Place{}
		}
		return v, nil
	case KindSearchFailed:
		var v SearchFailed
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return v, nil
	case KindResultsCleared:
		return ResultsCleared{}, nil
	default:
		return nil, fmt.Errorf("unmarshal %q: %w", env.Kind, ErrUnknownKind)
	}
}
