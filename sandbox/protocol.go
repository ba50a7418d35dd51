// Package sandbox runs executable cell text inside fresh isolated execution
// contexts and supervises each run against a hard deadline. The host side
// and the context exchange JSON frames only; no memory is shared across the
// boundary.
package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags a protocol message.
type Kind string

const (
	// KindExecute carries the cell code, host to context. Exactly one per run.
	KindExecute Kind = "execute"
	// KindOutput carries one captured emission, context to host.
	KindOutput Kind = "output"
	// KindError is the terminal message for a faulted run.
	KindError Kind = "error"
	// KindDone is the terminal message for a clean run.
	KindDone Kind = "done"
)

// ErrUnknownKind reports a frame whose tag is outside the closed union.
var ErrUnknownKind = errors.New("unknown message kind")

// Message is the closed tagged union crossing the isolation boundary.
type Message struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code,omitempty"` // Execute
	Data any    `json:"data,omitempty"` // Output
	Text string `json:"text,omitempty"` // Error
}

// Terminal reports whether the message ends a run.
func (m Message) Terminal() bool {
	return m.Kind == KindError || m.Kind == KindDone
}

// Encode frames a message for the boundary.
func Encode(m Message) ([]byte, error) {
	frame, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	return frame, nil
}

// Decode validates a received frame. Unknown tags and unknown fields are
// rejected rather than ignored.
func Decode(frame []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("protocol: %w", err)
	}
	switch m.Kind {
	case KindExecute, KindOutput, KindError, KindDone:
		return m, nil
	default:
		return Message{}, fmt.Errorf("protocol: %w %q", ErrUnknownKind, m.Kind)
	}
}
