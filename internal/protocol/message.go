// Package protocol implements the wire codec: parsing, encoding, and
// classifying the JSON text frames exchanged with clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Transport type codes. Closed set; must not be reused for data messages.
const (
	TypeAccepted     = 100  // server -> sender: accepted for delivery
	TypeAck          = 200  // receiver -> server: acknowledges receipt
	TypeDelivered    = 300  // server -> sender: confirms delivery to receiver
	TypeSubscribed   = 1000 // server -> client: channel subscription ready
	TypePing         = 1001 // client -> server: ping
	TypePong         = 1002 // server -> client: pong
)

// Kind distinguishes data messages from transport messages.
type Kind int

const (
	KindData Kind = iota
	KindTransport
)

var transportTypes = map[int64]bool{
	TypeAccepted:   true,
	TypeAck:        true,
	TypeDelivered:  true,
	TypeSubscribed: true,
	TypePing:       true,
	TypePong:       true,
}

// FormatError wraps a malformed-frame error. The center logs it and drops
// the frame without closing the connection (spec §4.1, §7).
type FormatError struct {
	Frame string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("protocol: malformed frame: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Message is the shared envelope for data and transport frames. Type is
// kept as raw JSON so classification never coerces an integer transport
// code into a string, or vice versa — that would break the
// encode(parse(x)) == x invariant.
type Message struct {
	ID   string          `json:"id,omitempty"`
	Type json.RawMessage `json:"type,omitempty"`
	Time int64           `json:"time,omitempty"`
	From string          `json:"from,omitempty"`
	Dest string          `json:"dest,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Sign string          `json:"sign,omitempty"`
}

// Parse decodes a JSON text frame. A malformed frame yields a *FormatError.
func Parse(frame string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(frame), &m); err != nil {
		return nil, &FormatError{Frame: frame, Err: err}
	}
	if len(m.Type) == 0 {
		return nil, &FormatError{Frame: frame, Err: errors.New("missing type field")}
	}
	return &m, nil
}

// Encode serializes a message back to a JSON text frame. Total: never
// fails on a structurally valid Message.
func Encode(m *Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("protocol: encode: %w", err)
	}
	return string(b), nil
}

// Kind classifies the message: transport if Type unmarshals as an integer
// belonging to the closed transport set, data otherwise.
func (m *Message) Kind() Kind {
	var code int64
	if err := json.Unmarshal(m.Type, &code); err != nil {
		return KindData
	}
	if transportTypes[code] {
		return KindTransport
	}
	return KindData
}

// TransportType returns the transport type code. Only meaningful when
// Kind() == KindTransport.
func (m *Message) TransportType() int64 {
	var code int64
	_ = json.Unmarshal(m.Type, &code)
	return code
}

// DataType returns the string data type. Only meaningful when
// Kind() == KindData.
func (m *Message) DataType() string {
	var s string
	_ = json.Unmarshal(m.Type, &s)
	return s
}

// DataString returns Data decoded as a plain string, for the common case
// where a data message's payload is itself a string rather than a nested
// record.
func (m *Message) DataString() string {
	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		return s
	}
	return string(m.Data)
}
