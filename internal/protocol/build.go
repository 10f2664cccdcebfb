package protocol

import (
	"encoding/json"
	"time"
)

// Option sets a field on a Message under construction. Options that are
// never applied leave the corresponding field absent from the encoded
// frame, per the Build contract in spec §4.1.
type Option func(*Message)

// WithID sets the message id.
func WithID(id string) Option {
	return func(m *Message) { m.ID = id }
}

// WithDataType marks the message as a data message of the given string type.
func WithDataType(t string) Option {
	return func(m *Message) { m.Type, _ = json.Marshal(t) }
}

// WithTransportType marks the message as a transport message of the given
// closed-set integer code.
func WithTransportType(code int64) Option {
	return func(m *Message) { m.Type, _ = json.Marshal(code) }
}

// WithTime sets the time field to the given epoch milliseconds.
func WithTime(ms int64) Option {
	return func(m *Message) { m.Time = ms }
}

// WithNow sets the time field to the current time in epoch milliseconds.
func WithNow() Option {
	return func(m *Message) { m.Time = time.Now().UnixMilli() }
}

// WithFrom sets the sender channel.
func WithFrom(from string) Option {
	return func(m *Message) { m.From = from }
}

// WithDest sets the destination hint, interpreted by routes.
func WithDest(dest string) Option {
	return func(m *Message) { m.Dest = dest }
}

// WithData sets the data payload to the JSON encoding of v.
func WithData(v any) Option {
	return func(m *Message) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		m.Data = b
	}
}

// WithDataRaw sets the data payload verbatim.
func WithDataRaw(raw json.RawMessage) Option {
	return func(m *Message) { m.Data = raw }
}

// WithSign sets the signature field.
func WithSign(sign string) Option {
	return func(m *Message) { m.Sign = sign }
}

// Build constructs a Message from the given options. Fields with no
// matching option are left at their zero value and omitted from the
// encoded frame via the `omitempty` struct tags.
func Build(opts ...Option) *Message {
	m := &Message{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Accepted builds a "100 accepted" transport message for msgID.
func Accepted(msgID string) *Message {
	return Build(WithTransportType(TypeAccepted), WithData(msgID))
}

// Delivered builds a "300 delivered" transport message for msgID.
func Delivered(msgID string) *Message {
	return Build(WithTransportType(TypeDelivered), WithData(msgID))
}

// Pong builds a "1002 pong" transport message.
func Pong() *Message {
	return Build(WithTransportType(TypePong))
}

// Subscribed builds a "1000 subscribed" transport message.
func Subscribed() *Message {
	return Build(WithTransportType(TypeSubscribed))
}
