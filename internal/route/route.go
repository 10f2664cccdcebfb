// Package route implements the routing chain: a sequence of pluggable
// steps that decide destination channels for a message (spec §4.2).
package route

import (
	"context"

	"msgrelay/internal/protocol"
)

// Conn is the narrow connection surface a Route needs. It mirrors the
// adapter's Conn contract (spec §4.6) so routes never depend on the
// transport directly.
type Conn interface {
	Channel() string
}

// Queue is the narrow queue surface PostProcess needs, to avoid an import
// cycle between route and queue while still letting post-process routes
// enqueue side-channel notifications.
type Queue interface {
	Enqueue(ctx context.Context, channels []string, msg *protocol.Message, from string) error
}

// Kind distinguishes the three possible outcomes of Route.Process.
type Kind int

const (
	// None means the route does not claim the message; the chain continues.
	None Kind = iota
	// Stop halts the chain immediately; the message is not enqueued.
	Stop
	// Channel means the route claims the message and nominates a channel;
	// the chain continues to allow later routes to fan out.
	Channel
)

// Destination is the result of a single route's Process call.
type Destination struct {
	Kind    Kind
	Channel string
}

// NoneDest is the zero-value "did not claim this message" destination.
var NoneDest = Destination{Kind: None}

// StopDest halts the chain.
var StopDest = Destination{Kind: Stop}

// ChannelDest nominates a channel.
func ChannelDest(channel string) Destination {
	return Destination{Kind: Channel, Channel: channel}
}

// Route is a single pluggable step of the routing chain.
type Route interface {
	// Name identifies the route for logging and for removal by name in
	// Chain.Remove.
	Name() string

	// Process decides whether this route claims the message. It must not
	// mutate msg in ways that would affect routes later in the chain.
	Process(ctx context.Context, msg *protocol.Message, conn Conn) (Destination, error)

	// PostProcess runs asynchronously after enqueue. Never on the
	// critical path; the center isolates and logs its failures.
	PostProcess(ctx context.Context, msg *protocol.Message, dest string, q Queue)
}

// Error wraps a failure from inside a route's Process call, carrying the
// offending route's name so the chain can log and skip it (spec §7
// RouteError).
type Error struct {
	Route string
	Err   error
}

func (e *Error) Error() string { return e.Route + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
