package route

import (
	"context"

	"msgrelay/internal/protocol"
)

// DirectRoute nominates msg.Dest verbatim when it is non-empty. This is
// the common-case routing rule exercised by the round-trip scenarios in
// spec §8.
type DirectRoute struct{}

// NewDirectRoute constructs a DirectRoute.
func NewDirectRoute() *DirectRoute { return &DirectRoute{} }

func (d *DirectRoute) Name() string { return "direct" }

func (d *DirectRoute) Process(_ context.Context, msg *protocol.Message, _ Conn) (Destination, error) {
	if msg.Dest == "" {
		return NoneDest, nil
	}
	return ChannelDest(msg.Dest), nil
}

// PostProcess is a no-op for DirectRoute; it has nothing to notify.
func (d *DirectRoute) PostProcess(_ context.Context, _ *protocol.Message, _ string, _ Queue) {}
