package route

import (
	"context"
	"fmt"
	"sync"

	"msgrelay/pkg/log"

	"msgrelay/internal/protocol"
)

// Walked is one (route, destination channel) pair collected while walking
// the chain, handed back to the center so it can spawn PostProcess calls.
type Walked struct {
	Route   Route
	Channel string
}

// Chain holds an ordered, at-most-once sequence of routes. Order is
// insertion order and is semantically significant: the first Stop ends
// the walk (spec §4.2).
//
// The route slice is copy-on-write behind a RWMutex, the same discipline
// the teacher's Hub uses for its connections map: readers (Walk) take a
// snapshot reference under RLock and never observe a chain mutated
// mid-walk by a concurrent AddRoute/RemoveRoute.
type Chain struct {
	mu     sync.RWMutex
	routes []Route
	logger log.Logger
}

// NewChain creates an empty routing chain.
func NewChain(logger log.Logger) *Chain {
	return &Chain{logger: logger}
}

// Add registers a route at the end of the chain. A route instance may
// appear at most once; adding it again is a no-op.
func (c *Chain) Add(r Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.routes {
		if existing == r {
			return
		}
	}
	next := make([]Route, len(c.routes), len(c.routes)+1)
	copy(next, c.routes)
	c.routes = append(next, r)
}

// Remove unregisters a route by name.
func (c *Chain) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		if r.Name() != name {
			next = append(next, r)
		}
	}
	c.routes = next
}

// snapshot returns the current route slice without holding the lock past
// this call, so Walk's per-route suspension points never block mutation.
func (c *Chain) snapshot() []Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.routes
}

// Walk runs the message through every route in order, collecting
// (route, channel) nominations, stopping immediately on the first Stop.
// A panic-free error from an individual route's Process is logged and
// the route is skipped; the chain continues (spec §7 RouteError).
func (c *Chain) Walk(ctx context.Context, msg *protocol.Message, conn Conn) (walked []Walked, stopped bool) {
	for _, r := range c.snapshot() {
		dest, err := c.process(ctx, r, msg, conn)
		if err != nil {
			if c.logger != nil {
				c.logger.Errorf(ctx, "route %s: process error: %v", r.Name(), &Error{Route: r.Name(), Err: err})
			}
			continue
		}
		switch dest.Kind {
		case Stop:
			return walked, true
		case Channel:
			walked = append(walked, Walked{Route: r, Channel: dest.Channel})
		case None:
			// not claimed, continue
		}
	}
	return walked, false
}

// process runs a single route's Process guarded by a recover, the same
// pattern center.go's postProcess goroutines use: routes are
// user-extensible, third-party code (spec Design Notes), and a panic
// here must be treated like a RouteError (spec §7) — logged once by the
// caller and skipped — rather than propagate up through the chain walk.
func (c *Chain) process(ctx context.Context, r Route, msg *protocol.Message, conn Conn) (dest Destination, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			dest, err = Destination{}, fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Process(ctx, msg, conn)
}
