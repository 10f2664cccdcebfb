package route

import (
	"context"
	"sync"
	"time"

	"msgrelay/internal/protocol"
)

// Blocklist decides whether a sender channel is currently blocked. It is
// the delegate a BlocklistRoute wraps with caching.
type Blocklist interface {
	IsBlocked(ctx context.Context, senderChannel string) (bool, error)
}

// cacheEntry is a cached blocklist lookup result.
type cacheEntry struct {
	blocked   bool
	expiresAt time.Time
}

// BlocklistRoute halts the chain (Stop) for messages from a currently
// blocked sender. It caches lookups against the delegate Blocklist with a
// TTL, adapted from the teacher's CachedAuthorizer
// (internal/auth/authorizer.go): same cache-map-plus-RWMutex-plus-
// background-cleanup-ticker shape, repointed from "can this user access
// this project/job" to "is this sender currently blocked".
type BlocklistRoute struct {
	delegate Blocklist
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	stopCleanup chan struct{}
}

// NewBlocklistRoute constructs a BlocklistRoute with the given cache TTL.
func NewBlocklistRoute(delegate Blocklist, ttl time.Duration) *BlocklistRoute {
	r := &BlocklistRoute{
		delegate:    delegate,
		ttl:         ttl,
		cache:       make(map[string]cacheEntry),
		stopCleanup: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *BlocklistRoute) Name() string { return "blocklist" }

func (r *BlocklistRoute) Process(ctx context.Context, msg *protocol.Message, conn Conn) (Destination, error) {
	sender := msg.From
	if sender == "" && conn != nil {
		sender = conn.Channel()
	}
	if sender == "" {
		return NoneDest, nil
	}

	blocked, err := r.isBlocked(ctx, sender)
	if err != nil {
		return NoneDest, err
	}
	if blocked {
		return StopDest, nil
	}
	return NoneDest, nil
}

func (r *BlocklistRoute) PostProcess(_ context.Context, _ *protocol.Message, _ string, _ Queue) {}

func (r *BlocklistRoute) isBlocked(ctx context.Context, sender string) (bool, error) {
	r.mu.RLock()
	entry, ok := r.cache[sender]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.blocked, nil
	}

	blocked, err := r.delegate.IsBlocked(ctx, sender)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	r.cache[sender] = cacheEntry{blocked: blocked, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return blocked, nil
}

// Invalidate drops any cached result for a sender, e.g. after an
// administrative block/unblock action.
func (r *BlocklistRoute) Invalidate(sender string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, sender)
}

// Close stops the background cleanup goroutine.
func (r *BlocklistRoute) Close() {
	close(r.stopCleanup)
}

func (r *BlocklistRoute) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCleanup:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *BlocklistRoute) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, e := range r.cache {
		if now.After(e.expiresAt) {
			delete(r.cache, k)
		}
	}
}
