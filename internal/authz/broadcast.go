package authz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// invalidationChannel carries scope invalidations between processes.
const invalidationChannel = "authz.invalidate"

// Broadcaster fans cache invalidations out over redis pub/sub. Each
// process drops its own entry synchronously before publishing; the
// broadcast exists so sibling processes do not have to wait out their TTL
// after a mutation elsewhere. A process running without redis simply
// degrades to TTL-bounded staleness.
type Broadcaster struct {
	client *redis.Client
	cache  *Cache
	logger *slog.Logger
}

// NewBroadcaster wires the broadcaster to a local cache.
func NewBroadcaster(client *redis.Client, cache *Cache, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, cache: cache, logger: logger}
}

// Publish announces that scope was mutated.
func (b *Broadcaster) Publish(ctx context.Context, scope Scope) error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Publish(ctx, invalidationChannel, scope.String()).Err()
}

// Listen subscribes to invalidation announcements and drops the matching
// local entries until the context is cancelled. Messages for the scope
// this process just invalidated itself are harmless repeats.
func (b *Broadcaster) Listen(ctx context.Context) error {
	if b == nil || b.client == nil {
		return nil
	}
	pubsub := b.client.Subscribe(ctx, invalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				scope, ok := parseScope(msg.Payload)
				if !ok {
					b.logger.Warn("invalidation payload malformed", slog.String("payload", msg.Payload))
					continue
				}
				b.cache.Invalidate(scope)
			}
		}
	}()
	return nil
}

func parseScope(payload string) (Scope, bool) {
	kind, id, ok := strings.Cut(payload, KeySeparator)
	if !ok || id == "" {
		return Scope{}, false
	}
	switch ScopeKind(kind) {
	case ScopeRole, ScopeUser:
		return Scope{Kind: ScopeKind(kind), ID: id}, true
	}
	return Scope{}, false
}
