package karma

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	domainkarma "github.com/nexarouter/core/domain/karma"
)

// redisTier is the optional distributed cache tier mentioned in
// spec.md §4.6's "external service" boundary: when a deployment runs
// more than one router instance, a shared tier keeps them from each
// drifting to a different cached karma score for the same agent
// between upstream polls. It is consulted after the in-process cache
// misses and before falling back to Source.Fetch; a miss or any Redis
// error is treated the same as "not cached" rather than surfaced to
// the caller, since the distributed tier is an optimization, not a
// dependency the client can't function without.
type redisTier struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func newRedisTier(addr string, ttl time.Duration) *redisTier {
	if addr == "" {
		return nil
	}
	return &redisTier{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		keyPrefix: "karma:",
		ttl:       ttl,
	}
}

func (r *redisTier) get(ctx context.Context, agentID string) (domainkarma.Entry, bool) {
	data, err := r.client.Get(ctx, r.keyPrefix+agentID).Bytes()
	if err != nil {
		return domainkarma.Entry{}, false
	}
	var entry domainkarma.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domainkarma.Entry{}, false
	}
	return entry, true
}

func (r *redisTier) set(ctx context.Context, agentID string, entry domainkarma.Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.keyPrefix+agentID, data, r.ttl)
}

func (r *redisTier) invalidate(ctx context.Context, agentID string) {
	r.client.Del(ctx, r.keyPrefix+agentID)
}
