package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL bounds how long a resolved set may be served without
// a fresh read. Role mutations invalidate eagerly; the TTL is the
// backstop for invalidations lost across instances.
const DefaultCacheTTL = 5 * time.Minute

// AccessCache is a Redis read-through cache for resolved access sets.
// All methods are safe on a nil receiver, so callers can treat the
// cache as strictly optional.
type AccessCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAccessCache creates a cache layer over an existing Redis client
func NewAccessCache(client *redis.Client, ttl time.Duration) *AccessCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &AccessCache{client: client, ttl: ttl}
}

func accessKey(userID, orgID string) string {
	return fmt.Sprintf("access:%s:%s", userID, orgID)
}

// Get returns the cached resolved set, or ok=false on miss or any
// Redis/decode error. Errors never surface: the caller falls through
// to the source of truth.
func (c *AccessCache) Get(ctx context.Context, userID, orgID string) (ResolvedAccess, bool) {
	if c == nil || c.client == nil {
		return ResolvedAccess{}, false
	}

	data, err := c.client.Get(ctx, accessKey(userID, orgID)).Result()
	if err != nil {
		return ResolvedAccess{}, false
	}

	var access ResolvedAccess
	if err := json.Unmarshal([]byte(data), &access); err != nil {
		// Corrupt entry; drop it
		c.client.Del(ctx, accessKey(userID, orgID))
		return ResolvedAccess{}, false
	}

	return access, true
}

// Set stores a resolved set. Best effort: a write failure only means
// the next read goes to the database.
func (c *AccessCache) Set(ctx context.Context, userID, orgID string, access ResolvedAccess) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(access)
	if err != nil {
		return
	}
	c.client.Set(ctx, accessKey(userID, orgID), data, c.ttl)
}

// Invalidate drops the cached set for one (user, org) pair
func (c *AccessCache) Invalidate(ctx context.Context, userID, orgID string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, accessKey(userID, orgID))
}

// InvalidateOrg drops every cached set for an organization. Used after
// role definition changes, which affect an unknown set of users.
func (c *AccessCache) InvalidateOrg(ctx context.Context, orgID string) {
	if c == nil || c.client == nil {
		return
	}

	pattern := fmt.Sprintf("access:*:%s", orgID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
