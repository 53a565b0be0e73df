package rbac

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/grantcue/grantcue/pkg/observability"
)

// AccessReader is the read path the resolver depends on. *Store
// satisfies it; tests substitute fakes.
type AccessReader interface {
	GetUserAccess(ctx context.Context, userID, orgID string) (ResolvedAccess, error)
}

// Resolver loads the effective roles and permissions for a (user, org)
// pair. It never returns an error to callers: a failed read degrades
// to an empty set, so a transient outage can only deny access, never
// grant it.
type Resolver struct {
	reader  AccessReader
	cache   *AccessCache
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
	group   singleflight.Group
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCache attaches a Redis read-through cache
func WithCache(cache *AccessCache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

// WithMetrics attaches resolution metrics
func WithMetrics(metrics *observability.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = metrics }
}

// WithTimeout bounds a single resolution. Exceeding it is treated
// exactly like a fetch failure.
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = timeout }
}

// NewResolver creates a resolver over the given reader
func NewResolver(reader AccessReader, logger *observability.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &Resolver{
		reader:  reader,
		logger:  logger,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective access for (userID, orgID).
//
// An empty userID or orgID short-circuits to an empty set without
// touching the database: an anonymous or org-less context is a valid
// state with no permissions. Read failures are logged and also yield
// the empty set. Concurrent resolutions of the same pair share one
// database read.
func (r *Resolver) Resolve(ctx context.Context, userID, orgID string) ResolvedAccess {
	if userID == "" || orgID == "" {
		return ResolvedAccess{}
	}

	if r.cache != nil {
		if access, ok := r.cache.Get(ctx, userID, orgID); ok {
			r.metrics.ObserveCache("access", true)
			return access
		}
		r.metrics.ObserveCache("access", false)
	}

	key := userID + ":" + orgID
	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		access, err := r.fetch(ctx, userID, orgID)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, userID, orgID, access)
		return access, nil
	})

	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"org_id":  orgID,
		}).Error("access resolution failed, denying by default")
		return ResolvedAccess{}
	}

	return result.(ResolvedAccess)
}

// ResolveFresh bypasses the cache and reads straight from the source.
// Used by strong-consistency checks that must observe a just-changed
// permission. Same fail-closed behavior as Resolve.
func (r *Resolver) ResolveFresh(ctx context.Context, userID, orgID string) ResolvedAccess {
	if userID == "" || orgID == "" {
		return ResolvedAccess{}
	}

	access, err := r.fetch(ctx, userID, orgID)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"org_id":  orgID,
		}).Error("fresh access resolution failed, denying by default")
		return ResolvedAccess{}
	}

	r.cache.Set(ctx, userID, orgID, access)
	return access
}

// Invalidate drops cached access for one user in one organization
func (r *Resolver) Invalidate(ctx context.Context, userID, orgID string) {
	r.cache.Invalidate(ctx, userID, orgID)
}

// InvalidateOrg drops cached access for every user of an organization
func (r *Resolver) InvalidateOrg(ctx context.Context, orgID string) {
	r.cache.InvalidateOrg(ctx, orgID)
}

func (r *Resolver) fetch(ctx context.Context, userID, orgID string) (ResolvedAccess, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	access, err := r.reader.GetUserAccess(ctx, userID, orgID)
	r.metrics.ObserveResolve(time.Since(start), err)
	return access, err
}
