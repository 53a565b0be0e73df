package rbac

import (
	"context"
	"sync"

	"github.com/grantcue/grantcue/pkg/auth"
	"github.com/grantcue/grantcue/pkg/observability"
)

// SessionState is the observable lifecycle of a session's loaded set
type SessionState int

const (
	// StateNoIdentity means no user or no organization is bound; every
	// check deterministically returns false and nothing is fetched.
	StateNoIdentity SessionState = iota
	// StateLoading means a resolution is in flight or not yet started
	StateLoading
	// StateLoaded means the effective set is available. A failed
	// resolution also lands here with an empty set; the two are
	// intentionally indistinguishable.
	StateLoaded
)

func (s SessionState) String() string {
	return []string{"no_identity", "loading", "loaded"}[s]
}

// Session is the permission query surface for one (user, organization)
// pair. Checks evaluate against the set loaded at identity-bind time;
// CheckPermission re-resolves for call sites needing strong
// consistency.
//
// A Session is safe for concurrent use. When the bound identity
// changes, in-flight loads started under the old identity are
// discarded on completion, so a stale resolution can never replace the
// current pair's set.
type Session struct {
	resolver *Resolver
	metrics  *observability.Metrics

	mu         sync.Mutex
	identity   auth.Identity
	generation uint64
	loaded     bool
	access     ResolvedAccess
}

// NewSession creates a session bound to the given identity. The set is
// not loaded yet; call Load.
func NewSession(resolver *Resolver, identity auth.Identity) *Session {
	return &Session{resolver: resolver, identity: identity}
}

// WithSessionMetrics attaches check metrics to the session
func (s *Session) WithSessionMetrics(metrics *observability.Metrics) *Session {
	s.metrics = metrics
	return s
}

// SetIdentity rebinds the session to a new identity pair, invalidating
// the loaded set. Any resolution still in flight for the previous
// identity will be discarded when it completes.
func (s *Session) SetIdentity(identity auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity == s.identity {
		return
	}
	s.identity = identity
	s.generation++
	s.loaded = false
	s.access = ResolvedAccess{}
}

// Load resolves the effective set for the currently bound identity.
// The result is applied only if the identity has not changed while the
// resolution was in flight.
func (s *Session) Load(ctx context.Context) {
	s.mu.Lock()
	identity := s.identity
	generation := s.generation
	s.mu.Unlock()

	if !identity.IsComplete() {
		return
	}

	access := s.resolver.Resolve(ctx, identity.UserID, identity.OrgID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// Identity moved on while we were resolving; this result
		// belongs to a previous pair.
		return
	}
	s.access = access
	s.loaded = true
}

// State returns the session's current lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identity.IsComplete() {
		return StateNoIdentity
	}
	if !s.loaded {
		return StateLoading
	}
	return StateLoaded
}

// Identity returns the currently bound identity pair
func (s *Session) Identity() auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// snapshot returns the identity and set one decision evaluates against
func (s *Session) snapshot() (auth.Identity, ResolvedAccess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.access
}

// HasPermission reports whether the session's identity holds the
// referenced permission. Platform administrators pass every permission
// check. Legacy references pass when the effective set contains any
// one of their mapped fine-grained permissions.
func (s *Session) HasPermission(ref PermissionRef) bool {
	allowed := s.hasPermission(ref)
	s.metrics.ObservePermissionCheck(allowed)
	return allowed
}

func (s *Session) hasPermission(ref PermissionRef) bool {
	identity, access := s.snapshot()
	if identity.PlatformAdmin {
		return true
	}
	if !identity.IsComplete() {
		return false
	}
	return satisfies(access, ref)
}

// HasAnyPermission reports whether at least one reference is held
func (s *Session) HasAnyPermission(refs ...PermissionRef) bool {
	identity, access := s.snapshot()
	if identity.PlatformAdmin {
		return true
	}
	if !identity.IsComplete() {
		return false
	}
	for _, ref := range refs {
		if satisfies(access, ref) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every reference is held. An empty
// list is vacuously true for a complete identity.
func (s *Session) HasAllPermissions(refs ...PermissionRef) bool {
	identity, access := s.snapshot()
	if identity.PlatformAdmin {
		return true
	}
	if !identity.IsComplete() {
		return false
	}
	for _, ref := range refs {
		if !satisfies(access, ref) {
			return false
		}
	}
	return true
}

// HasRole reports whether the effective role set contains the named
// role. Role identity is independent of the platform-admin bypass, so
// there is no override here.
func (s *Session) HasRole(name string) bool {
	identity, access := s.snapshot()
	if !identity.IsComplete() {
		return false
	}
	return access.HasRole(name)
}

// PrimaryRole returns the org_admin role if held, else the first role
// in the set, else nil.
func (s *Session) PrimaryRole() *Role {
	_, access := s.snapshot()
	for i := range access.Roles {
		if access.Roles[i].Name == RoleOrgAdmin {
			return &access.Roles[i]
		}
	}
	if len(access.Roles) > 0 {
		return &access.Roles[0]
	}
	return nil
}

// CheckPermission is the strong-consistency variant of HasPermission:
// it re-resolves directly against the backing store instead of the set
// loaded at identity-bind time. A failed resolution denies.
func (s *Session) CheckPermission(ctx context.Context, ref PermissionRef) bool {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if identity.PlatformAdmin {
		s.metrics.ObservePermissionCheck(true)
		return true
	}
	if !identity.IsComplete() {
		s.metrics.ObservePermissionCheck(false)
		return false
	}

	access := s.resolver.ResolveFresh(ctx, identity.UserID, identity.OrgID)
	allowed := satisfies(access, ref)
	s.metrics.ObservePermissionCheck(allowed)
	return allowed
}

// satisfies evaluates one reference against a resolved set. Legacy
// references expand to their mapped permissions and pass on any match;
// an unrecognized legacy name expands to nothing and never passes.
func satisfies(access ResolvedAccess, ref PermissionRef) bool {
	if ref.Kind == RefLegacy {
		for _, name := range ExpandLegacy(LegacyPermission(ref.Name)) {
			if access.HasPermission(name) {
				return true
			}
		}
		return false
	}
	return access.HasPermission(ref.Name)
}
