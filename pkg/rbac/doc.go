// Package rbac provides role-based access control for GrantCue.
//
// # Overview
//
// This package decides what an authenticated user may do within one
// organization. It consists of four pieces:
//
//  1. Catalog: the static enumeration of fine-grained permissions
//     ("grants:edit", "team:invite", ...) and the system role
//     definitions (org_admin, grant_manager, contributor, viewer).
//  2. Resolver: loads a user's effective roles and permissions for an
//     organization in a single database read, with an optional Redis
//     read-through cache.
//  3. Legacy adapter: maps the five coarse legacy permission names
//     ("view", "edit_org", "manage_team", "manage_billing",
//     "delete_org") onto fine-grained permissions. A legacy check
//     passes when any one of the mapped permissions is held.
//  4. Session: the query façade consumed by route guards and
//     handlers. Synchronous boolean checks against the loaded set,
//     plus a strong-consistency re-check that bypasses the cache.
//
// # Effective permissions
//
// A user may hold several roles in one organization; the effective
// permission set is the deduplicated union across them. Platform
// administrators bypass every permission check (but not role checks:
// HasRole tests role identity, which is independent of the bypass).
//
// # Failure policy
//
// The resolver never fails open. A fetch error, a timeout, or a
// missing identity all degrade to the empty permission set, so an
// outage of the permission store can only ever deny access. Callers
// cannot distinguish "resolution failed" from "no permissions
// granted" — that is deliberate.
//
// # Usage
//
//	store := rbac.NewStore(db)
//	resolver := rbac.NewResolver(store, logger, rbac.WithCache(cache))
//
//	session := rbac.NewSession(resolver, identity)
//	session.Load(ctx)
//	if session.HasPermission(rbac.Fine(rbac.PermGrantsEdit)) {
//		// ...
//	}
//
// Route gating:
//
//	guard := rbac.NewGuard(resolver, auditLogger, metrics)
//	router.Handle("/grants", guard.RequirePermission(rbac.Fine(rbac.PermGrantsView))(h))
package rbac
