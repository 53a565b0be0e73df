package rbac

import (
	"context"
	"testing"
)

func TestAccessCache_RoundTrip(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "user-1", "org-1"); ok {
		t.Error("Expected miss on empty cache")
	}

	access := accessWith(PermGrantsView, PermTasksView)
	access.Roles = []Role{{ID: "r1", Name: RoleViewer}}
	cache.Set(ctx, "user-1", "org-1", access)

	got, ok := cache.Get(ctx, "user-1", "org-1")
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if !got.HasPermission(PermGrantsView) || !got.HasRole(RoleViewer) {
		t.Error("Cached set lost data on round trip")
	}
}

func TestAccessCache_Invalidate(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "org-1", accessWith(PermGrantsView))
	cache.Set(ctx, "user-2", "org-1", accessWith(PermGrantsView))
	cache.Invalidate(ctx, "user-1", "org-1")

	if _, ok := cache.Get(ctx, "user-1", "org-1"); ok {
		t.Error("Expected user-1 invalidated")
	}
	if _, ok := cache.Get(ctx, "user-2", "org-1"); !ok {
		t.Error("Expected user-2 untouched")
	}
}

func TestAccessCache_InvalidateOrg(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "org-1", accessWith(PermGrantsView))
	cache.Set(ctx, "user-2", "org-1", accessWith(PermGrantsView))
	cache.Set(ctx, "user-1", "org-2", accessWith(PermGrantsView))

	cache.InvalidateOrg(ctx, "org-1")

	if _, ok := cache.Get(ctx, "user-1", "org-1"); ok {
		t.Error("Expected org-1 entries invalidated")
	}
	if _, ok := cache.Get(ctx, "user-2", "org-1"); ok {
		t.Error("Expected org-1 entries invalidated")
	}
	if _, ok := cache.Get(ctx, "user-1", "org-2"); !ok {
		t.Error("Expected org-2 entry untouched")
	}
}

func TestAccessCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()

	mr.Set(accessKey("user-1", "org-1"), "{not json")

	if _, ok := cache.Get(ctx, "user-1", "org-1"); ok {
		t.Error("Expected corrupt entry to read as a miss")
	}

	// The corrupt entry must also have been dropped
	if mr.Exists(accessKey("user-1", "org-1")) {
		t.Error("Expected corrupt entry deleted")
	}
}

func TestAccessCache_NilSafe(t *testing.T) {
	var cache *AccessCache
	ctx := context.Background()

	// None of these may panic
	cache.Set(ctx, "user-1", "org-1", accessWith(PermGrantsView))
	cache.Invalidate(ctx, "user-1", "org-1")
	cache.InvalidateOrg(ctx, "org-1")

	if _, ok := cache.Get(ctx, "user-1", "org-1"); ok {
		t.Error("Expected miss from nil cache")
	}
}
