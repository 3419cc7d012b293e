package services

import (
	"context"
	"testing"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process RoleCache for tests.
type mapCache struct {
	entries map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) GetRoleID(_ context.Context, socialID string) (string, bool) {
	roleID, ok := c.entries[socialID]
	return roleID, ok
}

func (c *mapCache) SetRoleID(_ context.Context, socialID, roleID string) {
	c.entries[socialID] = roleID
}

func (c *mapCache) Invalidate(_ context.Context, socialID string) {
	delete(c.entries, socialID)
}

func grant(moduleName string, create, read, update, del bool) models.RoleModule {
	return models.RoleModule{
		Module:    &models.Module{Name: moduleName, IsActive: true},
		CanCreate: create,
		CanRead:   read,
		CanUpdate: update,
		CanDelete: del,
	}
}

func TestResolveUsesExistingAssignment(t *testing.T) {
	store := newMemStore()
	role := store.addRole("categoryAdmin", true, grant("Category", true, true, true, true))
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)
	got, assignment, err := svc.ResolveEffectiveRole(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, role.ID, got.ID)
	assert.Equal(t, "carol", assignment.AssignedToSocialID)
}

func TestResolveProvisionsDefaultRole(t *testing.T) {
	store := newMemStore()
	defaultRole := store.addRole(models.RoleNameDefault, true, grant("Item", false, true, false, false))

	svc := NewAuthzService(store, nil)
	role, assignment, err := svc.ResolveEffectiveRole(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, defaultRole.ID, role.ID)
	assert.False(t, assignment.IsScoped())

	// A second resolve reuses the provisioned assignment instead of stacking
	// another one
	_, _, err = svc.ResolveEffectiveRole(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Len(t, store.assignmentsFor("newcomer"), 1)
}

func TestResolveFailsWithoutDefaultRole(t *testing.T) {
	store := newMemStore()
	svc := NewAuthzService(store, nil)

	_, _, err := svc.ResolveEffectiveRole(context.Background(), "newcomer")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "no active role")
}

func TestResolveRejectsInactiveRole(t *testing.T) {
	store := newMemStore()
	role := store.addRole("mothballed", false)
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)
	_, _, err := svc.ResolveEffectiveRole(context.Background(), "carol")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestResolvePrefersUnscopedAssignment(t *testing.T) {
	store := newMemStore()
	scopedRole := store.addRole("categoryAdmin", true)
	unscopedRole := store.addRole("auditor", true)

	scope := "cat-1"
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             scopedRole.ID,
		EntityID:           &scope,
		IsActive:           true,
	}))
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             unscopedRole.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)
	role, _, err := svc.ResolveEffectiveRole(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, unscopedRole.ID, role.ID)
}

// countingStore counts authoritative assignment lookups so tests can tell the
// cache fast path from the database path.
type countingStore struct {
	*memStore
	assignmentLookups int
}

func (s *countingStore) ActiveAssignment(ctx context.Context, socialID string) (*models.UserRoleAssignment, error) {
	s.assignmentLookups++
	return s.memStore.ActiveAssignment(ctx, socialID)
}

func TestResolveTreatsFullyDisabledRoleAsInactive(t *testing.T) {
	store := newMemStore()
	role := store.addRole("reporter", true,
		models.RoleModule{Module: &models.Module{Name: "Report", IsActive: false}, CanRead: true},
		models.RoleModule{Module: &models.Module{Name: "Item", IsActive: false}, CanRead: true},
	)
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	// Every module entry disabled deactivates the role as a whole
	svc := NewAuthzService(store, nil)
	_, _, err := svc.ResolveEffectiveRole(context.Background(), "carol")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "no active role")
}

func TestResolveKeepsRoleWithOneActiveModule(t *testing.T) {
	store := newMemStore()
	role := store.addRole("reporter", true,
		models.RoleModule{Module: &models.Module{Name: "Report", IsActive: false}, CanRead: true},
		grant("Item", false, true, false, false),
	)
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)
	got, _, err := svc.ResolveEffectiveRole(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, role.ID, got.ID)
}

func TestVerifyRoleClaimUsesCacheFastPath(t *testing.T) {
	mem := newMemStore()
	role := mem.addRole(models.RoleNameDefault, true)
	require.NoError(t, mem.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	store := &countingStore{memStore: mem}
	cache := newMapCache()
	svc := NewAuthzService(store, cache)
	ctx := context.Background()

	// First verification resolves authoritatively and primes the cache
	_, err := svc.VerifyRoleClaim(ctx, "carol", role.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.assignmentLookups)

	// A cached match skips the assignment lookup entirely
	got, err := svc.VerifyRoleClaim(ctx, "carol", role.ID)
	require.NoError(t, err)
	assert.Equal(t, role.ID, got.ID)
	assert.Equal(t, 1, store.assignmentLookups)

	// Invalidation restores the authoritative path
	svc.InvalidateCachedRole(ctx, "carol")
	_, err = svc.VerifyRoleClaim(ctx, "carol", role.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.assignmentLookups)
}

func TestVerifyRoleClaimCacheMismatchFallsBack(t *testing.T) {
	mem := newMemStore()
	oldRole := mem.addRole("categoryAdmin", true)
	newRole := mem.addRole(models.RoleNameDefault, true)
	require.NoError(t, mem.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             newRole.ID,
		IsActive:           true,
	}))

	store := &countingStore{memStore: mem}
	cache := newMapCache()
	cache.SetRoleID(context.Background(), "carol", newRole.ID)
	svc := NewAuthzService(store, cache)

	// The stale claim misses the cache and the authoritative compare rejects it
	_, err := svc.VerifyRoleClaim(context.Background(), "carol", oldRole.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, 1, store.assignmentLookups)
}

func TestVerifyRoleClaimDetectsStaleRole(t *testing.T) {
	store := newMemStore()
	oldRole := store.addRole("categoryAdmin", true)
	newRole := store.addRole(models.RoleNameDefault, true)
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             newRole.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)

	// Token minted while carol still held the old role
	_, err := svc.VerifyRoleClaim(context.Background(), "carol", oldRole.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Contains(t, err.Error(), "re-authenticate")

	role, err := svc.VerifyRoleClaim(context.Background(), "carol", newRole.ID)
	require.NoError(t, err)
	assert.Equal(t, newRole.ID, role.ID)
}

func TestHasPermissionSuperAdminShortCircuit(t *testing.T) {
	svc := NewAuthzService(newMemStore(), nil)
	admin := &models.Role{Name: models.RoleNameAdmin, IsActive: true}

	assert.True(t, svc.HasPermission(admin, "Category", "delete"))
	assert.True(t, svc.HasPermission(admin, "anything", "create"))
	assert.True(t, svc.IsModuleUnrestricted(admin, "Transfer"))
}

func TestHasPermissionChecksModuleGrant(t *testing.T) {
	svc := NewAuthzService(newMemStore(), nil)
	role := &models.Role{
		Name:     "User",
		IsActive: true,
		Modules: []models.RoleModule{
			grant("Item", false, true, false, false),
			grant("Report", true, true, false, false),
		},
	}

	assert.True(t, svc.HasPermission(role, "Item", "read"))
	assert.False(t, svc.HasPermission(role, "Item", "delete"))
	assert.True(t, svc.HasPermission(role, "Report", "create"))
	assert.False(t, svc.HasPermission(role, "Transfer", "read"))
	assert.False(t, svc.IsModuleUnrestricted(role, "Item"))
}

func TestHasPermissionSkipsInactiveModule(t *testing.T) {
	svc := NewAuthzService(newMemStore(), nil)
	role := &models.Role{
		Name:     "User",
		IsActive: true,
		Modules: []models.RoleModule{
			{
				Module:  &models.Module{Name: "Report", IsActive: false},
				CanRead: true,
			},
		},
	}

	assert.False(t, svc.HasPermission(role, "Report", "read"))
}

func TestCurrentRoleIDUsesCache(t *testing.T) {
	store := newMemStore()
	role := store.addRole(models.RoleNameDefault, true)
	cache := newMapCache()
	svc := NewAuthzService(store, cache)

	// First call resolves and primes the cache
	roleID, err := svc.CurrentRoleID(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, role.ID, roleID)
	_, cached := cache.GetRoleID(context.Background(), "carol")
	assert.True(t, cached)

	svc.InvalidateCachedRole(context.Background(), "carol")
	_, cached = cache.GetRoleID(context.Background(), "carol")
	assert.False(t, cached)
}

func TestAuthorize(t *testing.T) {
	store := newMemStore()
	role := store.addRole(models.RoleNameDefault, true, grant("Item", false, true, false, false))
	require.NoError(t, store.CreateAssignment(context.Background(), &models.UserRoleAssignment{
		AssignedToSocialID: "carol",
		RoleID:             role.ID,
		IsActive:           true,
	}))

	svc := NewAuthzService(store, nil)

	got, err := svc.Authorize(context.Background(), "carol", "Item", "read")
	require.NoError(t, err)
	assert.Equal(t, role.ID, got.ID)

	_, err = svc.Authorize(context.Background(), "carol", "Item", "delete")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}
