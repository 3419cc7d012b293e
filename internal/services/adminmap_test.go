package services

import (
	"context"
	"testing"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminFixture(t *testing.T) (*memStore, *AdminMappingService) {
	t.Helper()

	store := newMemStore()
	store.addRole(models.RoleNameDefault, true)
	store.addRole(models.EntityTypeCategory.DelegatedRoleName(), true)
	return store, NewAdminMappingService(store, nil)
}

func TestSyncAdminsCreatesMappingsAndScopedAssignments(t *testing.T) {
	store, svc := adminFixture(t)
	ctx := context.Background()

	err := svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory,
		[]string{"carol", "dave"}, models.EntityTypeCategory.DelegatedRoleName())
	require.NoError(t, err)

	mappings, err := store.ListMappings(ctx, models.EntityTypeCategory, "cat-1")
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "carol", mappings[0].UserSocialID)
	assert.Equal(t, "dave", mappings[1].UserSocialID)

	for _, socialID := range []string{"carol", "dave"} {
		assignments := store.assignmentsFor(socialID)
		require.Len(t, assignments, 1, socialID)
		assert.True(t, assignments[0].IsScoped())
		assert.Equal(t, "cat-1", *assignments[0].EntityID)
	}
}

func TestSyncAdminsIsIdempotent(t *testing.T) {
	store, svc := adminFixture(t)
	ctx := context.Background()
	roleName := models.EntityTypeCategory.DelegatedRoleName()

	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"carol", "dave"}, roleName))
	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"carol", "dave"}, roleName))

	mappings, err := store.ListMappings(ctx, models.EntityTypeCategory, "cat-1")
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
	assert.Len(t, store.assignmentsFor("carol"), 1)
	assert.Len(t, store.assignmentsFor("dave"), 1)
}

func TestSyncAdminsDiffsAddAndRemove(t *testing.T) {
	store, svc := adminFixture(t)
	ctx := context.Background()
	roleName := models.EntityTypeCategory.DelegatedRoleName()

	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"carol", "dave"}, roleName))
	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"dave", "erin"}, roleName))

	mappings, err := store.ListMappings(ctx, models.EntityTypeCategory, "cat-1")
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "dave", mappings[0].UserSocialID)
	assert.Equal(t, "erin", mappings[1].UserSocialID)

	// carol lost her scoped grant and, having nothing else, fell back to the
	// default role
	assignments := store.assignmentsFor("carol")
	require.Len(t, assignments, 1)
	assert.False(t, assignments[0].IsScoped())

	defaultRole, err := store.RoleByName(ctx, models.RoleNameDefault)
	require.NoError(t, err)
	assert.Equal(t, defaultRole.ID, assignments[0].RoleID)
}

func TestSyncAdminsKeepsOtherAssignmentsOnRemoval(t *testing.T) {
	store, svc := adminFixture(t)
	ctx := context.Background()
	roleName := models.EntityTypeCategory.DelegatedRoleName()

	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"carol"}, roleName))
	require.NoError(t, svc.SyncAdmins(ctx, "cat-2", models.EntityTypeCategory, []string{"carol"}, roleName))

	// Dropping carol from cat-1 must not touch her cat-2 grant or hand her
	// the default role
	require.NoError(t, svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory, []string{"dave"}, roleName))

	assignments := store.assignmentsFor("carol")
	require.Len(t, assignments, 1)
	require.True(t, assignments[0].IsScoped())
	assert.Equal(t, "cat-2", *assignments[0].EntityID)
}

func TestSyncAdminsDeduplicatesDesiredSet(t *testing.T) {
	store, svc := adminFixture(t)
	ctx := context.Background()

	err := svc.SyncAdmins(ctx, "cat-1", models.EntityTypeCategory,
		[]string{"carol", "carol", "dave"}, models.EntityTypeCategory.DelegatedRoleName())
	require.NoError(t, err)

	mappings, err := store.ListMappings(ctx, models.EntityTypeCategory, "cat-1")
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
	assert.Len(t, store.assignmentsFor("carol"), 1)
}

func TestSyncAdminsRejectsEmptySet(t *testing.T) {
	_, svc := adminFixture(t)

	err := svc.SyncAdmins(context.Background(), "cat-1", models.EntityTypeCategory,
		nil, models.EntityTypeCategory.DelegatedRoleName())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "admin set must not be empty")
}

func TestSyncAdminsRejectsUnknownEntityType(t *testing.T) {
	_, svc := adminFixture(t)

	err := svc.SyncAdmins(context.Background(), "x-1", models.EntityType("warehouse"),
		[]string{"carol"}, "warehouseAdmin")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSyncAdminsRejectsBlankSocialID(t *testing.T) {
	_, svc := adminFixture(t)

	err := svc.SyncAdmins(context.Background(), "cat-1", models.EntityTypeCategory,
		[]string{"carol", ""}, models.EntityTypeCategory.DelegatedRoleName())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSyncAdminsUnknownDelegatedRole(t *testing.T) {
	store := newMemStore()
	store.addRole(models.RoleNameDefault, true)
	svc := NewAdminMappingService(store, nil)

	err := svc.SyncAdmins(context.Background(), "cat-1", models.EntityTypeCategory,
		[]string{"carol"}, "categoryAdmin")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
