package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/go-advanced-admin/admin"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthzStore hands back one fixed role and assignment.
type stubAuthzStore struct {
	role       *models.Role
	assignment *models.UserRoleAssignment
}

func (s *stubAuthzStore) ActiveAssignment(_ context.Context, _ string) (*models.UserRoleAssignment, error) {
	return s.assignment, nil
}

func (s *stubAuthzStore) RoleByID(_ context.Context, _ string) (*models.Role, error) {
	if s.role == nil {
		return nil, apperrors.NotFound("role not found")
	}
	return s.role, nil
}

func (s *stubAuthzStore) RoleByName(_ context.Context, name string) (*models.Role, error) {
	return nil, apperrors.NotFound("role %q not found", name)
}

func (s *stubAuthzStore) CreateAssignment(_ context.Context, _ *models.UserRoleAssignment) error {
	return nil
}

func roleFixture(name string) *stubAuthzStore {
	role := &models.Role{Name: name, IsActive: true}
	role.ID = "role-1"
	return &stubAuthzStore{
		role: role,
		assignment: &models.UserRoleAssignment{
			AssignedToSocialID: "carol",
			RoleID:             role.ID,
			IsActive:           true,
		},
	}
}

func panelContext(socialID string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if socialID != "" {
		c.Set("socialID", socialID)
	}
	return c
}

func TestAdminPanelDeniesAnonymous(t *testing.T) {
	authz := services.NewAuthzService(&stubAuthzStore{}, nil)
	check := adminPermissionChecker(authz)

	allowed, err := check(admin.PermissionRequest{}, panelContext(""))
	require.NoError(t, err)
	assert.False(t, allowed)

	// A caller that is not an echo request at all is denied outright
	allowed, err = check(admin.PermissionRequest{}, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAdminPanelDeniesUnresolvableRole(t *testing.T) {
	// Store is empty: no assignment and no default role to provision
	authz := services.NewAuthzService(&stubAuthzStore{}, nil)
	check := adminPermissionChecker(authz)

	allowed, err := check(admin.PermissionRequest{}, panelContext("carol"))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAdminPanelDeniesRegularRole(t *testing.T) {
	authz := services.NewAuthzService(roleFixture(models.RoleNameDefault), nil)
	check := adminPermissionChecker(authz)

	allowed, err := check(admin.PermissionRequest{}, panelContext("carol"))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAdminPanelAdmitsSuperAdmin(t *testing.T) {
	authz := services.NewAuthzService(roleFixture(models.RoleNameAdmin), nil)
	check := adminPermissionChecker(authz)

	allowed, err := check(admin.PermissionRequest{}, panelContext("carol"))
	require.NoError(t, err)
	assert.True(t, allowed)
}
