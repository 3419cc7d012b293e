package services

import (
	"context"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"
	"assetflow/internal/utils/logger"
)

// AuthzStore is the persistence surface the resolver needs.
type AuthzStore interface {
	// ActiveAssignment returns the authoritative active assignment for an
	// identity, or (nil, nil) when none exists. Unscoped assignments win over
	// scoped ones.
	ActiveAssignment(ctx context.Context, socialID string) (*models.UserRoleAssignment, error)
	RoleByID(ctx context.Context, id string) (*models.Role, error)
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error
}

// RoleCache is a read-through cache for resolved role ids. Optional: the
// resolver works identically without one, just with an extra query per request.
type RoleCache interface {
	GetRoleID(ctx context.Context, socialID string) (string, bool)
	SetRoleID(ctx context.Context, socialID, roleID string)
	Invalidate(ctx context.Context, socialID string)
}

// AuthzService resolves the single effective role for an identity and answers
// module/action permission checks against it.
type AuthzService struct {
	store AuthzStore
	cache RoleCache
	log   *logger.Logger
}

func NewAuthzService(store AuthzStore, cache RoleCache) *AuthzService {
	return &AuthzService{
		store: store,
		cache: cache,
		log:   logger.New("authz"),
	}
}

// ResolveEffectiveRole finds the identity's active assignment, lazily
// provisioning the default "User" role when none exists. Fails with a
// forbidden error when no role is resolvable at all.
func (s *AuthzService) ResolveEffectiveRole(ctx context.Context, socialID string) (*models.Role, *models.UserRoleAssignment, error) {
	if socialID == "" {
		return nil, nil, apperrors.Validation("social id is required")
	}

	assignment, err := s.store.ActiveAssignment(ctx, socialID)
	if err != nil {
		return nil, nil, err
	}

	if assignment == nil {
		assignment, err = s.provisionDefaultRole(ctx, socialID)
		if err != nil {
			return nil, nil, err
		}
	}

	role, err := s.store.RoleByID(ctx, assignment.RoleID)
	if err != nil {
		return nil, nil, err
	}
	if role.Deactivated() {
		return nil, nil, apperrors.Forbidden("no active role")
	}

	if s.cache != nil {
		s.cache.SetRoleID(ctx, socialID, role.ID)
	}

	return role, assignment, nil
}

// provisionDefaultRole creates a "User" assignment for an identity that has
// none. Idempotent: it re-checks for a racing insert before writing.
func (s *AuthzService) provisionDefaultRole(ctx context.Context, socialID string) (*models.UserRoleAssignment, error) {
	defaultRole, err := s.store.RoleByName(ctx, models.RoleNameDefault)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Forbidden("no active role")
		}
		return nil, err
	}

	// Duplicate-prevention check before insertion
	if existing, err := s.store.ActiveAssignment(ctx, socialID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	assignment := &models.UserRoleAssignment{
		AssignedToSocialID: socialID,
		RoleID:             defaultRole.ID,
		IsActive:           true,
	}
	if err := s.store.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	s.log.Info("Provisioned default role for %s", socialID)
	return assignment, nil
}

// CurrentRoleID returns the identity's current effective role id, using the
// cache when available.
func (s *AuthzService) CurrentRoleID(ctx context.Context, socialID string) (string, error) {
	if s.cache != nil {
		if roleID, ok := s.cache.GetRoleID(ctx, socialID); ok {
			return roleID, nil
		}
	}

	role, _, err := s.ResolveEffectiveRole(ctx, socialID)
	if err != nil {
		return "", err
	}
	return role.ID, nil
}

// VerifyRoleClaim compares the role id embedded in a credential at issue time
// against the identity's current role. A mismatch means the role changed after
// the token was issued: the caller must re-authenticate even though the
// token's signature and expiry are still valid.
//
// A cached role id that matches the claim skips the assignment lookup; the
// cache is invalidated on every role change, and any miss or mismatch falls
// through to the authoritative resolve.
func (s *AuthzService) VerifyRoleClaim(ctx context.Context, socialID, claimedRoleID string) (*models.Role, error) {
	if s.cache != nil && claimedRoleID != "" {
		if cachedID, ok := s.cache.GetRoleID(ctx, socialID); ok && cachedID == claimedRoleID {
			role, err := s.store.RoleByID(ctx, claimedRoleID)
			if err == nil && !role.Deactivated() {
				return role, nil
			}
		}
	}

	role, _, err := s.ResolveEffectiveRole(ctx, socialID)
	if err != nil {
		return nil, err
	}
	if role.ID != claimedRoleID {
		return nil, apperrors.Authentication("role changed, re-authenticate")
	}
	return role, nil
}

// HasPermission reports whether the role grants the action inside the named
// module. The "admin" role short-circuits to true for everything.
func (s *AuthzService) HasPermission(role *models.Role, moduleName, action string) bool {
	if role == nil {
		return false
	}
	if role.IsSuperAdmin() {
		return true
	}

	entry := role.ModuleByName(moduleName)
	if entry == nil {
		return false
	}
	return entry.Allows(action)
}

// IsModuleUnrestricted is true when the role is "admin" or the module entry
// grants all four CRUD actions. Callers widen read filters on it.
func (s *AuthzService) IsModuleUnrestricted(role *models.Role, moduleName string) bool {
	if role == nil {
		return false
	}
	if role.IsSuperAdmin() {
		return true
	}

	entry := role.ModuleByName(moduleName)
	if entry == nil {
		return false
	}
	return entry.Unrestricted()
}

// Authorize resolves the identity's role and checks one permission in one
// call. Returns the role so callers can reuse it for read-filter decisions.
func (s *AuthzService) Authorize(ctx context.Context, socialID, moduleName, action string) (*models.Role, error) {
	role, _, err := s.ResolveEffectiveRole(ctx, socialID)
	if err != nil {
		return nil, err
	}
	if !s.HasPermission(role, moduleName, action) {
		return nil, apperrors.Forbidden("insufficient permission")
	}
	return role, nil
}

// InvalidateCachedRole drops the cached role id for an identity. Wired to the
// role.changed event so assignment writes take effect on the next request.
func (s *AuthzService) InvalidateCachedRole(ctx context.Context, socialID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, socialID)
	}
}
