package services

import (
	"context"
	"fmt"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"
	"assetflow/internal/utils/logger"
)

// AdminMappingStore is the persistence surface the sync needs. Transaction
// runs the callback against a store bound to one transactional unit, so a
// mapping row and its role assignment land or fail together.
type AdminMappingStore interface {
	ListMappings(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error)
	CreateMapping(ctx context.Context, mapping *models.EntityAdminMapping) error
	DeleteMapping(ctx context.Context, entityType models.EntityType, entityID, socialID string) error
	CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error
	DeleteScopedAssignment(ctx context.Context, socialID, entityID string) error
	CountAssignments(ctx context.Context, socialID string) (int64, error)
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	Transaction(ctx context.Context, fn func(tx AdminMappingStore) error) error
}

// EntityLocker serializes concurrent syncs on the same entity. Optional; a nil
// locker means callers accept last-writer-wins on overlapping syncs.
type EntityLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// AdminMappingService keeps the delegated-admin set of an entity and the
// scoped role assignments derived from it in sync.
type AdminMappingService struct {
	store  AdminMappingStore
	locker EntityLocker
	log    *logger.Logger
}

func NewAdminMappingService(store AdminMappingStore, locker EntityLocker) *AdminMappingService {
	return &AdminMappingService{
		store:  store,
		locker: locker,
		log:    logger.New("admin_mapping"),
	}
}

// SyncAdmins diffs the desired admin set against the current one. Added ids
// get a mapping row plus a scoped assignment to the delegated role; removed
// ids lose both, falling back to the default role when nothing else remains.
func (s *AdminMappingService) SyncAdmins(ctx context.Context, entityID string, entityType models.EntityType, desiredSocialIDs []string, delegatedRoleName string) error {
	if !models.IsValidEntityType(entityType) {
		return apperrors.Validation("unknown entity type %q", entityType)
	}
	if entityID == "" {
		return apperrors.Validation("entity id is required")
	}
	if len(desiredSocialIDs) == 0 {
		// every delegable entity requires at least one admin
		return apperrors.Validation("admin set must not be empty")
	}

	delegatedRole, err := s.store.RoleByName(ctx, delegatedRoleName)
	if err != nil {
		return err
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, fmt.Sprintf("%s:%s", entityType, entityID))
		if err != nil {
			return err
		}
		defer release()
	}

	existing, err := s.store.ListMappings(ctx, entityType, entityID)
	if err != nil {
		return err
	}

	existingSet := make(map[string]bool, len(existing))
	for _, mapping := range existing {
		existingSet[mapping.UserSocialID] = true
	}

	// toAdd keeps the caller's ordering so mapping rows are created in the
	// order admins were listed; approver resolution depends on created_at.
	var toAdd []string
	desiredSet := make(map[string]bool, len(desiredSocialIDs))
	for _, socialID := range desiredSocialIDs {
		if socialID == "" {
			return apperrors.Validation("admin social id must not be empty")
		}
		if desiredSet[socialID] {
			continue
		}
		desiredSet[socialID] = true
		if !existingSet[socialID] {
			toAdd = append(toAdd, socialID)
		}
	}

	var toRemove []string
	for _, mapping := range existing {
		if !desiredSet[mapping.UserSocialID] {
			toRemove = append(toRemove, mapping.UserSocialID)
		}
	}

	for _, socialID := range toAdd {
		if err := s.addAdmin(ctx, entityID, entityType, socialID, delegatedRole.ID); err != nil {
			return err
		}
	}

	for _, socialID := range toRemove {
		if err := s.removeAdmin(ctx, entityID, entityType, socialID); err != nil {
			return err
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		s.log.Info("Synced admins for %s %s: +%d -%d", entityType, entityID, len(toAdd), len(toRemove))
	}

	return nil
}

// addAdmin writes the mapping row and the scoped assignment as one unit.
func (s *AdminMappingService) addAdmin(ctx context.Context, entityID string, entityType models.EntityType, socialID, roleID string) error {
	return s.store.Transaction(ctx, func(tx AdminMappingStore) error {
		mapping := &models.EntityAdminMapping{
			EntityID:     entityID,
			EntityType:   entityType,
			UserSocialID: socialID,
			Status:       "active",
		}
		if err := tx.CreateMapping(ctx, mapping); err != nil {
			return err
		}

		scope := entityID
		assignment := &models.UserRoleAssignment{
			AssignedToSocialID: socialID,
			RoleID:             roleID,
			EntityID:           &scope,
			IsActive:           true,
		}
		return tx.CreateAssignment(ctx, assignment)
	})
}

// removeAdmin deletes the pair and re-provisions the default role when the
// identity would otherwise be left with no assignment at all.
func (s *AdminMappingService) removeAdmin(ctx context.Context, entityID string, entityType models.EntityType, socialID string) error {
	return s.store.Transaction(ctx, func(tx AdminMappingStore) error {
		if err := tx.DeleteMapping(ctx, entityType, entityID, socialID); err != nil {
			return err
		}
		if err := tx.DeleteScopedAssignment(ctx, socialID, entityID); err != nil {
			return err
		}

		remaining, err := tx.CountAssignments(ctx, socialID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		defaultRole, err := tx.RoleByName(ctx, models.RoleNameDefault)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// No default role seeded: leave the identity unassigned, the
				// resolver will surface "no active role".
				return nil
			}
			return err
		}
		return tx.CreateAssignment(ctx, &models.UserRoleAssignment{
			AssignedToSocialID: socialID,
			RoleID:             defaultRole.ID,
			IsActive:           true,
		})
	})
}

// AdminsFor lists the current admin mappings for an entity in creation order.
func (s *AdminMappingService) AdminsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error) {
	return s.store.ListMappings(ctx, entityType, entityID)
}
