package services

import (
	"context"
	"errors"
	"time"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"

	"gorm.io/gorm"
)

// GormStore backs the workflow services with Postgres. It implements
// AuthzStore, AdminMappingStore, ApprovalStore and HandoverStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var (
	_ AuthzStore        = (*GormStore)(nil)
	_ AdminMappingStore = (*GormStore)(nil)
	_ ApprovalStore     = (*GormStore)(nil)
	_ HandoverStore     = (*GormStore)(nil)
)

// ---- AuthzStore ----

func (s *GormStore) ActiveAssignment(ctx context.Context, socialID string) (*models.UserRoleAssignment, error) {
	var assignment models.UserRoleAssignment
	err := s.db.WithContext(ctx).
		Where("assigned_to_social_id = ? AND is_active = ? AND is_deleted = ?", socialID, true, false).
		Order("(entity_id IS NOT NULL), created_at ASC").
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (s *GormStore) RoleByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Preload("Modules.Module").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("role %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *GormStore) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Preload("Modules.Module").
		Where("name = ? AND is_deleted = ?", name, false).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("role %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *GormStore) CreateAssignment(ctx context.Context, assignment *models.UserRoleAssignment) error {
	return s.db.WithContext(ctx).Create(assignment).Error
}

// ---- AdminMappingStore ----

func (s *GormStore) ListMappings(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error) {
	var mappings []models.EntityAdminMapping
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND is_deleted = ?", entityType, entityID, false).
		Order("created_at ASC, id ASC").
		Find(&mappings).Error
	return mappings, err
}

func (s *GormStore) CreateMapping(ctx context.Context, mapping *models.EntityAdminMapping) error {
	return s.db.WithContext(ctx).Create(mapping).Error
}

func (s *GormStore) DeleteMapping(ctx context.Context, entityType models.EntityType, entityID, socialID string) error {
	return s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND user_social_id = ?", entityType, entityID, socialID).
		Delete(&models.EntityAdminMapping{}).Error
}

func (s *GormStore) DeleteScopedAssignment(ctx context.Context, socialID, entityID string) error {
	return s.db.WithContext(ctx).
		Where("assigned_to_social_id = ? AND entity_id = ?", socialID, entityID).
		Delete(&models.UserRoleAssignment{}).Error
}

func (s *GormStore) CountAssignments(ctx context.Context, socialID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserRoleAssignment{}).
		Where("assigned_to_social_id = ? AND is_active = ? AND is_deleted = ?", socialID, true, false).
		Count(&count).Error
	return count, err
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx AdminMappingStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// ---- ApprovalStore ----

func (s *GormStore) CreateTransfer(ctx context.Context, transfer *models.TransferRequest) error {
	return s.db.WithContext(ctx).Create(transfer).Error
}

// DeleteTransfer hard-deletes: the row was never visible to any approver.
func (s *GormStore) DeleteTransfer(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.TransferRequest{}).Error
}

func (s *GormStore) GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	var transfer models.TransferRequest
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("transfer request %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (s *GormStore) UpdateTransferStatus(ctx context.Context, id string, status models.TransferStatus, isApproved bool) error {
	return s.db.WithContext(ctx).Model(&models.TransferRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "is_approved": isApproved}).Error
}

func (s *GormStore) CountApprovals(ctx context.Context, requestID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("transfer_request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

func (s *GormStore) CreateApprovals(ctx context.Context, approvals []models.Approval) error {
	return s.db.WithContext(ctx).Create(&approvals).Error
}

func (s *GormStore) ListApprovals(ctx context.Context, requestID string) ([]models.Approval, error) {
	var approvals []models.Approval
	err := s.db.WithContext(ctx).
		Where("transfer_request_id = ?", requestID).
		Order("level ASC").
		Find(&approvals).Error
	return approvals, err
}

func (s *GormStore) CurrentPending(ctx context.Context, requestID string) (*models.Approval, error) {
	var approval models.Approval
	err := s.db.WithContext(ctx).
		Where("transfer_request_id = ? AND status = ?", requestID, models.ApprovalStatusPending).
		Order("level ASC").
		First(&approval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

// SettleApproval is a compare-and-swap: the WHERE clause only matches while
// the row is still pending, and RowsAffected tells us whether we won.
func (s *GormStore) SettleApproval(ctx context.Context, approvalID string, status models.ApprovalStatus, comment string, actedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("id = ? AND status = ?", approvalID, models.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":   status,
			"comment":  comment,
			"acted_at": actedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) ApprovalAtLevel(ctx context.Context, requestID string, level int) (*models.Approval, error) {
	var approval models.Approval
	err := s.db.WithContext(ctx).
		Where("transfer_request_id = ? AND level = ?", requestID, level).
		Order("created_at ASC").
		First(&approval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *GormStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("item %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStore) AdminsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error) {
	return s.ListMappings(ctx, entityType, entityID)
}

// ---- HandoverStore ----

func (s *GormStore) CreateHandover(ctx context.Context, handover *models.Handover) error {
	return s.db.WithContext(ctx).Create(handover).Error
}

func (s *GormStore) GetHandover(ctx context.Context, id string) (*models.Handover, error) {
	var handover models.Handover
	err := s.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.Category").
		Preload("Item.SubCategory").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&handover).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("handover %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &handover, nil
}

func (s *GormStore) ListHandovers(ctx context.Context, socialID string, unrestricted bool) ([]models.Handover, error) {
	query := s.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.Category").
		Preload("Item.SubCategory").
		Where("is_deleted = ?", false)
	if !unrestricted {
		query = query.Where("from_social_id = ? OR to_social_id = ?", socialID, socialID)
	}

	var handovers []models.Handover
	err := query.Order("created_at DESC").Find(&handovers).Error
	return handovers, err
}

func (s *GormStore) UpdateHandover(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.Handover{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// CompleteHandover flips the handshake to completed only while it is still in
// progress; a replayed acknowledgment or a concurrent cancellation both leave
// the row untouched.
func (s *GormStore) CompleteHandover(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Handover{}).
		Where("id = ? AND status = ?", id, models.HandoverStatusInProgress).
		Updates(map[string]interface{}{
			"receiver_acknowledged": true,
			"status":                models.HandoverStatusCompleted,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) ReassignItem(ctx context.Context, itemID, toSocialID string) error {
	return s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", itemID).
		Update("assigned_to_social_id", toSocialID).Error
}
