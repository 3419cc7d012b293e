package services

import (
	"context"
	"time"

	"assetflow/internal/apperrors"
	"assetflow/internal/events"
	"assetflow/internal/models"
	"assetflow/internal/utils/logger"
)

// ApprovalStore is the persistence surface of the chain engine. SettleApproval
// is the one correctness-critical call: it must be a conditional update
// (status = pending -> status = X) and report whether a row actually flipped,
// so two concurrent actors on the same level produce exactly one success.
type ApprovalStore interface {
	CreateTransfer(ctx context.Context, transfer *models.TransferRequest) error
	// DeleteTransfer removes a request that never got an approval chain.
	DeleteTransfer(ctx context.Context, id string) error
	GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error)
	UpdateTransferStatus(ctx context.Context, id string, status models.TransferStatus, isApproved bool) error
	CountApprovals(ctx context.Context, requestID string) (int64, error)
	CreateApprovals(ctx context.Context, approvals []models.Approval) error
	// ListApprovals returns all approvals for a request ordered by level.
	ListApprovals(ctx context.Context, requestID string) ([]models.Approval, error)
	// CurrentPending returns the lowest-level pending approval, or (nil, nil)
	// when the chain has no pending step.
	CurrentPending(ctx context.Context, requestID string) (*models.Approval, error)
	SettleApproval(ctx context.Context, approvalID string, status models.ApprovalStatus, comment string, actedAt time.Time) (bool, error)
	// ApprovalAtLevel returns (nil, nil) when no approval exists at the level.
	ApprovalAtLevel(ctx context.Context, requestID string, level int) (*models.Approval, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	// AdminsFor returns mappings ordered by created_at then id, which is the
	// documented approver ordering rule.
	AdminsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error)
}

// ActOutcome reports what a decision did to the chain.
type ActOutcome struct {
	Acted         *models.Approval `json:"acted"`
	NextApprover  *models.Approval `json:"nextApprover,omitempty"`
	FullyApproved bool             `json:"fullyApproved"`
	Rejected      bool             `json:"rejected"`
}

// PendingApprovalEvent is the payload of the approval.pending event, emitted
// whenever a step becomes the chain's current pending one.
type PendingApprovalEvent struct {
	TransferRequestID string
	ApproverSocialID  string
	Level             int
}

// FullyApprovedEvent is the payload of the transfer.fully_approved event.
type FullyApprovedEvent struct {
	TransferRequestID string
	ItemID            string
	FromSocialID      string
	ToSocialID        string
}

// ApprovalService builds and advances the ordered approver chain of a custody
// transfer.
type ApprovalService struct {
	store ApprovalStore
	log   *logger.Logger
}

func NewApprovalService(store ApprovalStore) *ApprovalService {
	return &ApprovalService{
		store: store,
		log:   logger.New("approval_chain"),
	}
}

// Open registers a transfer request and initializes its approval chain as one
// unit. A request whose chain cannot be built (unknown item, wrong holder, no
// approvers) is not persisted, so nothing is left stranded in pending.
func (s *ApprovalService) Open(ctx context.Context, itemID, fromSocialID, toSocialID, createdBySocialID string) (*models.TransferRequest, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.AssignedToSocialID != fromSocialID {
		return nil, apperrors.Validation("item is not held by the transferring user")
	}

	transfer := &models.TransferRequest{
		ItemID:            itemID,
		FromSocialID:      fromSocialID,
		ToSocialID:        toSocialID,
		Status:            models.TransferStatusPending,
		CreatedBySocialID: createdBySocialID,
	}
	if err := s.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	approvals, err := s.Initialize(ctx, transfer.ID)
	if err != nil {
		if delErr := s.store.DeleteTransfer(ctx, transfer.ID); delErr != nil {
			s.log.Error("Failed to discard transfer %s: %v", delErr, transfer.ID)
		}
		return nil, err
	}

	transfer.Status = models.TransferStatusInReview
	transfer.Approvals = approvals
	return transfer, nil
}

// Initialize resolves the approver list by walking the item's owning
// hierarchy (category, then sub-category, then group) through the admin
// mappings, and creates one pending approval per approver with contiguous
// 1-based levels. A transfer with no eligible approver cannot proceed.
func (s *ApprovalService) Initialize(ctx context.Context, transferID string) ([]models.Approval, error) {
	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.CountApprovals(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.Validation("transfer already has an approval chain")
	}

	item, err := s.store.GetItem(ctx, transfer.ItemID)
	if err != nil {
		return nil, err
	}

	approvers, err := s.resolveApprovers(ctx, item)
	if err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		return nil, apperrors.Validation("no approvers found")
	}

	approvals := make([]models.Approval, 0, len(approvers))
	for i, socialID := range approvers {
		approvals = append(approvals, models.Approval{
			TransferRequestID: transferID,
			Level:             i + 1,
			ApproverSocialID:  socialID,
			Status:            models.ApprovalStatusPending,
		})
	}

	if err := s.store.CreateApprovals(ctx, approvals); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransferStatus(ctx, transferID, models.TransferStatusInReview, false); err != nil {
		return nil, err
	}

	events.Emit("approval.pending", &PendingApprovalEvent{
		TransferRequestID: transferID,
		ApproverSocialID:  approvals[0].ApproverSocialID,
		Level:             approvals[0].Level,
	})

	s.log.Info("Initialized approval chain for transfer %s with %d approvers", transferID, len(approvals))
	return approvals, nil
}

// resolveApprovers walks category, sub-category and group mappings in that
// order, de-duplicating social ids and keeping the first occurrence.
func (s *ApprovalService) resolveApprovers(ctx context.Context, item *models.Item) ([]string, error) {
	type hop struct {
		entityType models.EntityType
		entityID   string
	}
	hops := []hop{
		{models.EntityTypeCategory, item.CategoryID},
		{models.EntityTypeSubCategory, item.SubCategoryID},
		{models.EntityTypeGroup, item.GroupID},
	}

	var approvers []string
	seen := make(map[string]bool)
	for _, h := range hops {
		if h.entityID == "" {
			continue
		}
		mappings, err := s.store.AdminsFor(ctx, h.entityType, h.entityID)
		if err != nil {
			return nil, err
		}
		for _, mapping := range mappings {
			if seen[mapping.UserSocialID] {
				continue
			}
			seen[mapping.UserSocialID] = true
			approvers = append(approvers, mapping.UserSocialID)
		}
	}
	return approvers, nil
}

// ActOn records one approver's decision on the current pending step. A
// rejection terminates the chain; an approval either surfaces the next
// approver or reports the chain fully approved.
func (s *ApprovalService) ActOn(ctx context.Context, requestID, approverSocialID string, action models.ApprovalStatus, comment string) (*ActOutcome, error) {
	if action != models.ApprovalStatusApproved && action != models.ApprovalStatusRejected {
		return nil, apperrors.Validation("invalid action %q", action)
	}

	transfer, err := s.store.GetTransfer(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if transfer.Status == models.TransferStatusRejected {
		// A rejection anywhere in the chain blocks completion permanently,
		// even though later-level rows still read as pending.
		return nil, apperrors.Validation("transfer has been rejected")
	}

	pending, err := s.store.CurrentPending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, apperrors.Validation("no pending approval found")
	}
	if pending.ApproverSocialID != approverSocialID {
		return nil, apperrors.Forbidden("not authorized for this step")
	}

	now := time.Now()
	flipped, err := s.store.SettleApproval(ctx, pending.ID, action, comment, now)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// Lost the race: someone settled this step first.
		return nil, apperrors.Validation("no pending approval found")
	}

	pending.Status = action
	pending.Comment = comment
	pending.ActedAt = &now
	outcome := &ActOutcome{Acted: pending}

	if action == models.ApprovalStatusRejected {
		if err := s.store.UpdateTransferStatus(ctx, requestID, models.TransferStatusRejected, false); err != nil {
			return nil, err
		}
		outcome.Rejected = true
		s.log.Info("Transfer %s rejected at level %d by %s", requestID, pending.Level, approverSocialID)
		return outcome, nil
	}

	next, err := s.store.ApprovalAtLevel(ctx, requestID, pending.Level+1)
	if err != nil {
		return nil, err
	}
	if next != nil {
		outcome.NextApprover = next
		events.Emit("approval.pending", &PendingApprovalEvent{
			TransferRequestID: requestID,
			ApproverSocialID:  next.ApproverSocialID,
			Level:             next.Level,
		})
		return outcome, nil
	}

	if err := s.store.UpdateTransferStatus(ctx, requestID, models.TransferStatusApproved, true); err != nil {
		return nil, err
	}
	outcome.FullyApproved = true

	events.Emit("transfer.fully_approved", &FullyApprovedEvent{
		TransferRequestID: transfer.ID,
		ItemID:            transfer.ItemID,
		FromSocialID:      transfer.FromSocialID,
		ToSocialID:        transfer.ToSocialID,
	})

	s.log.Success("Transfer %s fully approved after level %d", requestID, pending.Level)
	return outcome, nil
}

// GetTrail returns every approval of a request ordered by level. Pure
// projection over the approval rows.
func (s *ApprovalService) GetTrail(ctx context.Context, requestID string) ([]models.Approval, error) {
	return s.store.ListApprovals(ctx, requestID)
}
