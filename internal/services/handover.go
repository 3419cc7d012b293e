package services

import (
	"context"

	"assetflow/internal/apperrors"
	"assetflow/internal/events"
	"assetflow/internal/models"
	"assetflow/internal/utils/logger"
)

// HandoverStore is the persistence surface of the handshake. CompleteHandover
// must flip status to completed only while the row still reads in-progress and
// report whether it changed, so acknowledgment stays one-way and a concurrent
// cancellation cannot be overridden.
type HandoverStore interface {
	CreateHandover(ctx context.Context, handover *models.Handover) error
	// GetHandover preloads the item with its category and sub-category; every
	// read is enriched with the item's identity.
	GetHandover(ctx context.Context, id string) (*models.Handover, error)
	ListHandovers(ctx context.Context, socialID string, unrestricted bool) ([]models.Handover, error)
	UpdateHandover(ctx context.Context, id string, fields map[string]interface{}) error
	CompleteHandover(ctx context.Context, id string) (bool, error)
	ReassignItem(ctx context.Context, itemID, toSocialID string) error
	UpdateTransferStatus(ctx context.Context, id string, status models.TransferStatus, isApproved bool) error
}

// HandoverService finalizes an approved custody transfer through a two-party
// acknowledgment handshake.
type HandoverService struct {
	store HandoverStore
	log   *logger.Logger
}

func NewHandoverService(store HandoverStore) *HandoverService {
	return &HandoverService{
		store: store,
		log:   logger.New("handover"),
	}
}

// Create opens the handshake for an approved transfer. Handovers start
// directly in handover-in-progress; the pending state is reserved.
func (s *HandoverService) Create(ctx context.Context, itemID, transferRequestID, fromSocialID, toSocialID, notes string) (*models.Handover, error) {
	if itemID == "" || transferRequestID == "" || fromSocialID == "" || toSocialID == "" {
		return nil, apperrors.Validation("itemId, transferRequestId, fromSocialId and toSocialId are required")
	}

	handover := &models.Handover{
		ItemID:               itemID,
		TransferRequestID:    transferRequestID,
		FromSocialID:         fromSocialID,
		ToSocialID:           toSocialID,
		Notes:                notes,
		ReceiverAcknowledged: false,
		Status:               models.HandoverStatusInProgress,
	}
	if err := s.store.CreateHandover(ctx, handover); err != nil {
		return nil, err
	}

	events.Emit("handover.created", handover)

	s.log.Info("Handover %s opened for transfer %s (%s -> %s)", handover.ID, transferRequestID, fromSocialID, toSocialID)
	return s.store.GetHandover(ctx, handover.ID)
}

// Update is the administrative correction path for notes and status. It is
// not the receiver's acknowledgment path.
func (s *HandoverService) Update(ctx context.Context, id string, notes *string, status *models.HandoverStatus) (*models.Handover, error) {
	if _, err := s.store.GetHandover(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if notes != nil {
		fields["notes"] = *notes
	}
	if status != nil {
		if !models.IsValidHandoverStatus(*status) {
			return nil, apperrors.Validation("invalid handover status %q", *status)
		}
		fields["status"] = *status
	}
	if len(fields) == 0 {
		return nil, apperrors.Validation("nothing to update")
	}

	if err := s.store.UpdateHandover(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.store.GetHandover(ctx, id)
}

// Acknowledge is the sole normal path to completed, and only the receiver may
// take it. Acknowledging an already-completed handover is an idempotent
// success.
func (s *HandoverService) Acknowledge(ctx context.Context, id, receiverSocialID string) (*models.Handover, error) {
	handover, err := s.store.GetHandover(ctx, id)
	if err != nil {
		return nil, err
	}
	if handover.ToSocialID != receiverSocialID {
		return nil, apperrors.Forbidden("only the receiver can acknowledge")
	}
	if handover.Status == models.HandoverStatusCompleted {
		return handover, nil
	}
	if handover.Status == models.HandoverStatusCancelled {
		return nil, apperrors.Validation("handover has been cancelled")
	}

	flipped, err := s.store.CompleteHandover(ctx, id)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// Lost a race with a concurrent acknowledgment or cancellation;
		// re-read to find out which.
		current, err := s.store.GetHandover(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == models.HandoverStatusCancelled {
			return nil, apperrors.Validation("handover has been cancelled")
		}
		return current, nil
	}

	// Custody changes hands exactly once, on the first acknowledgment.
	if err := s.store.ReassignItem(ctx, handover.ItemID, handover.ToSocialID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransferStatus(ctx, handover.TransferRequestID, models.TransferStatusCompleted, true); err != nil {
		return nil, err
	}
	events.Emit("handover.completed", handover)
	s.log.Success("Handover %s acknowledged by %s", id, receiverSocialID)

	return s.store.GetHandover(ctx, id)
}

// Get returns one handover enriched with the referenced item's identity.
func (s *HandoverService) Get(ctx context.Context, id string) (*models.Handover, error) {
	return s.store.GetHandover(ctx, id)
}

// List returns the handovers an identity is party to, or every handover when
// the caller's module access is unrestricted.
func (s *HandoverService) List(ctx context.Context, socialID string, unrestricted bool) ([]models.Handover, error) {
	return s.store.ListHandovers(ctx, socialID, unrestricted)
}
