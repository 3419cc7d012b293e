package services

import (
	"context"
	"testing"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handoverFixture(t *testing.T) (*memStore, *HandoverService, *models.Handover) {
	t.Helper()

	store := newMemStore()
	item := store.addItem(&models.Item{
		Name:               "ThinkPad X1",
		AssignedToSocialID: "alice",
	})
	transfer := store.addTransfer(&models.TransferRequest{
		ItemID:       item.ID,
		FromSocialID: "alice",
		ToSocialID:   "bob",
		Status:       models.TransferStatusApproved,
	})
	handover := store.addHandover(&models.Handover{
		ItemID:            item.ID,
		TransferRequestID: transfer.ID,
		FromSocialID:      "alice",
		ToSocialID:        "bob",
	})

	return store, NewHandoverService(store), handover
}

func TestCreateHandoverStartsInProgress(t *testing.T) {
	store := newMemStore()
	item := store.addItem(&models.Item{Name: "Monitor", AssignedToSocialID: "alice"})
	transfer := store.addTransfer(&models.TransferRequest{
		ItemID:       item.ID,
		FromSocialID: "alice",
		ToSocialID:   "bob",
		Status:       models.TransferStatusApproved,
	})

	svc := NewHandoverService(store)
	handover, err := svc.Create(context.Background(), item.ID, transfer.ID, "alice", "bob", "dock included")
	require.NoError(t, err)

	assert.Equal(t, models.HandoverStatusInProgress, handover.Status)
	assert.False(t, handover.ReceiverAcknowledged)
	assert.Equal(t, "dock included", handover.Notes)
	require.NotNil(t, handover.Item)
	assert.Equal(t, "Monitor", handover.Item.Name)
}

func TestCreateHandoverRequiresIDs(t *testing.T) {
	svc := NewHandoverService(newMemStore())

	_, err := svc.Create(context.Background(), "", "tr-1", "alice", "bob", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(context.Background(), "item-1", "tr-1", "alice", "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAcknowledgeCompletesHandshake(t *testing.T) {
	store, svc, handover := handoverFixture(t)
	ctx := context.Background()

	got, err := svc.Acknowledge(ctx, handover.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.HandoverStatusCompleted, got.Status)
	assert.True(t, got.ReceiverAcknowledged)

	// Custody moved to the receiver and the transfer closed out
	item, err := store.GetItem(ctx, handover.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "bob", item.AssignedToSocialID)

	transfer, err := store.GetTransfer(ctx, handover.TransferRequestID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, transfer.Status)
	assert.True(t, transfer.IsApproved)
}

func TestAcknowledgeRejectsNonReceiver(t *testing.T) {
	store, svc, handover := handoverFixture(t)

	_, err := svc.Acknowledge(context.Background(), handover.ID, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "only the receiver can acknowledge")

	// Custody did not move
	item, err := store.GetItem(context.Background(), handover.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "alice", item.AssignedToSocialID)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	store, svc, handover := handoverFixture(t)
	ctx := context.Background()

	_, err := svc.Acknowledge(ctx, handover.ID, "bob")
	require.NoError(t, err)

	// Simulate an admin moving the item on after completion; a replayed
	// acknowledgment must not reassign it back
	require.NoError(t, store.ReassignItem(ctx, handover.ItemID, "carol"))

	got, err := svc.Acknowledge(ctx, handover.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.HandoverStatusCompleted, got.Status)

	item, err := store.GetItem(ctx, handover.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "carol", item.AssignedToSocialID)
}

func TestAcknowledgeCancelledHandover(t *testing.T) {
	_, svc, handover := handoverFixture(t)
	ctx := context.Background()

	status := models.HandoverStatusCancelled
	_, err := svc.Update(ctx, handover.ID, nil, &status)
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, handover.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestCompleteLosesToConcurrentCancel(t *testing.T) {
	store, svc, handover := handoverFixture(t)
	ctx := context.Background()

	// A cancellation landing between the receiver's read and the completion
	// write must win: the conditional update only fires from in-progress
	require.NoError(t, store.UpdateHandover(ctx, handover.ID, map[string]interface{}{
		"status": models.HandoverStatusCancelled,
	}))

	flipped, err := store.CompleteHandover(ctx, handover.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	_, err = svc.Acknowledge(ctx, handover.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Custody never moved
	item, err := store.GetItem(ctx, handover.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "alice", item.AssignedToSocialID)
}

func TestAcknowledgeUnknownHandover(t *testing.T) {
	svc := NewHandoverService(newMemStore())

	_, err := svc.Acknowledge(context.Background(), "missing", "bob")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateHandoverFields(t *testing.T) {
	_, svc, handover := handoverFixture(t)
	ctx := context.Background()

	notes := "left at reception"
	got, err := svc.Update(ctx, handover.ID, &notes, nil)
	require.NoError(t, err)
	assert.Equal(t, "left at reception", got.Notes)
	assert.Equal(t, models.HandoverStatusInProgress, got.Status)
}

func TestUpdateHandoverRejectsEmptyPatch(t *testing.T) {
	_, svc, handover := handoverFixture(t)

	_, err := svc.Update(context.Background(), handover.ID, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestUpdateHandoverRejectsInvalidStatus(t *testing.T) {
	_, svc, handover := handoverFixture(t)

	status := models.HandoverStatus("misplaced")
	_, err := svc.Update(context.Background(), handover.ID, nil, &status)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestListHandoversScopesToParties(t *testing.T) {
	store, svc, _ := handoverFixture(t)
	ctx := context.Background()

	store.addHandover(&models.Handover{
		ItemID:            "item-x",
		TransferRequestID: "tr-x",
		FromSocialID:      "carol",
		ToSocialID:        "dave",
	})

	mine, err := svc.List(ctx, "bob", false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "bob", mine[0].ToSocialID)

	theirs, err := svc.List(ctx, "bob", true)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}
