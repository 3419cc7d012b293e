package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedUUID = "7b54c4e2-6f34-4a2b-9d87-0b2f4f1a9c01"

func TestTransferRequestBody(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)

	err := v.Validate(&TransferRequestBody{
		ItemID:       wellFormedUUID,
		FromSocialID: "alice",
		ToSocialID:   "bob",
	})
	assert.NoError(t, err)

	err = v.Validate(&TransferRequestBody{
		ItemID:       "not-a-uuid",
		FromSocialID: "alice",
		ToSocialID:   "bob",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "itemId")

	err = v.Validate(&TransferRequestBody{ItemID: wellFormedUUID, FromSocialID: "alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "toSocialId")
}

func TestApprovalActionRequest(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&ApprovalActionRequest{Action: "approved"}))
	assert.NoError(t, v.Validate(&ApprovalActionRequest{Action: "rejected", Comment: "damaged"}))

	// pending is a state, not an action a caller may submit
	err := v.Validate(&ApprovalActionRequest{Action: "pending"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action")

	assert.Error(t, v.Validate(&ApprovalActionRequest{}))
}

func TestHandoverUpdateRequest(t *testing.T) {
	v := NewValidator()

	// Both fields optional; an empty patch passes validation and is rejected
	// by the service instead
	assert.NoError(t, v.Validate(&HandoverUpdateRequest{}))

	cancelled := "cancelled"
	assert.NoError(t, v.Validate(&HandoverUpdateRequest{Status: &cancelled}))

	bogus := "misplaced"
	err := v.Validate(&HandoverUpdateRequest{Status: &bogus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestRoleAssignmentRequest(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&RoleAssignmentRequest{
		AssignedToSocialID: "carol",
		RoleID:             wellFormedUUID,
	}))
	assert.NoError(t, v.Validate(&RoleAssignmentRequest{
		AssignedToSocialID: "carol",
		RoleID:             wellFormedUUID,
		EntityID:           wellFormedUUID,
	}))

	err := v.Validate(&RoleAssignmentRequest{
		AssignedToSocialID: "carol",
		RoleID:             wellFormedUUID,
		EntityID:           "cat-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entityId")
}

func TestErrorMessageUsesJSONFieldNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&HandoverRequest{ItemID: wellFormedUUID})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, err.Error(), "transferRequestId")
	assert.Contains(t, err.Error(), "fromSocialId")
}
