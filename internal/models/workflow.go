package models

import (
	"time"
)

// TransferRequest moves custody of an item between two identities. Status only
// advances forward; the approval chain gates the advance.
type TransferRequest struct {
	Base
	ItemID            string         `gorm:"type:uuid;not null;index" json:"itemId" validate:"required,uuid"`
	Item              *Item          `json:"item,omitempty"`
	FromSocialID      string         `gorm:"not null" json:"fromSocialId" validate:"required"`
	ToSocialID        string         `gorm:"not null" json:"toSocialId" validate:"required"`
	Status            TransferStatus `gorm:"not null;default:'pending'" json:"status" validate:"omitempty,transfer_status"`
	IsApproved        bool           `gorm:"not null;default:false" json:"isApproved"`
	CreatedBySocialID string         `gorm:"not null" json:"createdBySocialId"`
	Approvals         []Approval     `gorm:"foreignKey:TransferRequestID" json:"approvals,omitempty"`
}

// Approval is one step of the chain. Terminal once acted upon: never deleted,
// never re-opened.
type Approval struct {
	Base
	TransferRequestID string           `gorm:"type:uuid;not null;index" json:"transferRequestId"`
	Level             int              `gorm:"not null" json:"level" validate:"min=1"`
	ApproverSocialID  string           `gorm:"not null;index" json:"approverSocialId"`
	Status            ApprovalStatus   `gorm:"not null;default:'pending'" json:"status"`
	Comment           string           `json:"comment"`
	ActedAt           *time.Time       `json:"actedAt,omitempty"`
	TransferRequest   *TransferRequest `json:"-"`
}

// Handover is the two-party confirmation that finalizes an approved transfer.
// Only the receiver can move it to completed.
type Handover struct {
	Base
	ItemID               string           `gorm:"type:uuid;not null;index" json:"itemId" validate:"required,uuid"`
	Item                 *Item            `json:"item,omitempty"`
	TransferRequestID    string           `gorm:"type:uuid;not null;index" json:"transferRequestId" validate:"required,uuid"`
	TransferRequest      *TransferRequest `json:"transferRequest,omitempty"`
	FromSocialID         string           `gorm:"not null" json:"fromSocialId" validate:"required"`
	ToSocialID           string           `gorm:"not null" json:"toSocialId" validate:"required"`
	ReceiverAcknowledged bool             `gorm:"not null;default:false" json:"receiverAcknowledged"`
	Notes                string           `json:"notes"`
	Status               HandoverStatus   `gorm:"not null;default:'handover-in-progress'" json:"status" validate:"omitempty,handover_status"`
}
