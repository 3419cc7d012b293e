package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-" validate:"omitempty"`
	IsDeleted bool      `json:"isDeleted" default:"false"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// EntityType discriminates which kind of entity an admin mapping or a scoped
// role assignment points at.
type EntityType string

const (
	EntityTypeCategory    EntityType = "category"
	EntityTypeSubCategory EntityType = "subCategory"
	EntityTypeGroup       EntityType = "group"
	EntityTypeItem        EntityType = "item"
	EntityTypePolicy      EntityType = "policy"
	EntityTypeSLA         EntityType = "sla"
)

// IsValidEntityType checks if a given entity type is valid
func IsValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeCategory, EntityTypeSubCategory, EntityTypeGroup,
		EntityTypeItem, EntityTypePolicy, EntityTypeSLA:
		return true
	default:
		return false
	}
}

// DelegatedRoleName returns the role name a delegated admin of this entity
// type is assigned (e.g. "categoryAdmin").
func (t EntityType) DelegatedRoleName() string {
	return string(t) + "Admin"
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInReview  TransferStatus = "in-review"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusRejected  TransferStatus = "rejected"
	TransferStatusCompleted TransferStatus = "completed"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

type HandoverStatus string

const (
	// HandoverStatusPending is reserved for a future offer/accept pre-step;
	// nothing transitions into it today.
	HandoverStatusPending    HandoverStatus = "pending"
	HandoverStatusInProgress HandoverStatus = "handover-in-progress"
	HandoverStatusCompleted  HandoverStatus = "completed"
	HandoverStatusCancelled  HandoverStatus = "cancelled"
)

func IsValidHandoverStatus(s HandoverStatus) bool {
	switch s {
	case HandoverStatusPending, HandoverStatusInProgress, HandoverStatusCompleted, HandoverStatusCancelled:
		return true
	default:
		return false
	}
}

type FaultStatus string

const (
	FaultStatusOpen     FaultStatus = "OPEN"
	FaultStatusResolved FaultStatus = "RESOLVED"
	FaultStatusRejected FaultStatus = "REJECTED"
)

// Reserved role names the resolver special-cases.
const (
	RoleNameAdmin   = "admin"
	RoleNameDefault = "User"
)
