package models

import (
	"assetflow/internal/events"

	"gorm.io/gorm"
)

// Role assignments feed the per-request role resolution, so every write
// invalidates whatever the resolver has cached for that identity.

func (a *UserRoleAssignment) AfterCreate(tx *gorm.DB) error {
	events.Emit("role.changed", a.AssignedToSocialID)
	return nil
}

func (a *UserRoleAssignment) AfterUpdate(tx *gorm.DB) error {
	events.Emit("role.changed", a.AssignedToSocialID)
	return nil
}

func (a *UserRoleAssignment) AfterDelete(tx *gorm.DB) error {
	events.Emit("role.changed", a.AssignedToSocialID)
	return nil
}

func (t *TransferRequest) AfterCreate(tx *gorm.DB) error {
	events.Emit("transfer.created", t)
	return nil
}
