package models

// Permission is a static catalog entry (e.g. "category:view"). Seeded at
// startup, never mutated by workflow logic.
type Permission struct {
	Base
	Action      string `gorm:"uniqueIndex;not null" json:"action"`
	Description string `json:"description"`
}

// Module represents a functional area (e.g. "Report", "Asset Assignment").
type Module struct {
	Base
	Name     string `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	IsActive bool   `gorm:"not null;default:true" json:"isActive"`
}

// RoleModule grants a role a set of CRUD permissions inside one module.
type RoleModule struct {
	Base
	RoleID    string  `gorm:"type:uuid;not null;index" json:"roleId"`
	ModuleID  string  `gorm:"type:uuid;not null" json:"moduleId"`
	Module    *Module `json:"module,omitempty"`
	CanCreate bool    `gorm:"not null;default:false" json:"canCreate"`
	CanRead   bool    `gorm:"not null;default:false" json:"canRead"`
	CanUpdate bool    `gorm:"not null;default:false" json:"canUpdate"`
	CanDelete bool    `gorm:"not null;default:false" json:"canDelete"`
}

// Allows reports whether this module entry grants the given action.
func (rm *RoleModule) Allows(action string) bool {
	switch action {
	case "create":
		return rm.CanCreate
	case "read":
		return rm.CanRead
	case "update":
		return rm.CanUpdate
	case "delete":
		return rm.CanDelete
	default:
		return false
	}
}

// Unrestricted is true when the entry grants all four CRUD actions. Callers
// use it to widen read filters ("show all records" vs "show mine").
func (rm *RoleModule) Unrestricted() bool {
	return rm.CanCreate && rm.CanRead && rm.CanUpdate && rm.CanDelete
}

type Role struct {
	Base
	Name        string       `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	Description string       `json:"description"`
	IsActive    bool         `gorm:"not null;default:true" json:"isActive"`
	Modules     []RoleModule `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

// IsSuperAdmin is evaluated by name, not by enumerating modules: admin
// installs are not required to list every module explicitly.
func (r *Role) IsSuperAdmin() bool {
	return r.Name == RoleNameAdmin
}

// Deactivated reports whether the role must be treated as inactive: either
// flagged inactive directly, or every one of its module entries points at a
// disabled module. A role with no module entries at all is governed by its
// flag alone.
func (r *Role) Deactivated() bool {
	if !r.IsActive {
		return true
	}
	if len(r.Modules) == 0 {
		return false
	}
	for i := range r.Modules {
		if r.Modules[i].Module != nil && r.Modules[i].Module.IsActive {
			return false
		}
	}
	return true
}

// ModuleByName finds the role's entry for a module. Inactive modules are
// treated as not granted.
func (r *Role) ModuleByName(name string) *RoleModule {
	for i := range r.Modules {
		rm := &r.Modules[i]
		if rm.Module != nil && rm.Module.Name == name && rm.Module.IsActive {
			return rm
		}
	}
	return nil
}

// UserRoleAssignment binds an identity to exactly one role, optionally scoped
// to a single delegated entity.
type UserRoleAssignment struct {
	Base
	AssignedToSocialID string  `gorm:"not null;index" json:"assignedToSocialId" validate:"required"`
	RoleID             string  `gorm:"type:uuid;not null" json:"roleId" validate:"required,uuid"`
	Role               *Role   `json:"role,omitempty"`
	EntityID           *string `gorm:"type:uuid;index" json:"entityId,omitempty"`
	IsActive           bool    `gorm:"not null;default:true" json:"isActive"`
}

func (a *UserRoleAssignment) IsScoped() bool {
	return a.EntityID != nil && *a.EntityID != ""
}

// EntityAdminMapping records "this user administers this entity". Unique on
// (entityId, userSocialId); kept in sync with the scoped role assignments.
type EntityAdminMapping struct {
	Base
	EntityID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_entity_admin" json:"entityId" validate:"required,uuid"`
	EntityType   EntityType `gorm:"not null;index" json:"entityType" validate:"required,entity_type"`
	UserSocialID string     `gorm:"not null;uniqueIndex:idx_entity_admin" json:"userSocialId" validate:"required"`
	Status       string     `gorm:"not null;default:'active'" json:"status"`
}
