package models

import (
	"fmt"
	"os"

	console "assetflow/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// Default modules the permission model is expressed against
var defaultModules = []string{
	"Category",
	"SubCategory",
	"Group",
	"Item",
	"Policy",
	"SLA",
	"Report",
	"Role",
	"Transfer",
	"Handover",
}

// Default permission catalog: one action per module/verb pair
var defaultActions = []string{"create", "read", "update", "delete"}

// moduleGrant is one (module, permission-set) pair inside a role template
type moduleGrant struct {
	module string
	create bool
	read   bool
	update bool
	delete bool
}

// Role templates seeded at startup. The "admin" role is privileged by name,
// so its grant list is intentionally empty. Delegated roles (categoryAdmin,
// groupAdmin, ...) get full control of their own module plus read access to
// the transfer workflow they approve in.
var defaultRoles = map[string][]moduleGrant{
	RoleNameAdmin: {},
	RoleNameDefault: {
		{module: "Category", read: true},
		{module: "SubCategory", read: true},
		{module: "Group", read: true},
		{module: "Item", read: true},
		{module: "Policy", read: true},
		{module: "SLA", read: true},
		{module: "Report", create: true, read: true},
		{module: "Transfer", create: true, read: true},
		{module: "Handover", read: true, update: true},
	},
	EntityTypeCategory.DelegatedRoleName(): {
		{module: "Category", create: true, read: true, update: true, delete: true},
		{module: "Transfer", read: true, update: true},
		{module: "Handover", read: true},
	},
	EntityTypeSubCategory.DelegatedRoleName(): {
		{module: "SubCategory", create: true, read: true, update: true, delete: true},
		{module: "Transfer", read: true, update: true},
		{module: "Handover", read: true},
	},
	EntityTypeGroup.DelegatedRoleName(): {
		{module: "Group", create: true, read: true, update: true, delete: true},
		{module: "Transfer", read: true, update: true},
		{module: "Handover", read: true},
	},
	EntityTypeItem.DelegatedRoleName(): {
		{module: "Item", create: true, read: true, update: true, delete: true},
		{module: "Transfer", read: true, update: true},
	},
	EntityTypePolicy.DelegatedRoleName(): {
		{module: "Policy", create: true, read: true, update: true, delete: true},
	},
	EntityTypeSLA.DelegatedRoleName(): {
		{module: "SLA", create: true, read: true, update: true, delete: true},
	},
}

// SeedPermissions creates the permission catalog, modules and default roles
func SeedPermissions(db *gorm.DB) error {
	// Permission catalog
	for _, module := range defaultModules {
		for _, action := range defaultActions {
			permission := Permission{
				Action:      fmt.Sprintf("%s:%s", module, action),
				Description: fmt.Sprintf("%s %s", action, module),
			}
			if err := db.FirstOrCreate(&permission, Permission{Action: permission.Action}).Error; err != nil {
				return fmt.Errorf("failed to create permission %s: %v", permission.Action, err)
			}
		}
	}

	// Modules
	moduleIDs := make(map[string]string, len(defaultModules))
	for _, name := range defaultModules {
		module := Module{Name: name, IsActive: true}
		if err := db.FirstOrCreate(&module, Module{Name: name}).Error; err != nil {
			return fmt.Errorf("failed to create module %s: %v", name, err)
		}
		moduleIDs[name] = module.ID
	}

	// Roles and their module grants
	for roleName, grants := range defaultRoles {
		log.Info("Seeding role: %s", roleName)

		role := Role{Name: roleName, IsActive: true}
		if err := db.FirstOrCreate(&role, Role{Name: roleName}).Error; err != nil {
			return fmt.Errorf("failed to create role %s: %v", roleName, err)
		}

		for _, grant := range grants {
			moduleID, ok := moduleIDs[grant.module]
			if !ok {
				return fmt.Errorf("role %s references unknown module %s", roleName, grant.module)
			}

			roleModule := RoleModule{RoleID: role.ID, ModuleID: moduleID}
			if err := db.FirstOrCreate(&roleModule, RoleModule{RoleID: role.ID, ModuleID: moduleID}).Error; err != nil {
				return fmt.Errorf("failed to create module grant %s/%s: %v", roleName, grant.module, err)
			}

			roleModule.CanCreate = grant.create
			roleModule.CanRead = grant.read
			roleModule.CanUpdate = grant.update
			roleModule.CanDelete = grant.delete
			if err := db.Save(&roleModule).Error; err != nil {
				return fmt.Errorf("failed to update module grant %s/%s: %v", roleName, grant.module, err)
			}
		}
	}

	return nil
}

// CreateBootstrapAdminFromEnv assigns the admin role to the social id named in
// the environment so a fresh install has at least one privileged identity.
func CreateBootstrapAdminFromEnv(db *gorm.DB) error {
	socialID, ok := os.LookupEnv("BOOTSTRAP_ADMIN_SOCIAL_ID")
	if !ok {
		return fmt.Errorf("BOOTSTRAP_ADMIN_SOCIAL_ID not set")
	}

	adminRole, err := GetRoleByName(RoleNameAdmin, db)
	if err != nil {
		return fmt.Errorf("admin role not seeded: %v", err)
	}

	var count int64
	db.Model(&UserRoleAssignment{}).
		Where("assigned_to_social_id = ? AND role_id = ? AND is_active = ? AND is_deleted = false",
			socialID, adminRole.ID, true).
		Count(&count)
	if count > 0 {
		return nil
	}

	assignment := UserRoleAssignment{
		AssignedToSocialID: socialID,
		RoleID:             adminRole.ID,
		IsActive:           true,
	}
	if err := db.Create(&assignment).Error; err != nil {
		return fmt.Errorf("failed to create bootstrap admin assignment: %v", err)
	}

	log.Success("Bootstrap admin assignment created for %s", socialID)
	return nil
}
