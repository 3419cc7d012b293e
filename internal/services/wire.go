package services

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Set bundles the workflow services over one shared store so the API server,
// the task worker and main wire them identically.
type Set struct {
	Authz     *AuthzService
	Admins    *AdminMappingService
	Approvals *ApprovalService
	Handovers *HandoverService
}

// NewSet wires the services against the database. The redis client is
// optional; without it role resolution skips caching and admin syncs run
// unlocked.
func NewSet(db *gorm.DB, rdb *redis.Client) *Set {
	store := NewGormStore(db)

	var cache RoleCache
	var locker EntityLocker
	if rdb != nil {
		cache = NewRedisRoleCache(rdb)
		locker = NewRedisEntityLocker(rdb)
	}

	return &Set{
		Authz:     NewAuthzService(store, cache),
		Admins:    NewAdminMappingService(store, locker),
		Approvals: NewApprovalService(store),
		Handovers: NewHandoverService(store),
	}
}
