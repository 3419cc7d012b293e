package models

import (
	"gorm.io/gorm"
)

// GetUserBySocialID retrieves a synced identity by its provider social id
func GetUserBySocialID(socialID string, db *gorm.DB) (*AppUser, error) {
	user := &AppUser{}
	if err := db.Where("social_id = ? AND is_deleted = false", socialID).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetRoleByName retrieves an active role by its unique name
func GetRoleByName(name string, db *gorm.DB) (*Role, error) {
	role := &Role{}
	if err := db.Preload("Modules.Module").
		Where("name = ? AND is_deleted = false", name).First(role).Error; err != nil {
		return nil, err
	}
	return role, nil
}

func GetItemByID(id string, db *gorm.DB) (*Item, error) {
	item := &Item{}
	if err := db.Where("id = ? AND is_deleted = false", id).First(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}
