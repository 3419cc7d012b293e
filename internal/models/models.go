package models

import (
	"assetflow/internal/events"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AppUser mirrors an identity from the external identity provider. Login and
// the periodic sync job upsert these rows; passwords never live here.
type AppUser struct {
	Base
	SocialID     string         `gorm:"uniqueIndex;not null" json:"socialId" validate:"required"`
	Email        string         `gorm:"index" json:"email" validate:"omitempty,email"`
	Name         string         `json:"name"`
	IsActive     bool           `gorm:"not null;default:true" json:"isActive"`
	ProviderData datatypes.JSON `gorm:"type:jsonb" json:"providerData,omitempty"`
}

type Category struct {
	Base
	Name        string `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	// Admins is the desired admin set posted by clients; persisted through
	// EntityAdminMapping, not as a column.
	Admins []string `gorm:"-" json:"admins,omitempty"`
}

type SubCategory struct {
	Base
	Name       string    `gorm:"not null" json:"name" validate:"required,min=2"`
	CategoryID string    `gorm:"type:uuid;not null;index" json:"categoryId" validate:"required,uuid"`
	Category   *Category `json:"category,omitempty"`
	Admins     []string  `gorm:"-" json:"admins,omitempty"`
}

type Group struct {
	Base
	Name          string       `gorm:"not null" json:"name" validate:"required,min=2"`
	CategoryID    string       `gorm:"type:uuid;not null;index" json:"categoryId" validate:"required,uuid"`
	Category      *Category    `json:"category,omitempty"`
	SubCategoryID string       `gorm:"type:uuid;not null;index" json:"subCategoryId" validate:"required,uuid"`
	SubCategory   *SubCategory `json:"subCategory,omitempty"`
	Admins        []string     `gorm:"-" json:"admins,omitempty"`
}

type Item struct {
	Base
	Name               string       `gorm:"not null" json:"name" validate:"required,min=2"`
	Serial             string       `gorm:"uniqueIndex" json:"serial"`
	Description        string       `json:"description"`
	CategoryID         string       `gorm:"type:uuid;not null;index" json:"categoryId" validate:"required,uuid"`
	Category           *Category    `json:"category,omitempty"`
	SubCategoryID      string       `gorm:"type:uuid;index" json:"subCategoryId" validate:"omitempty,uuid"`
	SubCategory        *SubCategory `json:"subCategory,omitempty"`
	GroupID            string       `gorm:"type:uuid;index" json:"groupId" validate:"omitempty,uuid"`
	Group              *Group       `json:"group,omitempty"`
	AssignedToSocialID string       `gorm:"index" json:"assignedToSocialId"`
	ImagePath          string       `json:"imagePath"`
	SignedImageURL     string       `gorm:"-" json:"signedImageUrl,omitempty"` // Virtual field
	Admins             []string     `gorm:"-" json:"admins,omitempty"`
}

func (i *Item) AfterFind(tx *gorm.DB) error {
	if i.ImagePath == "" {
		return nil
	}

	registryMu.RLock()
	generator := urlGenerator
	registryMu.RUnlock()

	if generator != nil {
		url, err := generator.GetSignedURL(tx.Statement.Context, i.ImagePath, time.Hour)
		if err != nil {
			return fmt.Errorf("failed to generate signed URL: %w", err)
		}
		i.SignedImageURL = url
	}
	return nil
}

type Policy struct {
	Base
	Title  string   `gorm:"not null" json:"title" validate:"required,min=2"`
	Body   string   `json:"body"`
	Admins []string `gorm:"-" json:"admins,omitempty"`
}

type SLA struct {
	Base
	Title   string   `gorm:"not null" json:"title" validate:"required,min=2"`
	Body    string   `json:"body"`
	DueDays int      `gorm:"not null;default:7" json:"dueDays" validate:"min=1"`
	Admins  []string `gorm:"-" json:"admins,omitempty"`
}

type FaultReport struct {
	Base
	ItemID             string         `gorm:"type:uuid;not null;index" json:"itemId" validate:"required,uuid"`
	Item               *Item          `json:"item,omitempty"`
	ReportedBySocialID string         `gorm:"not null;index" json:"reportedBySocialId" validate:"required"`
	Description        string         `gorm:"not null" json:"description" validate:"required"`
	Status             FaultStatus    `gorm:"not null;default:'OPEN'" json:"status"`
	AttachmentPath     string         `json:"attachmentPath"`
	Metadata           datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (f *FaultReport) AfterCreate(tx *gorm.DB) error {
	events.Emit("fault_report.created", f)
	return nil
}
