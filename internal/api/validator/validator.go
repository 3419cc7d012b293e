package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"assetflow/internal/models"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Register custom validation tags
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	err := v.RegisterValidation("entity_type", validateEntityType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("transfer_status", validateTransferStatus)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("approval_action", validateApprovalAction)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("handover_status", validateHandoverStatus)
	if err != nil {
		return nil
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validateEntityType(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidEntityType(models.EntityType(fl.Field().String()))
}

func validateTransferStatus(fl playgroundvalidator.FieldLevel) bool {
	status := models.TransferStatus(fl.Field().String())
	switch status {
	case models.TransferStatusPending, models.TransferStatusInReview,
		models.TransferStatusApproved, models.TransferStatusRejected,
		models.TransferStatusCompleted:
		return true
	default:
		return false
	}
}

func validateApprovalAction(fl playgroundvalidator.FieldLevel) bool {
	action := models.ApprovalStatus(fl.Field().String())
	return action == models.ApprovalStatusApproved || action == models.ApprovalStatusRejected
}

func validateHandoverStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidHandoverStatus(models.HandoverStatus(fl.Field().String()))
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// TransferRequestBody Request validation structs based on models
type TransferRequestBody struct {
	ItemID       string `json:"itemId" validate:"required,uuid"`
	FromSocialID string `json:"fromSocialId" validate:"required"`
	ToSocialID   string `json:"toSocialId" validate:"required"`
}

type ApprovalActionRequest struct {
	Action  string `json:"action" validate:"required,approval_action"`
	Comment string `json:"comment"`
}

type HandoverRequest struct {
	ItemID            string `json:"itemId" validate:"required,uuid"`
	TransferRequestID string `json:"transferRequestId" validate:"required,uuid"`
	FromSocialID      string `json:"fromSocialId" validate:"required"`
	ToSocialID        string `json:"toSocialId" validate:"required"`
	Notes             string `json:"notes"`
}

type HandoverUpdateRequest struct {
	Notes  *string `json:"notes"`
	Status *string `json:"status" validate:"omitempty,handover_status"`
}

type RoleAssignmentRequest struct {
	AssignedToSocialID string `json:"assignedToSocialId" validate:"required"`
	RoleID             string `json:"roleId" validate:"required,uuid"`
	EntityID           string `json:"entityId" validate:"omitempty,uuid"`
}

type LoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}
