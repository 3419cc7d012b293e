package controllers

import (
	"net/http"

	"assetflow/internal/api/middleware"
	"assetflow/internal/api/validator"
	"assetflow/internal/db"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var transferLog = logger.New("transfer_controller")

// TransferController exposes the custody transfer workflow: raising a
// transfer request, walking its approval chain, and reading the trail.
type TransferController struct {
	approvals *services.ApprovalService
}

func NewTransferController(approvals *services.ApprovalService) *TransferController {
	return &TransferController{approvals: approvals}
}

// Create registers a transfer request for an item and initializes its
// approval chain from the item's admin hierarchy. Create and chain build are
// one unit: a request that cannot get a chain is not persisted.
func (c *TransferController) Create(ctx echo.Context) error {
	var body validator.TransferRequestBody
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	transfer, err := c.approvals.Open(ctx.Request().Context(),
		body.ItemID, body.FromSocialID, body.ToSocialID, middleware.GetSocialID(ctx))
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusCreated, transfer)
}

// Act applies the caller's approve or reject decision to the transfer's
// current pending step.
func (c *TransferController) Act(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	var body validator.ApprovalActionRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	outcome, err := c.approvals.ActOn(ctx.Request().Context(), id,
		middleware.GetSocialID(ctx), models.ApprovalStatus(body.Action), body.Comment)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, outcome)
}

// Trail returns the full approval chain of a transfer, ordered by level.
func (c *TransferController) Trail(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	approvals, err := c.approvals.GetTrail(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, approvals)
}

// Get returns a single transfer with its approval chain.
func (c *TransferController) Get(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	var transfer models.TransferRequest
	query := db.DB.Preload("Approvals").Preload("Item").
		Where("id = ? AND is_deleted = false", id)
	if err := query.First(&transfer).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer request not found")
	}

	return ctx.JSON(http.StatusOK, transfer)
}

// List returns the transfers visible to the caller. Unrestricted callers see
// everything, everyone else sees transfers they raised, sent, or received.
func (c *TransferController) List(ctx echo.Context) error {
	query := db.DB.Preload("Approvals").Where("is_deleted = false")

	if !middleware.IsUnrestricted(ctx) {
		socialID := middleware.GetSocialID(ctx)
		query = query.Where(
			"from_social_id = ? OR to_social_id = ? OR created_by_social_id = ?",
			socialID, socialID, socialID)
	}
	if status := ctx.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var transfers []models.TransferRequest
	if err := query.Order("created_at DESC").Find(&transfers).Error; err != nil {
		transferLog.Error("Failed to list transfer requests: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list transfer requests")
	}

	return ctx.JSON(http.StatusOK, transfers)
}

// RegisterRoutes mounts the transfer workflow under the given group.
func (c *TransferController) RegisterRoutes(g *echo.Group) {
	g.POST("/transfers", c.Create)
	g.GET("/transfers", c.List)
	g.GET("/transfers/:id", c.Get)
	g.GET("/transfers/:id/approvals", c.Trail)
	g.PUT("/transfers/:id/approvals", c.Act)
}
