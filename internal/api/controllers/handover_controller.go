package controllers

import (
	"net/http"

	"assetflow/internal/api/middleware"
	"assetflow/internal/api/validator"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/utils/crypto"

	"github.com/labstack/echo/v4"
)

// HandoverController exposes the acknowledgment handshake that finalizes an
// approved transfer.
type HandoverController struct {
	handovers *services.HandoverService
}

func NewHandoverController(handovers *services.HandoverService) *HandoverController {
	return &HandoverController{handovers: handovers}
}

// Create opens a handover manually. The usual path is automatic, off the
// final approval of a transfer.
func (c *HandoverController) Create(ctx echo.Context) error {
	var body validator.HandoverRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	handover, err := c.handovers.Create(ctx.Request().Context(),
		body.ItemID, body.TransferRequestID, body.FromSocialID, body.ToSocialID, body.Notes)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusCreated, handover)
}

// Update is the administrative correction path for notes and status. Only
// callers unrestricted in the handover module may take it.
func (c *HandoverController) Update(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}
	if !middleware.IsUnrestricted(ctx) {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permission")
	}

	var body validator.HandoverUpdateRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	var status *models.HandoverStatus
	if body.Status != nil {
		s := models.HandoverStatus(*body.Status)
		status = &s
	}

	handover, err := c.handovers.Update(ctx.Request().Context(), id, body.Notes, status)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, handover)
}

// Acknowledge records the receiver's confirmation that the item physically
// changed hands. The caller's identity must be the handover's receiver.
func (c *HandoverController) Acknowledge(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	handover, err := c.handovers.Acknowledge(ctx.Request().Context(), id, middleware.GetSocialID(ctx))
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, handover)
}

// AcknowledgeByToken accepts a signed deep-link token from the notification
// email in place of a session. The token binds the handover to its receiver.
func (c *HandoverController) AcknowledgeByToken(ctx echo.Context) error {
	token := ctx.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing token parameter")
	}

	handoverID, receiverSocialID, err := crypto.VerifyAckToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid acknowledgment token")
	}

	handover, err := c.handovers.Acknowledge(ctx.Request().Context(), handoverID, receiverSocialID)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, handover)
}

// Get returns one handover with its item details.
func (c *HandoverController) Get(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	handover, err := c.handovers.Get(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, handover)
}

// List returns the handovers the caller is party to, or all of them for
// unrestricted callers.
func (c *HandoverController) List(ctx echo.Context) error {
	handovers, err := c.handovers.List(ctx.Request().Context(),
		middleware.GetSocialID(ctx), middleware.IsUnrestricted(ctx))
	if err != nil {
		return httpError(err)
	}

	return ctx.JSON(http.StatusOK, handovers)
}

// RegisterRoutes mounts the handover handshake under the given group.
func (c *HandoverController) RegisterRoutes(g *echo.Group) {
	g.POST("/handovers", c.Create)
	g.GET("/handovers", c.List)
	g.GET("/handovers/:id", c.Get)
	g.PUT("/handovers/:id", c.Update)
	g.PUT("/handovers/:id/acknowledge", c.Acknowledge)
}
