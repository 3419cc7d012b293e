package handlers

import (
	"crypto/hmac"
	"io"
	"net/http"

	"assetflow/internal/config"
	"assetflow/internal/utils/crypto"
	"assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// SyncEnqueuer queues an identity directory sync run.
type SyncEnqueuer interface {
	EnqueueIdentitySync(schedule string) error
}

type WebhookHandler struct {
	cfg     *config.Config
	enqueue SyncEnqueuer
	log     *logger.Logger
}

func NewWebhookHandler(cfg *config.Config, enqueue SyncEnqueuer) *WebhookHandler {
	return &WebhookHandler{
		cfg:     cfg,
		enqueue: enqueue,
		log:     logger.New("webhook_handler"),
	}
}

// HandleIdentityWebhook lets the identity provider push directory changes
// instead of waiting for the scheduled sync. The body is HMAC-signed with the
// shared webhook secret.
// @Summary Identity provider webhook
// @Description Verifies the webhook signature and queues a directory sync
// @Accept json
// @Produce json
// @Success 202 {object} map[string]string
// @Router /webhooks/identity [post]
func (h *WebhookHandler) HandleIdentityWebhook(c echo.Context) error {
	secret := h.cfg.Identity.WebhookSecret
	if secret == "" {
		return echo.NewHTTPError(http.StatusNotFound, "webhook not configured")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	signature := c.Request().Header.Get("X-Webhook-Signature")
	expected := crypto.ComputeWebhookSignature(body, secret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		h.log.Warn("Rejected identity webhook with bad signature from %s", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	if err := h.enqueue.EnqueueIdentitySync(""); err != nil {
		h.log.Error("Failed to enqueue identity sync: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to queue sync")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "sync queued"})
}
