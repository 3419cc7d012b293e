package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"assetflow/internal/config"
	"assetflow/internal/models"
	"assetflow/internal/tasks/rate"
	"assetflow/internal/utils"
	"assetflow/internal/utils/crypto"
	"assetflow/internal/utils/logger"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

var (
	cfg, _ = config.Load()
)

// Mailer delivers workflow notifications. The default implementation only
// logs; deployments plug in a real transport.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type logMailer struct {
	log *logger.Logger
}

func (m *logMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info("mail to=%s subject=%q", to, subject)
	return nil
}

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	db          *gorm.DB
	logger      *logger.Logger
	taskClient  *TaskClient
	mailer      Mailer
	notifyLimit *rate.QueueRateLimiter
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(db *gorm.DB, mailer Mailer) *TaskHandler {
	log := logger.New("task_handler")
	if mailer == nil {
		mailer = &logMailer{log: log}
	}

	taskClient := NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)

	return &TaskHandler{
		db:         db,
		logger:     log,
		taskClient: taskClient,
		mailer:     mailer,
		notifyLimit: rate.NewQueueRateLimiter(taskClient.GetRedisClient(), rate.QueueConfig{
			Name: "notifications",
			RateLimit: rate.RateLimit{
				Window:  time.Minute,
				MaxJobs: 10,
			},
		}),
	}
}

// HandleIdentitySync mirrors the identity provider's directory into
// app_users. Users absent from the directory are deactivated, not deleted.
func (h *TaskHandler) HandleIdentitySync(ctx context.Context, _ *asynq.Task) error {
	if cfg.Identity.BaseURL == "" {
		h.logger.Warn("identity sync skipped: no provider configured")
		return nil
	}

	identities, err := utils.ListIdentityUsers(cfg.Identity.BaseURL, cfg.Identity.APIKey)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	seen := make(map[string]bool, len(identities))
	var created, updated int
	for _, identity := range identities {
		seen[identity.SocialID] = true

		var user models.AppUser
		err := h.db.WithContext(ctx).Where("social_id = ?", identity.SocialID).First(&user).Error
		if err == gorm.ErrRecordNotFound {
			providerData, _ := utils.MapToJSON(map[string]string{
				"socialId": identity.SocialID,
				"email":    identity.Email,
				"name":     identity.Name,
			})
			user = models.AppUser{
				SocialID:     identity.SocialID,
				Email:        identity.Email,
				Name:         identity.Name,
				IsActive:     identity.IsActive,
				ProviderData: providerData,
			}
			if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user %s: %w", identity.SocialID, err)
			}
			created++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", identity.SocialID, err)
		}

		if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"email":     identity.Email,
			"name":      identity.Name,
			"is_active": identity.IsActive,
		}).Error; err != nil {
			return fmt.Errorf("failed to update user %s: %w", identity.SocialID, err)
		}
		updated++
	}

	// Anyone the directory no longer knows loses access on their next request
	var stale []models.AppUser
	if err := h.db.WithContext(ctx).Where("is_active = ? AND is_deleted = false", true).Find(&stale).Error; err != nil {
		return fmt.Errorf("failed to list local users: %w", err)
	}
	var deactivated int
	for _, user := range stale {
		if seen[user.SocialID] {
			continue
		}
		if err := h.db.WithContext(ctx).Model(&user).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate user %s: %w", user.SocialID, err)
		}
		deactivated++
	}

	h.logger.Success("Identity sync done: %d created, %d updated, %d deactivated", created, updated, deactivated)
	return nil
}

// HandleNotifyApproval emails the approver now holding the pending step.
func (h *TaskHandler) HandleNotifyApproval(ctx context.Context, t *asynq.Task) error {
	var payload ApprovalNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal approval notification: %w", err)
	}

	allowed, err := h.notifyLimit.Allow(ctx, payload.ApproverSocialID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("notification rate limit hit for %s", payload.ApproverSocialID)
	}

	var approver models.AppUser
	if err := h.db.WithContext(ctx).Where("social_id = ?", payload.ApproverSocialID).First(&approver).Error; err != nil {
		h.logger.Warn("approver %s not mirrored locally, skipping notice", payload.ApproverSocialID)
		return nil
	}

	var transfer models.TransferRequest
	if err := h.db.WithContext(ctx).Preload("Item").
		Where("id = ?", payload.TransferRequestID).First(&transfer).Error; err != nil {
		return fmt.Errorf("failed to load transfer %s: %w", payload.TransferRequestID, err)
	}

	itemName := transfer.ItemID
	if transfer.Item != nil {
		itemName = transfer.Item.Name
	}
	subject := fmt.Sprintf("Transfer approval needed: %s", itemName)
	body := fmt.Sprintf("A custody transfer of %q (from %s to %s) is waiting for your decision at level %d.",
		itemName, transfer.FromSocialID, transfer.ToSocialID, payload.Level)

	return h.mailer.Send(ctx, approver.Email, subject, body)
}

// HandleNotifyHandover emails the receiver an acknowledgment deep link. The
// link carries a signed token binding the handover to the receiver, so the
// acknowledgment works without a session.
func (h *TaskHandler) HandleNotifyHandover(ctx context.Context, t *asynq.Task) error {
	var payload HandoverNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal handover notification: %w", err)
	}

	allowed, err := h.notifyLimit.Allow(ctx, payload.ReceiverSocialID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("notification rate limit hit for %s", payload.ReceiverSocialID)
	}

	var receiver models.AppUser
	if err := h.db.WithContext(ctx).Where("social_id = ?", payload.ReceiverSocialID).First(&receiver).Error; err != nil {
		h.logger.Warn("receiver %s not mirrored locally, skipping notice", payload.ReceiverSocialID)
		return nil
	}

	var handover models.Handover
	if err := h.db.WithContext(ctx).Preload("Item").
		Where("id = ?", payload.HandoverID).First(&handover).Error; err != nil {
		return fmt.Errorf("failed to load handover %s: %w", payload.HandoverID, err)
	}

	ackToken, err := crypto.SignAckToken(handover.ID, payload.ReceiverSocialID)
	if err != nil {
		return fmt.Errorf("failed to sign acknowledgment token: %w", err)
	}
	link := fmt.Sprintf("%s/api/v1/handovers/acknowledge?token=%s", cfg.Server.PublicURL, ackToken)

	itemName := handover.ItemID
	if handover.Item != nil {
		itemName = handover.Item.Name
	}
	subject := fmt.Sprintf("Confirm receipt of %s", itemName)
	body := fmt.Sprintf("You are receiving %q from %s. Confirm the handover here: %s",
		itemName, handover.FromSocialID, link)

	return h.mailer.Send(ctx, receiver.Email, subject, body)
}
