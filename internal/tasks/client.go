package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"assetflow/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskClient handles task enqueuing with improved error handling and context support
type TaskClient struct {
	client       *asynq.Client
	logger       *logger.Logger
	redisOptions *redis.Options
	redisClient  *redis.Client
}

type RateLimiter struct {
	Rate   int
	Burst  int
	Period time.Duration
}

func (c *TaskClient) GetClient() *asynq.Client {
	return c.client
}

func (c *TaskClient) GetRedisClient() *redis.Client {
	return c.redisClient
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(
		&redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
	)

	return &TaskClient{
		client: asynq.NewClient(redisOpt),
		redisOptions: &redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueIdentitySync queues one directory sync run. With a non-empty cron
// expression the run is deferred to the expression's next firing time.
func (c *TaskClient) EnqueueIdentitySync(schedule string) error {
	opts := []asynq.Option{
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutLong),
	}
	if schedule != "" {
		opts = append(opts, CronSchedule(schedule))
	}

	task := asynq.NewTask(TaskTypeIdentitySync, nil)
	if _, err := c.client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue identity sync: %w", err)
	}

	c.logger.Info("enqueued identity sync")
	return nil
}

// EnqueueApprovalNotification queues a "your decision is due" notice for the
// approver now holding the pending step.
func (c *TaskClient) EnqueueApprovalNotification(payload ApprovalNotificationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal approval notification: %w", err)
	}

	task := asynq.NewTask(TaskTypeNotifyApproval, data)
	if _, err := c.client.Enqueue(task,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryMax),
		asynq.Timeout(TimeoutShort),
	); err != nil {
		return fmt.Errorf("failed to enqueue approval notification: %w", err)
	}

	c.logger.Info("enqueued approval notification for %s level %d", payload.ApproverSocialID, payload.Level)
	return nil
}

// EnqueueHandoverNotification queues the acknowledgment request sent to a
// handover's receiver.
func (c *TaskClient) EnqueueHandoverNotification(payload HandoverNotificationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal handover notification: %w", err)
	}

	task := asynq.NewTask(TaskTypeNotifyHandover, data)
	if _, err := c.client.Enqueue(task,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryMax),
		asynq.Timeout(TimeoutShort),
	); err != nil {
		return fmt.Errorf("failed to enqueue handover notification: %w", err)
	}

	c.logger.Info("enqueued handover notification for %s", payload.ReceiverSocialID)
	return nil
}

// GetNotificationQueueName scopes a notification queue to one recipient
func GetNotificationQueueName(socialID string) string {
	return fmt.Sprintf("notify:user:%s", socialID)
}
