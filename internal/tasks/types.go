package tasks

import "time"

// Task Types
const (
	// Periodic mirror of the identity provider's user directory
	TaskTypeIdentitySync = "identity:sync"

	// Workflow notifications
	TaskTypeNotifyApproval = "notify:approval"
	TaskTypeNotifyHandover = "notify:handover"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks like workflow notifications
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like the identity sync
)

// Task Priorities (1-10, higher is more important)
const (
	PriorityCritical = 10
	PriorityHigh     = 8
	PriorityNormal   = 5
	PriorityLow      = 3
	PriorityBG       = 1
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// IdentitySyncPayload is empty; the sync always walks the full directory.
type IdentitySyncPayload struct{}

// ApprovalNotificationPayload tells an approver their decision is due.
type ApprovalNotificationPayload struct {
	TransferRequestID string `json:"transferRequestId"`
	ApproverSocialID  string `json:"approverSocialId"`
	Level             int    `json:"level"`
}

// HandoverNotificationPayload asks a receiver to acknowledge a handover.
type HandoverNotificationPayload struct {
	HandoverID       string `json:"handoverId"`
	ReceiverSocialID string `json:"receiverSocialId"`
}
