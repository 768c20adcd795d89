package jobs

import (
	"time"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Terminal statuses are never claimed or mutated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// ReminderJob is one unit of deferred "remind this recipient" work,
// created by the chat subsystem when a message goes unacknowledged.
type ReminderJob struct {
	ID string `gorm:"type:uuid;primaryKey"`

	ConversationID uint64    `gorm:"index;not null"`
	RecipientRole  chat.Role `gorm:"type:text;not null"`
	RecipientID    uint64    `gorm:"not null"`

	Payload []byte `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	ScheduledFor time.Time  `gorm:"index;not null"`
	Status       Status     `gorm:"type:text;index;not null;default:'PENDING'"`
	ClaimedAt    *time.Time `gorm:"type:timestamptz"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:3"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (ReminderJob) TableName() string { return "reminder_jobs" }

// Payload is the rendering snapshot captured when the job was scheduled.
type Payload struct {
	SenderName   string `json:"sender_name"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
}
