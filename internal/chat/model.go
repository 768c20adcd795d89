package chat

import "time"

// Role identifies which side of a conversation a participant is on.
// It selects the unread counter to consult and the profile store to
// resolve contact details from.
type Role string

const (
	RoleBusiness Role = "business"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleBusiness || r == RoleCustomer
}

// Conversation is the read model the dispatcher consults. Messages
// themselves live in the chat subsystem; the dispatcher only needs the
// per-role unread counters and existence.
type Conversation struct {
	ID         uint64 `gorm:"primaryKey"`
	BusinessID uint64 `gorm:"index;not null"`
	CustomerID uint64 `gorm:"index;not null"`

	BusinessUnread int64 `gorm:"not null;default:0"`
	CustomerUnread int64 `gorm:"not null;default:0"`

	LastMessageAt time.Time `gorm:"not null;default:now()"`

	// LastReminderAt is best-effort metadata: updating it may fail
	// without affecting the reminder job's state.
	LastReminderAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
