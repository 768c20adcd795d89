package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("chat: conversation not found")

type Store struct {
	DB *gorm.DB
}

// UnreadCount returns the live unread counter for the given role on a
// conversation. Returns ErrNotFound when the conversation is gone.
func (s *Store) UnreadCount(ctx context.Context, conversationID uint64, role Role) (int64, error) {
	var conv Conversation
	err := s.DB.WithContext(ctx).First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	switch role {
	case RoleBusiness:
		return conv.BusinessUnread, nil
	case RoleCustomer:
		return conv.CustomerUnread, nil
	default:
		return 0, fmt.Errorf("chat: unknown role %q", role)
	}
}

// MarkReminded records when a reminder was last sent for a conversation.
func (s *Store) MarkReminded(ctx context.Context, conversationID uint64, at time.Time) error {
	return s.DB.WithContext(ctx).
		Exec(`update conversations set last_reminder_at=?, updated_at=now() where id=?`, at, conversationID).
		Error
}
