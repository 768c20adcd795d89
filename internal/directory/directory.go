package directory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
)

var ErrNotFound = errors.New("directory: profile not found")

// Contact is the delivery-relevant slice of a profile.
type Contact struct {
	Name   string
	Email  string
	Locale string
}

type Store struct {
	DB *gorm.DB
}

// Resolve looks up contact address and locale for a recipient. The role
// decides which profile table to consult.
func (s *Store) Resolve(ctx context.Context, role chat.Role, recipientID uint64) (Contact, error) {
	switch role {
	case chat.RoleBusiness:
		var b Business
		if err := s.DB.WithContext(ctx).First(&b, "id = ?", recipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Contact{}, ErrNotFound
			}
			return Contact{}, err
		}
		return Contact{Name: b.Name, Email: b.ContactEmail, Locale: b.Locale}, nil

	case chat.RoleCustomer:
		var c Customer
		if err := s.DB.WithContext(ctx).First(&c, "id = ?", recipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Contact{}, ErrNotFound
			}
			return Contact{}, err
		}
		return Contact{Name: c.Name, Email: c.Email, Locale: c.Locale}, nil

	default:
		return Contact{}, fmt.Errorf("directory: unknown role %q", role)
	}
}
