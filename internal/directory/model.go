package directory

import (
	"time"

	"github.com/lib/pq"
)

// Business is a directory listing. Only the fields the dispatcher needs
// are modeled here; the full profile lives in the main application.
type Business struct {
	ID           uint64 `gorm:"primaryKey"`
	Name         string `gorm:"type:text;not null"`
	ContactEmail string `gorm:"type:text;not null;default:''"`
	Locale       string `gorm:"type:text;not null;default:''"`

	Categories pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

type Customer struct {
	ID     uint64 `gorm:"primaryKey"`
	Name   string `gorm:"type:text;not null"`
	Email  string `gorm:"type:text;not null;default:''"`
	Locale string `gorm:"type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
