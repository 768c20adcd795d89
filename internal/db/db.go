package db

import (
	"fmt"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/directory"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/jobs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&chat.Conversation{},
		&directory.Business{},
		&directory.Customer{},
		&jobs.ReminderJob{},
	); err != nil {
		return err
	}

	// Category filter on the directory (GIN for text[])
	if err := gdb.Exec(`create index if not exists idx_businesses_categories on businesses using gin (categories);`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_reminder_jobs_due on reminder_jobs(status, scheduled_for);`,
		`create index if not exists idx_reminder_jobs_claim on reminder_jobs(status, claimed_at);`,
		`create index if not exists idx_conversations_pair on conversations(business_id, customer_id);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
