package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
)

// Repo is the Postgres job store.
type Repo struct {
	DB *gorm.DB
}

// Enqueue creates a new PENDING reminder job. Called by the chat
// subsystem when a message stays unacknowledged past the grace window.
func (r *Repo) Enqueue(ctx context.Context, conversationID uint64, role chat.Role, recipientID uint64, p Payload, runAt time.Time, maxAttempts int) (*ReminderJob, error) {
	payload, _ := json.Marshal(p)
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	j := &ReminderJob{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		RecipientRole:  role,
		RecipientID:    recipientID,
		Payload:        payload,
		ScheduledFor:   runAt,
		Status:         StatusPending,
		MaxAttempts:    maxAttempts,
	}
	if err := r.DB.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*ReminderJob, error) {
	var j ReminderJob
	err := r.DB.WithContext(ctx).First(&j, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// List returns jobs for operator inspection, newest first.
func (r *Repo) List(ctx context.Context, status Status, limit int) ([]ReminderJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Order("created_at desc").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []ReminderJob
	return out, q.Find(&out).Error
}

func (r *Repo) FetchDue(ctx context.Context, now time.Time, limit int) ([]ReminderJob, error) {
	var out []ReminderJob
	err := r.DB.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", StatusPending, now).
		Order("scheduled_for asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *Repo) FetchStale(ctx context.Context, cutoff time.Time, limit int) ([]ReminderJob, error) {
	var out []ReminderJob
	err := r.DB.WithContext(ctx).
		Where("status = ? AND claimed_at is not null AND claimed_at <= ?", StatusClaimed, cutoff).
		Order("claimed_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TryClaim is a single conditional update: it succeeds only if the job
// is still PENDING at the moment of the write, so no two passes can
// claim the same job.
func (r *Repo) TryClaim(ctx context.Context, id string, now time.Time) (*ReminderJob, error) {
	res := r.DB.WithContext(ctx).Exec(`
update reminder_jobs
set status=?, claimed_at=?, updated_at=now()
where id=? and status=?`, StatusClaimed, now, id, StatusPending)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrClaimConflict
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) Release(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Exec(`
update reminder_jobs
set status=?, claimed_at=null, updated_at=now()
where id=? and status=?`, StatusPending, id, StatusClaimed).Error
}

func (r *Repo) Reschedule(ctx context.Context, id string, next time.Time, lastErr *string) error {
	return r.DB.WithContext(ctx).Exec(`
update reminder_jobs
set status=?, attempts=attempts+1, scheduled_for=?, claimed_at=null, last_error=?, updated_at=now()
where id=? and status=?`, StatusPending, next, lastErr, id, StatusClaimed).Error
}

func (r *Repo) Complete(ctx context.Context, id string) error {
	return r.terminal(ctx, id, StatusCompleted, nil)
}

func (r *Repo) Cancel(ctx context.Context, id string) error {
	return r.terminal(ctx, id, StatusCancelled, nil)
}

func (r *Repo) Fail(ctx context.Context, id string, lastErr string) error {
	return r.terminal(ctx, id, StatusFailed, &lastErr)
}

func (r *Repo) terminal(ctx context.Context, id string, to Status, lastErr *string) error {
	q := `
update reminder_jobs
set status=?, updated_at=now()
where id=? and status=?`
	if lastErr != nil {
		q = `
update reminder_jobs
set status=?, last_error=?, updated_at=now()
where id=? and status=?`
		return r.DB.WithContext(ctx).Exec(q, to, *lastErr, id, StatusClaimed).Error
	}
	return r.DB.WithContext(ctx).Exec(q, to, id, StatusClaimed).Error
}
