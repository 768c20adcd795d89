package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClaimConflict means another pass owned or terminated the job
	// between selection and claim. Expected under concurrent passes,
	// not an error condition.
	ErrClaimConflict = errors.New("jobs: claim conflict")

	ErrNotFound = errors.New("jobs: job not found")
)

// Store is the dispatcher's contract with the job store. TryClaim is
// the only operation that needs atomicity; every other transition is an
// unconditional write performed by the exclusive holder of CLAIMED.
type Store interface {
	// FetchDue returns up to limit PENDING jobs with ScheduledFor <= now.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]ReminderJob, error)

	// FetchStale returns up to limit CLAIMED jobs with ClaimedAt <= cutoff.
	FetchStale(ctx context.Context, cutoff time.Time, limit int) ([]ReminderJob, error)

	// TryClaim atomically moves a job from PENDING to CLAIMED, stamping
	// ClaimedAt. Returns ErrClaimConflict when the job is no longer
	// PENDING at the moment of the update.
	TryClaim(ctx context.Context, id string, now time.Time) (*ReminderJob, error)

	// Release moves a CLAIMED job back to PENDING, clearing ClaimedAt.
	Release(ctx context.Context, id string) error

	// Reschedule moves a CLAIMED job back to PENDING, increments
	// Attempts, sets ScheduledFor and records lastErr (nil clears it).
	Reschedule(ctx context.Context, id string, next time.Time, lastErr *string) error

	Complete(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, lastErr string) error
}
