package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/directory"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/mailer"
)

// errTargetNotFound is recorded when the conversation a job references
// no longer exists. Terminal: retrying cannot make it reappear.
const errTargetNotFound = "target_not_found"

const (
	defaultStaleAfter       = 10 * time.Minute
	defaultResendInterval   = 30 * time.Minute
	defaultTransientBackoff = 5 * time.Minute
	defaultBatchLimit       = 50
	defaultStaleLimit       = 50
	defaultLocale           = "en"
)

// ConversationStore is the dispatcher's view of the chat subsystem.
type ConversationStore interface {
	UnreadCount(ctx context.Context, conversationID uint64, role chat.Role) (int64, error)
	MarkReminded(ctx context.Context, conversationID uint64, at time.Time) error
}

// RecipientDirectory resolves contact address and locale for a recipient.
type RecipientDirectory interface {
	Resolve(ctx context.Context, role chat.Role, recipientID uint64) (directory.Contact, error)
}

// Dispatcher runs one processing pass per invocation: recovery sweep,
// due-job selection, then per-job claim / cancellation check / delivery.
// Cross-instance safety comes entirely from the store's atomic TryClaim;
// the dispatcher holds no locks of its own.
type Dispatcher struct {
	Store         Store
	Conversations ConversationStore
	Directory     RecipientDirectory
	Sender        mailer.Sender
	Log           *slog.Logger

	// Zero values fall back to the design defaults.
	StaleAfter       time.Duration
	ResendInterval   time.Duration
	TransientBackoff time.Duration
	BatchLimit       int
	StaleLimit       int
	DefaultLocale    string
}

// PassSummary is the only externally observable output of a pass.
type PassSummary struct {
	Recovered   int `json:"recovered"`
	Processed   int `json:"processed"`
	Skipped     int `json:"skipped"`
	Sent        int `json:"sent"`
	Rescheduled int `json:"rescheduled"`
	Completed   int `json:"completed"`
	Cancelled   int `json:"cancelled"`
	Failed      int `json:"failed"`
	Errors      int `json:"errors"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeResent
	outcomeRescheduled
	outcomeCompleted
	outcomeCancelled
	outcomeFailed
	outcomeError
)

// RunPass executes one dispatch pass. Only a job-store infrastructure
// failure aborts the pass; per-job errors are recorded on the job and
// never stop the rest of the batch.
func (d *Dispatcher) RunPass(ctx context.Context, now time.Time) (PassSummary, error) {
	var sum PassSummary

	stale, err := d.Store.FetchStale(ctx, now.Add(-d.staleAfter()), d.staleLimit())
	if err != nil {
		return sum, fmt.Errorf("fetch stale jobs: %w", err)
	}
	for _, j := range stale {
		if err := d.Store.Release(ctx, j.ID); err != nil {
			sum.Errors++
			d.log().Warn("release stale job", "job_id", j.ID, "error", err)
			continue
		}
		sum.Recovered++
	}

	due, err := d.Store.FetchDue(ctx, now, d.batchLimit())
	if err != nil {
		return sum, fmt.Errorf("fetch due jobs: %w", err)
	}

	for _, j := range due {
		switch d.process(ctx, j, now) {
		case outcomeSkipped:
			sum.Skipped++
			continue
		case outcomeResent:
			sum.Sent++
			sum.Rescheduled++
		case outcomeRescheduled:
			sum.Rescheduled++
		case outcomeCompleted:
			sum.Sent++
			sum.Completed++
		case outcomeCancelled:
			sum.Cancelled++
		case outcomeFailed:
			sum.Failed++
		case outcomeError:
			sum.Errors++
		}
		sum.Processed++
	}

	d.log().Info("chat-retries pass",
		"recovered", sum.Recovered,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"sent", sum.Sent,
		"rescheduled", sum.Rescheduled,
		"completed", sum.Completed,
		"cancelled", sum.Cancelled,
		"failed", sum.Failed,
		"errors", sum.Errors,
	)
	return sum, nil
}

func (d *Dispatcher) process(ctx context.Context, candidate ReminderJob, now time.Time) outcome {
	job, err := d.Store.TryClaim(ctx, candidate.ID, now)
	if err != nil {
		if errors.Is(err, ErrClaimConflict) || errors.Is(err, ErrNotFound) {
			// Another pass won the claim or the job just went terminal.
			return outcomeSkipped
		}
		d.log().Warn("claim job", "job_id", candidate.ID, "error", err)
		return outcomeError
	}

	if !job.RecipientRole.Valid() {
		return d.fail(ctx, job, fmt.Sprintf("unknown recipient role %q", job.RecipientRole))
	}

	// Missing profile is tolerated: fall back to the default locale and
	// let delivery report the missing address.
	contact, err := d.Directory.Resolve(ctx, job.RecipientRole, job.RecipientID)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return d.rescheduleTransient(ctx, job, now, fmt.Errorf("resolve recipient: %w", err))
	}
	locale := contact.Locale
	if locale == "" {
		locale = d.defaultLocale()
	}

	unread, err := d.Conversations.UnreadCount(ctx, job.ConversationID, job.RecipientRole)
	if errors.Is(err, chat.ErrNotFound) {
		return d.fail(ctx, job, errTargetNotFound)
	}
	if err != nil {
		return d.rescheduleTransient(ctx, job, now, fmt.Errorf("unread lookup: %w", err))
	}
	if unread == 0 {
		// The recipient already saw the message; a reminder would be
		// spurious.
		if err := d.Store.Cancel(ctx, job.ID); err != nil {
			d.log().Warn("cancel job", "job_id", job.ID, "error", err)
			return outcomeError
		}
		return outcomeCancelled
	}

	var p Payload
	_ = json.Unmarshal(job.Payload, &p)

	subject, body, err := mailer.RenderReminder(locale, mailer.ReminderData{
		RecipientName: contact.Name,
		SenderName:    p.SenderName,
		Preview:       p.Preview,
		MessageCount:  p.MessageCount,
	})
	if err != nil {
		return d.fail(ctx, job, err.Error())
	}

	if err := d.Sender.Send(ctx, mailer.Message{To: contact.Email, Subject: subject, Body: body}); err != nil {
		if mailer.Classify(err) == mailer.CategoryFatal {
			return d.fail(ctx, job, err.Error())
		}
		// Transient failures retry the delivery, not the resend cadence:
		// they reschedule regardless of the attempt ceiling.
		return d.rescheduleTransient(ctx, job, now, err)
	}

	// Best-effort metadata; never affects the job's state.
	if err := d.Conversations.MarkReminded(ctx, job.ConversationID, now); err != nil {
		d.log().Warn("mark reminded", "conversation_id", job.ConversationID, "error", err)
	}

	if job.Attempts+1 >= job.MaxAttempts {
		if err := d.Store.Complete(ctx, job.ID); err != nil {
			d.log().Warn("complete job", "job_id", job.ID, "error", err)
			return outcomeError
		}
		return outcomeCompleted
	}

	// Resend cadence: remind again later while the message stays unread.
	if err := d.Store.Reschedule(ctx, job.ID, now.Add(d.resendInterval()), nil); err != nil {
		d.log().Warn("reschedule job", "job_id", job.ID, "error", err)
		return outcomeError
	}
	return outcomeResent
}

func (d *Dispatcher) fail(ctx context.Context, job *ReminderJob, reason string) outcome {
	if err := d.Store.Fail(ctx, job.ID, reason); err != nil {
		d.log().Warn("fail job", "job_id", job.ID, "error", err)
		return outcomeError
	}
	return outcomeFailed
}

func (d *Dispatcher) rescheduleTransient(ctx context.Context, job *ReminderJob, now time.Time, cause error) outcome {
	msg := cause.Error()
	if err := d.Store.Reschedule(ctx, job.ID, now.Add(d.transientBackoff()), &msg); err != nil {
		d.log().Warn("reschedule job", "job_id", job.ID, "error", err)
		return outcomeError
	}
	d.log().Warn("transient failure", "job_id", job.ID, "error", cause)
	return outcomeRescheduled
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func (d *Dispatcher) staleAfter() time.Duration {
	if d.StaleAfter > 0 {
		return d.StaleAfter
	}
	return defaultStaleAfter
}

func (d *Dispatcher) resendInterval() time.Duration {
	if d.ResendInterval > 0 {
		return d.ResendInterval
	}
	return defaultResendInterval
}

func (d *Dispatcher) transientBackoff() time.Duration {
	if d.TransientBackoff > 0 {
		return d.TransientBackoff
	}
	return defaultTransientBackoff
}

func (d *Dispatcher) batchLimit() int {
	if d.BatchLimit > 0 {
		return d.BatchLimit
	}
	return defaultBatchLimit
}

func (d *Dispatcher) staleLimit() int {
	if d.StaleLimit > 0 {
		return d.StaleLimit
	}
	return defaultStaleLimit
}

func (d *Dispatcher) defaultLocale() string {
	if d.DefaultLocale != "" {
		return d.DefaultLocale
	}
	return defaultLocale
}
