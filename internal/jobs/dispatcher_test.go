package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/directory"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/mailer"
)

type convState struct {
	unread int64
	gone   bool
	err    error
}

type fakeConversations struct {
	convs   map[uint64]convState
	marked  []uint64
	markErr error
}

func (f *fakeConversations) UnreadCount(ctx context.Context, id uint64, role chat.Role) (int64, error) {
	cs, ok := f.convs[id]
	if !ok || cs.gone {
		return 0, chat.ErrNotFound
	}
	if cs.err != nil {
		return 0, cs.err
	}
	return cs.unread, nil
}

func (f *fakeConversations) MarkReminded(ctx context.Context, id uint64, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

type fakeDirectory struct {
	contacts map[uint64]directory.Contact
	err      error
}

func (f *fakeDirectory) Resolve(ctx context.Context, role chat.Role, id uint64) (directory.Contact, error) {
	if f.err != nil {
		return directory.Contact{}, f.err
	}
	c, ok := f.contacts[id]
	if !ok {
		return directory.Contact{}, directory.ErrNotFound
	}
	return c, nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(store Store, convs *fakeConversations, dir *fakeDirectory, sender *fakeSender) *Dispatcher {
	return &Dispatcher{
		Store:            store,
		Conversations:    convs,
		Directory:        dir,
		Sender:           sender,
		Log:              quietLogger(),
		StaleAfter:       10 * time.Minute,
		ResendInterval:   30 * time.Minute,
		TransientBackoff: 5 * time.Minute,
	}
}

func seedJob(store *MemoryStore, id string, convID uint64, attempts, maxAttempts int, due time.Time) {
	store.Put(ReminderJob{
		ID:             id,
		ConversationID: convID,
		RecipientRole:  chat.RoleCustomer,
		RecipientID:    convID,
		Payload:        []byte(`{"sender_name":"Acme Plumbing","preview":"Your quote is ready","message_count":2}`),
		ScheduledFor:   due,
		Status:         StatusPending,
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
	})
}

func contactFor(convID uint64) map[uint64]directory.Contact {
	return map[uint64]directory.Contact{
		convID: {Name: "Dana", Email: "dana@example.com", Locale: "en"},
	}
}

func TestPass_DeliversAndReschedulesWhileUnread(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 2}}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Processed != 1 || sum.Sent != 1 || sum.Rescheduled != 1 {
		t.Fatalf("summary = %+v, want 1 processed/sent/rescheduled", sum)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	if want := now.Add(30 * time.Minute); !job.ScheduledFor.Equal(want) {
		t.Errorf("scheduled_for = %v, want %v", job.ScheduledFor, want)
	}
	if job.LastError != nil {
		t.Errorf("last_error = %q, want nil", *job.LastError)
	}
	if job.ClaimedAt != nil {
		t.Errorf("claimed_at should be cleared after reschedule")
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "dana@example.com" {
		t.Errorf("sent = %v, want one message to dana@example.com", sender.sent)
	}
	if len(convs.marked) != 1 || convs.marked[0] != 7 {
		t.Errorf("marked = %v, want conversation 7 touched", convs.marked)
	}
}

func TestPass_CompletesAtAttemptCeiling(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 1, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	if _, err := d.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", job.Status)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(sender.sent))
	}
}

func TestPass_CancelsWhenAlreadyRead(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 0}}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Cancelled != 1 {
		t.Fatalf("cancelled = %d, want 1", sum.Cancelled)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", job.Status)
	}
	if len(sender.sent) != 0 {
		t.Errorf("delivery invoked on cancelled job: %v", sender.sent)
	}
}

func TestPass_FailsWhenConversationGone(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	if _, err := d.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
	if job.LastError == nil || *job.LastError != "target_not_found" {
		t.Errorf("last_error = %v, want target_not_found", job.LastError)
	}
	if len(sender.sent) != 0 {
		t.Errorf("delivery invoked for missing conversation")
	}
}

func TestPass_TransientFailureReschedulesIndefinitely(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	sender := &fakeSender{err: &mailer.SendError{Category: mailer.CategoryTransient, Err: errors.New("rate limited")}}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	for i := 0; i < 5; i++ {
		if _, err := d.RunPass(context.Background(), now); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		job, _ := store.Get("job-1")
		if job.Status != StatusPending {
			t.Fatalf("pass %d: status = %s, want PENDING", i, job.Status)
		}
		now = job.ScheduledFor.Add(time.Second)
	}

	job, _ := store.Get("job-1")
	if job.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", job.Attempts)
	}
	if job.LastError == nil {
		t.Error("last_error should record the transient failure")
	}
}

func TestPass_FatalFailureFailsImmediately(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 5, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	sender := &fakeSender{err: &mailer.SendError{Category: mailer.CategoryFatal, Err: errors.New("mailbox does not exist")}}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	if _, err := d.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
}

func TestPass_BatchIsolation(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	convs := &fakeConversations{convs: map[uint64]convState{}}
	contacts := map[uint64]directory.Contact{}

	for i := uint64(1); i <= 5; i++ {
		seedJob(store, fmt.Sprintf("job-%d", i), i, 0, 3, now.Add(-time.Minute))
		contacts[i] = directory.Contact{Name: "Dana", Email: "dana@example.com", Locale: "en"}
		if i == 3 {
			convs.convs[i] = convState{err: errors.New("connection reset")}
		} else {
			convs.convs[i] = convState{unread: 1}
		}
	}

	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contacts}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Processed != 5 {
		t.Fatalf("processed = %d, want 5", sum.Processed)
	}
	if len(sender.sent) != 4 {
		t.Errorf("sent = %d, want 4 (job 3 excluded)", len(sender.sent))
	}

	bad, _ := store.Get("job-3")
	if bad.Status != StatusPending || bad.LastError == nil {
		t.Errorf("job-3 = %s/%v, want PENDING with recorded error", bad.Status, bad.LastError)
	}
	for _, id := range []string{"job-1", "job-2", "job-4", "job-5"} {
		j, _ := store.Get(id)
		if j.Status != StatusPending || j.LastError != nil {
			t.Errorf("%s = %s/%v, want rescheduled with nil error", id, j.Status, j.LastError)
		}
	}
}

func TestPass_TerminalJobUntouched(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.Put(ReminderJob{
		ID:             "done",
		ConversationID: 7,
		RecipientRole:  chat.RoleCustomer,
		ScheduledFor:   now.Add(-time.Hour),
		Status:         StatusCompleted,
		Attempts:       2,
		MaxAttempts:    2,
	})

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 5}}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Processed != 0 || len(sender.sent) != 0 {
		t.Fatalf("terminal job was processed: %+v", sum)
	}

	job, _ := store.Get("done")
	if job.Status != StatusCompleted || job.Attempts != 2 {
		t.Errorf("terminal job mutated: %+v", job)
	}
}

func TestPass_RecoversStaleClaims(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	claimed := now.Add(-11 * time.Minute)
	store.Put(ReminderJob{
		ID:             "stuck",
		ConversationID: 7,
		RecipientRole:  chat.RoleCustomer,
		RecipientID:    7,
		Payload:        []byte(`{}`),
		ScheduledFor:   now.Add(-time.Hour),
		Status:         StatusClaimed,
		ClaimedAt:      &claimed,
		MaxAttempts:    3,
	})

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Recovered != 1 {
		t.Fatalf("recovered = %d, want 1", sum.Recovered)
	}
	// The released job is due again and picked up in the same pass.
	if sum.Processed != 1 {
		t.Errorf("processed = %d, want 1", sum.Processed)
	}
}

type conflictStore struct {
	Store
}

func (c conflictStore) TryClaim(ctx context.Context, id string, now time.Time) (*ReminderJob, error) {
	return nil, ErrClaimConflict
}

func TestPass_ClaimConflictIsSkippedNotFailed(t *testing.T) {
	now := time.Now()
	mem := NewMemoryStore()
	seedJob(mem, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	sender := &fakeSender{}
	d := newTestDispatcher(conflictStore{mem}, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	sum, err := d.RunPass(context.Background(), now)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if sum.Skipped != 1 || sum.Processed != 0 || sum.Errors != 0 {
		t.Errorf("summary = %+v, want 1 skipped, 0 processed, 0 errors", sum)
	}
	if len(sender.sent) != 0 {
		t.Errorf("delivery invoked despite lost claim")
	}
}

func TestPass_MissingProfileFallsBackAndFailsFatally(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 0, 2, now.Add(-time.Minute))

	convs := &fakeConversations{convs: map[uint64]convState{7: {unread: 1}}}
	// Sender rejects the empty address as fatal, like the SMTP channel.
	sender := &fakeSender{err: &mailer.SendError{Category: mailer.CategoryFatal, Err: errors.New("invalid recipient address")}}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: map[uint64]directory.Contact{}}, sender)

	if _, err := d.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
}

func TestPass_BestEffortMarkFailureDoesNotAffectJob(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	seedJob(store, "job-1", 7, 1, 2, now.Add(-time.Minute))

	convs := &fakeConversations{
		convs:   map[uint64]convState{7: {unread: 1}},
		markErr: errors.New("conversations table locked"),
	}
	sender := &fakeSender{}
	d := newTestDispatcher(store, convs, &fakeDirectory{contacts: contactFor(7)}, sender)

	if _, err := d.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	job, _ := store.Get("job-1")
	if job.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED despite metadata write failure", job.Status)
	}
}

func TestPass_StoreOutageAbortsPass(t *testing.T) {
	d := newTestDispatcher(failStore{}, &fakeConversations{}, &fakeDirectory{}, &fakeSender{})
	if _, err := d.RunPass(context.Background(), time.Now()); err == nil {
		t.Fatal("expected pass to abort when the job store is unreachable")
	}
}

type failStore struct{}

var errStoreDown = errors.New("store unreachable")

func (failStore) FetchDue(context.Context, time.Time, int) ([]ReminderJob, error) {
	return nil, errStoreDown
}
func (failStore) FetchStale(context.Context, time.Time, int) ([]ReminderJob, error) {
	return nil, errStoreDown
}
func (failStore) TryClaim(context.Context, string, time.Time) (*ReminderJob, error) {
	return nil, errStoreDown
}
func (failStore) Release(context.Context, string) error                          { return errStoreDown }
func (failStore) Reschedule(context.Context, string, time.Time, *string) error   { return errStoreDown }
func (failStore) Complete(context.Context, string) error                         { return errStoreDown }
func (failStore) Cancel(context.Context, string) error                           { return errStoreDown }
func (failStore) Fail(context.Context, string, string) error                     { return errStoreDown }
