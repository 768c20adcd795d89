package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/jobs"
)

// JobsHandler is the operator read-only view of reminder jobs. Failed
// deliveries have no end-user surface, so this plus the pass logs is
// how they are discovered.
type JobsHandler struct {
	Repo *jobs.Repo
}

type jobView struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	ConversationID uint64     `json:"conversation_id"`
	RecipientRole  string     `json:"recipient_role"`
	RecipientID    uint64     `json:"recipient_id"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toView(j jobs.ReminderJob) jobView {
	return jobView{
		ID:             j.ID,
		Status:         string(j.Status),
		ConversationID: j.ConversationID,
		RecipientRole:  string(j.RecipientRole),
		RecipientID:    j.RecipientID,
		ScheduledFor:   j.ScheduledFor,
		ClaimedAt:      j.ClaimedAt,
		Attempts:       j.Attempts,
		MaxAttempts:    j.MaxAttempts,
		LastError:      j.LastError,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toView(*job))
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := jobs.Status(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.Repo.List(r.Context(), status, limit)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}

	out := make([]jobView, 0, len(list))
	for _, j := range list {
		out = append(out, toView(j))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
