package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/jobs"
)

// CronHandler exposes the scheduler trigger for the chat-retries
// dispatcher.
type CronHandler struct {
	Dispatcher *jobs.Dispatcher
}

// ChatRetries runs one dispatch pass. The optional `now` query param
// (RFC 3339) overrides wall-clock time for backfills and testing.
func (h *CronHandler) ChatRetries(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if v := r.URL.Query().Get("now"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid now parameter", http.StatusBadRequest)
			return
		}
		now = t
	}

	sum, err := h.Dispatcher.RunPass(r.Context(), now)
	if err != nil {
		// Job store unreachable: surface to the scheduler instead of
		// reporting a silent no-op pass.
		http.Error(w, "dispatch pass failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sum)
}
