package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/auth"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/config"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/http/handler"
	mw "github.com/promarketingideastx-dev/pro24-7service-sub002/internal/http/middleware"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/jobs"
)

func NewRouter(cfg config.Config, dispatcher *jobs.Dispatcher, repo *jobs.Repo, jwtSvc *auth.JWT) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	cron := &handler.CronHandler{Dispatcher: dispatcher}
	r.With(mw.CronSecret(cfg.CronSecret)).Post("/internal/cron/chat-retries", cron.ChatRetries)

	jh := &handler.JobsHandler{Repo: repo}
	r.Route("/api/reminder-jobs", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/", jh.List)
		r.Get("/{id}", jh.Get)
	})

	return r
}
