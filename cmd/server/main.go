package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/auth"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/chat"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/config"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/db"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/directory"
	httpx "github.com/promarketingideastx-dev/pro24-7service-sub002/internal/http"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/jobs"
	"github.com/promarketingideastx-dev/pro24-7service-sub002/internal/mailer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Error("migrate database", "error", err)
		os.Exit(1)
	}

	repo := &jobs.Repo{DB: gdb}
	dispatcher := &jobs.Dispatcher{
		Store:         repo,
		Conversations: &chat.Store{DB: gdb},
		Directory:     &directory.Store{DB: gdb},
		Sender: mailer.NewSMTPSender(
			cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password,
			cfg.SMTP.From, cfg.SMTP.Timeout,
		),
		Log:              log,
		StaleAfter:       cfg.Dispatch.StaleAfter,
		ResendInterval:   cfg.Dispatch.ResendInterval,
		TransientBackoff: cfg.Dispatch.TransientBackoff,
		BatchLimit:       cfg.Dispatch.BatchLimit,
		StaleLimit:       cfg.Dispatch.StaleLimit,
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, dispatcher, repo, jwtSvc)

	ctx, cancel := context.WithCancel(context.Background())

	// Optional in-process cadence for deployments without an external
	// scheduler.
	if cfg.Dispatch.SelfInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Dispatch.SelfInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := dispatcher.RunPass(ctx, time.Now()); err != nil {
						log.Error("dispatch pass", "error", err)
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("serve", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
