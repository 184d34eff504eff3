package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"regelrecht.org/internal/audit"
	"regelrecht.org/internal/auth"
	"regelrecht.org/internal/config"
	"regelrecht.org/internal/httpapi"
	"regelrecht.org/internal/obs"
	"regelrecht.org/internal/portal"
	"regelrecht.org/internal/storage"
	"regelrecht.org/internal/store/pg"
)

// Overridden at build time via -ldflags.
var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	blobs, err := storage.NewFSStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}

	auditLog := audit.NewPG(db)
	portalStore := pg.New(db)
	portalSvc := portal.NewService(portalStore, blobs, auditLog,
		portal.WithMaxUpload(cfg.MaxUploadBytes),
		portal.WithRetentionMonths(cfg.RetentionMonths),
	)

	authStore := auth.NewPGStore(db)
	authSvc := auth.NewService(authStore, &portal.SubmissionRefAdapter{Store: portalStore}, auditLog,
		auth.WithAdminTTL(cfg.AdminSessionTTL),
		auth.WithUploaderTTL(cfg.UploaderSessionTTL),
		auth.WithRateLimit(cfg.RateLimitMax, cfg.RateLimitWindow),
	)

	api := httpapi.New(&cfg, authSvc, portalSvc, blobs, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Background sweep: expired sessions, stale rate-limit attempts, and
	// submissions past their retention date.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := auth.NewReaper(authStore, cfg.ReaperInterval, cfg.RateLimitWindow).WithPurger(portalStore)
	go reaper.Run(reaperCtx)

	log.Printf("Starting regelrecht-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopReaper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
