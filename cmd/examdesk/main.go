package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	apihttp "github.com/examdesk/examdesk/internal/api/http"
	"github.com/examdesk/examdesk/internal/audit"
	authmw "github.com/examdesk/examdesk/internal/auth/middleware"
	"github.com/examdesk/examdesk/internal/catalog"
	"github.com/examdesk/examdesk/internal/config"
	"github.com/examdesk/examdesk/internal/db"
	"github.com/examdesk/examdesk/internal/exam"
	"github.com/examdesk/examdesk/internal/logging"
	"github.com/examdesk/examdesk/internal/metrics"
	"github.com/examdesk/examdesk/internal/question"
	"github.com/examdesk/examdesk/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("examdesk stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	events := audit.NewEventRepo(dbh, cfg.SiteID)
	userStore := users.NewSQLStore(dbh, events, users.DefaultCost)
	questions := question.NewSQLStore(dbh)
	exams := exam.NewSQLStore(dbh, events)
	m := metrics.New()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := userStore.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			log.Info("bootstrap admin created", zap.String("email", cfg.AdminEmail))
		}
	}

	h := apihttp.NewRouter(apihttp.Deps{
		DB:             dbh,
		Log:            log,
		Metrics:        m,
		Auth:           authmw.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Catalog:        catalog.NewSQLStore(dbh),
		Questions:      questions,
		Exams:          exams,
		Previewer:      exam.NewPreviewer(exams, questions, nil, m),
		Users:          userStore,
		Events:         events,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          cfg.Debug,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", string(driver)), zap.String("site", cfg.SiteID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
