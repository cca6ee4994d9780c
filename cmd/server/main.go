package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	ginlog "github.com/gin-contrib/logger"

	"soldeser/internal/attendance"
	"soldeser/internal/config"
	"soldeser/internal/controllers"
	"soldeser/internal/logger"
	"soldeser/internal/middleware"
	"soldeser/internal/routes"
	"soldeser/internal/scheduler"
	"soldeser/internal/store"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize structured logging to file
	appLog := logger.Setup(settings.LogFile, settings.LogLevel)
	middleware.Configure(settings.JWTSecret, settings.JWTTTL)

	// Connect to the database
	db, err := config.InitDB(settings, logger.GormLogger())
	if err != nil {
		appLog.WithError(err).Fatal("Database initialisation failed")
	}

	dao := store.NewAttendanceDao(db, appLog)
	svc := attendance.NewService(dao, appLog)
	hub := controllers.NewAttendanceHub(appLog)

	sweeper := scheduler.NewStaleSessionSweeper(svc, settings.StaleSessionAge, appLog)
	jobs, err := scheduler.Start(settings.StaleSessionCron, sweeper)
	if err != nil {
		appLog.WithError(err).Fatal("Invalid STALE_SESSION_CRON")
	}

	r := routes.SetupRouter(routes.Deps{
		Auth:      controllers.NewAuthController(db),
		Clock:     controllers.NewClockController(svc, hub, settings.Location),
		Sync:      controllers.NewSyncController(svc, hub, db),
		Worksites: controllers.NewWorksiteController(db, dao, settings.Location, settings.DefaultRadiusMeters),
		Export:    controllers.NewExportController(dao, settings.Location),
		Admin:     controllers.NewAdminController(svc, dao, settings.Location),
		Hub:       hub,
	},
		middleware.CORS(settings.CORSOrigins...),
		// Request logging middleware
		ginlog.SetLogger(
			ginlog.WithUTC(true),
			ginlog.WithSkipPath([]string{"/health"}),
			ginlog.WithWriter(logger.Output()),
		),
	)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server running at %s", srv.Addr)
		appLog.WithField("addr", srv.Addr).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Graceful shutdown failed")
	}
	<-jobs.Stop().Done()
	hub.Close()
}
