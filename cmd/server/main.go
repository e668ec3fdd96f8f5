package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokenguard/config"
	"tokenguard/internal/database"
	"tokenguard/internal/logging"
	"tokenguard/internal/repository"
	"tokenguard/internal/router"
	"tokenguard/internal/settings"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	logging.Setup(cfg)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	if err := database.SeedAdmin(db, &cfg.Admin); err != nil {
		log.WithError(err).Fatal("seed admin")
	}
	if err := settings.NewService(repository.NewSettingRepository(db)).SeedDefaults(); err != nil {
		log.WithError(err).Fatal("seed settings")
	}

	engine, scheduler := router.Setup(cfg, db)
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("scheduler")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.WithFields(log.Fields{"port": cfg.Server.Port, "env": cfg.Server.Env, "db": cfg.Database.Driver}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	scheduler.Stop()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("server stopped")
}
