// Package main — bot entry point.
// Loads the configuration, assembles the application and runs it.
// Supports graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/app"
	"belenavidad.es/discord-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== bot starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration failed")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("initialize application failed")
	}
	defer application.DB.Close()

	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	if err := application.Bot.Start(ctx); err != nil {
		log.WithError(err).Fatal("open gateway connection failed")
	}
	defer application.Bot.Stop()

	log.Info("=== bot ready ===")

	// docker stop / Ctrl+C
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("signal %s received, shutting down...", sig)

	cancel()

	log.Info("=== bot stopped ===")
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
