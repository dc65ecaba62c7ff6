package main

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"voxbridge/internal/bootstrap"
	"voxbridge/internal/config"
	"voxbridge/internal/logging"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup finishes before os.Exit.
func run() int {
	configPath := cli.StringP("config", "c", "", "YAML config file")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.String("addr", "", "Listen address, overrides http.bind/http.port")
	logLevel := cli.StringP("log", "l", "", "Log level (debug|info|warn|error)")
	cli.Parse()

	logging.Setup(os.Stderr, "info")

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}
	if err := config.ApplyFlags(&cfg, *addr, *logLevel); err != nil {
		log.Error("Invalid flags", "err", err)
		return 1
	}
	logging.Setup(os.Stderr, cfg.Log.Level)
	gin.SetMode(gin.ReleaseMode)

	log.Info("Booting up", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, version)
	if err != nil {
		log.Error("Failed to boot", "err", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("Failed to release resources", "err", err)
		}
	}()

	log.Info("Boot up - successful", "engine", cfg.Transcribe.Engine, "backend", cfg.Capture.Backend)

	if err := app.Run(ctx); err != nil {
		log.Error("Server stopped", "err", err)
		return 1
	}
	return 0
}
