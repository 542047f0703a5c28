package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"weibalance/internal/config"
	"weibalance/internal/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "path to optional config file (yaml, json or toml)")
	envPath := flag.String("env", config.DefaultEnvFile, "path to optional dotenv file")
	flag.Parse()

	// Basic logger for startup errors
	startupLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := config.LoadEnvFile(*envPath); err != nil {
		startupLog.Fatal().Err(err).Str("env", *envPath).Msg("failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		startupLog.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Str("addr", cfg.Addr()).
		Msg("starting weibalance")

	srv := server.New(cfg, logger)

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// Configure output
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
