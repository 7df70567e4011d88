package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/isotopp/deploy/internal/deploy"
	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/server"
	"github.com/isotopp/deploy/internal/store"
)

var (
	serveLogFile string
	serveHost    string
	servePort    int
	serveTest    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deploy webhook server",
	Long: `Start the HTTP server that receives signed webhook requests and runs
code deploys for the matching project.

Each request is verified against the shared webhook secret before any
command runs. Deploys for the same project are serialized.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveLogFile, "log", getEnvOrDefault("DEPLOY_LOG_FILE", "./deploy.log"), "Path to log file")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveTest, "test-mode", os.Getenv("DEPLOY_SKIP_RATELIMIT") == "1", "Disable rate limiting (for tests)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateWebhook(); err != nil {
		return err
	}

	host := cfg.Webhook.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Webhook.Port
	if servePort != 0 {
		port = servePort
	}

	srvLogger, logHandle, err := setupServeLogging(serveLogFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logHandle.Close()

	srvLogger.Info("starting deploy server", "store", cfg.StoreDir)

	st := store.New(cfg.StoreDir, cfg.Domain)

	srvLogger.Info("initializing history database", "db", cfg.HistoryDB)
	hist, err := history.New(cfg.HistoryDB)
	if err != nil {
		srvLogger.Error("failed to initialize history database", "error", err)
		return fmt.Errorf("failed to initialize history database: %w", err)
	}
	defer hist.Close()

	srv := server.NewServer(st, deploy.ExecRunner{}, hist, srvLogger,
		cfg.Webhook.Secret, time.Duration(timeoutSec)*time.Second)
	srv.ExposeOutput = cfg.Webhook.ExposeOutput
	srv.TestMode = serveTest

	srvLogger.Info("starting HTTP server", "host", host, "port", port)
	if err := srv.Start(host, port); err != nil {
		srvLogger.Error("server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// setupServeLogging writes JSON logs to both stdout and the log file.
// The caller must close the returned file handle.
func setupServeLogging(logPath string) (*slog.Logger, *os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)

	level := slog.LevelInfo
	if debugLevel > 0 {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{Level: level})

	return slog.New(handler), file, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
