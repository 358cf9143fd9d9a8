package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the screenshot HTTP API",
	Long: `Serve the HTTP API.

Endpoints:
  GET  /                          service status
  POST /submit-url                {"url": "..."} captures a page
  GET  /screenshots               list saved screenshots
  GET  /screenshots/by-url?url=   screenshots for one URL
  GET  /screenshots/{filename}    download a screenshot`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":5000", "listen address")
	flags.Int("max-concurrent", 4, "simultaneous captures")
	flags.Int("backlog", 16, "captures allowed to queue for a slot")
	flags.Duration("request-timeout", 10*time.Minute, "upper bound on one capture")
	flags.Duration("grace", 30*time.Second, "shutdown grace period for in-flight captures")
}

func runServe(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd.Flags(), map[string]string{
		"addr":            "addr",
		"max-concurrent":  "server.max_concurrent",
		"backlog":         "server.backlog",
		"request-timeout": "server.request_timeout",
	})
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	capturer, store, err := newCapturer(cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	logger.Info("assets", "dir", store.Dir())

	srv := server.New(capturer, store, server.Options{
		MaxConcurrent:  cfg.Server.MaxConcurrent,
		Backlog:        cfg.Server.Backlog,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	grace, _ := cmd.Flags().GetDuration("grace")
	return srv.ListenAndServe(ctx, cfg.Addr, grace)
}
