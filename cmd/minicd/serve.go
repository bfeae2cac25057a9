package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minicd/minicd/internal/config"
	"github.com/minicd/minicd/internal/httpapi"
	"github.com/minicd/minicd/internal/indexer"
	"github.com/minicd/minicd/internal/logging"
	"github.com/minicd/minicd/internal/mailer"
	"github.com/minicd/minicd/internal/pipeline"
	"github.com/minicd/minicd/internal/secrets"
	"github.com/minicd/minicd/internal/webhook"
)

var logLevel string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the minicd agent: HTTP front, run pipeline, and repository indexer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.New(logLevel)
	componentLog := logging.Component(log, "bootstrap")

	store := secrets.Empty()
	if cfg.SecretsFile != "" {
		store, err = secrets.Load(cfg.SecretsFile)
		if err != nil {
			return fmt.Errorf("loading secrets file: %w", err)
		}
	}

	mail, err := mailer.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("configuring mailer: %w", err)
	}
	if mail == nil {
		componentLog.Warn("no mailer configured: email notifications will fail")
	}

	wh := webhook.New()

	pl := pipeline.New(store, mail, wh, logging.Component(log, "pipeline"))

	handler := &httpapi.Handler{Pipeline: pl, Log: logging.Component(log, "httpapi")}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: httpapi.NewMux(handler),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RepoRoot != "" {
		idx := &indexer.Indexer{
			Root:            cfg.RepoRoot,
			Port:            cfg.Port,
			HookfileVersion: cfg.HookfileVersion,
			Log:             logging.Component(log, "indexer"),
		}
		go runIndexerLoop(ctx, idx, cfg.IndexInterval)
	} else {
		componentLog.Warn("no repo_root configured: the indexer will not run")
	}

	serverErr := make(chan error, 1)
	go func() {
		componentLog.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		componentLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func runIndexerLoop(ctx context.Context, idx *indexer.Indexer, interval time.Duration) {
	idx.Scan()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idx.Scan()
		}
	}
}
