package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/ledger-console/api"
	"github.com/frahmantamala/ledger-console/internal/transport/rest"
	"github.com/frahmantamala/ledger-console/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the console HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return startHTTPServer(cmd.Context())
	},
}

func startHTTPServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := logger.LoggerWrapper()

	if _, err := api.Load(ctx); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, appConfig.Session, lg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			lg.Error("session store close error", "error", err)
		}
	}()

	console, err := rest.NewConsole(appConfig, store, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize console: %w", err)
	}

	addr := fmt.Sprintf(":%d", appConfig.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           console.Router,
		ReadHeaderTimeout: appConfig.Server.ReadHeaderTimeout,
		ReadTimeout:       appConfig.Server.ReadTimeout,
		WriteTimeout:      appConfig.Server.WriteTimeout,
		IdleTimeout:       appConfig.Server.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return logger.Into(context.Background(), lg.With("component", "http"))
		},
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr, "remote", appConfig.API.BaseURL, "session_backend", appConfig.Session.Backend)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	slog.Info("server stopped")
	return nil
}
