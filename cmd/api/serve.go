package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/crossfade/internal/adapters/rest"
	"github.com/ewilliams-labs/crossfade/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	purgeCtx, cancelPurge := context.WithCancel(ctx)
	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		worker.RunPurger(purgeCtx, a.store, time.Duration(a.cfg.Worker.PurgeIntervalMinutes)*time.Minute, a.log.WithField("component", "purger"))
	}()
	defer func() {
		cancelPurge()
		<-purgeDone
	}()

	handler := rest.NewHandler(a.svc, a.sessions, a.stats,
		rest.WithAnalyses(a.store),
		rest.WithCORS(a.cfg.Server.EnableCORS),
		rest.WithLogger(a.log.WithField("component", "rest")))

	srv := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(a.cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
	}

	a.log.WithField("addr", srv.Addr).Info("crossfade API is running")

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("shutdown error")
		}
		return nil
	}
}
