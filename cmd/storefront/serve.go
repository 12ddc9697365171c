package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/internal/api"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		port    int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the storefront HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []core.Option
			if port != 0 {
				extra = append(extra, core.WithPort(port))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags, verbose, extra...)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log every request")
	return cmd
}

func serve(ctx context.Context, flags *globalFlags, verbose bool, extra ...core.Option) (err error) {
	a, err := openApp(ctx, flags, extra...)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, a.Close(shutdownCtx))
	}()

	handler := api.New(a.sessions, api.Options{
		Logger:         a.logger,
		Health:         a.storage.HealthCheck,
		ServiceName:    a.cfg.Telemetry.ServiceName,
		VerboseLogging: verbose,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(a.cfg.HTTP.Address, fmt.Sprint(a.cfg.HTTP.Port)),
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Storefront API listening", map[string]interface{}{
			"address":  srv.Addr,
			"storage":  a.cfg.Storage.Provider,
			"realtime": a.cfg.Realtime.Enabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down storefront API", nil)
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweepSessions(gctx, a, a.cfg.HTTP.SessionIdleLimit)
		return nil
	})

	return g.Wait()
}

// sweepSessions closes sessions that have been idle longer than limit
// until ctx is done.
func sweepSessions(ctx context.Context, a *app, limit time.Duration) {
	if limit <= 0 {
		return
	}
	interval := limit / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.CloseIdle(limit); n > 0 {
				a.logger.Info("Closed idle sessions", map[string]interface{}{
					"closed":    n,
					"remaining": len(a.sessions.Profiles()),
				})
			}
		}
	}
}
