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

	"github.com/oriys/courier/internal/logging"
	"github.com/oriys/courier/internal/metrics"
	"github.com/oriys/courier/internal/observability"
)

func serveMetricsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Metrics.Addr
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})

			srv := &http.Server{
				Addr:              addr,
				Handler:           observability.HTTPMiddleware(mux),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("metrics server started", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-sigCh:
			}

			logging.Op().Info("shutting down metrics server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}
