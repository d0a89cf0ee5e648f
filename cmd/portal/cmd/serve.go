package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/skwf/portal/api"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		listen          string
		origins         []string
		tlsCert, tlsKey string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP gateway",
		Long: `Serve the portal flow over HTTP for a browser front end. The gateway
shares the session store with the other commands, so signing in here signs
in the CLI as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				c.cfg.Listen = listen
			}
			ws, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.close()

			opts := []api.Option{api.WithLogger(c.logger)}
			if len(origins) > 0 {
				opts = append(opts, api.WithOriginPatterns(origins...))
			}
			if c.cfg.Audit.WebhookURL != "" {
				opts = append(opts, api.WithAuditWebhook(c.cfg.Audit.WebhookURL, c.cfg.Audit.WebhookAuth))
			}
			a := api.New(ws.app, opts...)
			defer a.Close()

			r := chi.NewRouter()
			r.Use(middleware.Logger)
			r.Use(middleware.Recoverer)

			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("OK"))
			})
			r.Handle("/metrics", ws.metrics.Handler())
			r.Mount("/api/v1", a.Router())

			// No WriteTimeout: payment watch sockets stay open until the
			// payment is decided.
			server := &http.Server{
				Addr:              c.cfg.Listen,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if tlsCert != "" || tlsKey != "" {
				cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
				if err != nil {
					return fmt.Errorf("failed to load TLS key pair: %w", err)
				}
				server.TLSConfig = &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				}
			}

			done := make(chan error, 1)
			go func() {
				var err error
				if server.TLSConfig != nil {
					err = server.ListenAndServeTLS("", "")
				} else {
					err = server.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()

			out := cmd.OutOrStdout()
			printBanner(out)
			fmt.Fprintf(out, "Listening on %s (api: %s, store: %s)\n", c.cfg.Listen, c.cfg.APIBaseURL, c.cfg.Store.Driver)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "\nShutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server shutdown failed: %w", err)
				}
				return nil
			case err := <-done:
				return err
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", "", "Address to listen on (PORTAL_LISTEN)")
	f.StringSliceVar(&origins, "origin", nil, "Allowed websocket origin pattern (repeatable)")
	f.StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	f.StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	return cmd
}
