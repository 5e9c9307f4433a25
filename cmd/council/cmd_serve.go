package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspendos/council/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var port int
	var host string
	var sessionDir string
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the council HTTP server",
		Long: `Start the council HTTP server.

Endpoints:
  POST   /api/sessions              Start a deliberation
  GET    /api/sessions              List sessions
  GET    /api/sessions/{id}         Session detail
  GET    /api/sessions/{id}/events  Server-sent event stream
  DELETE /api/sessions/{id}         Cancel a session
  POST   /api/route                 Classify a free-text message
  GET    /api/models                Model catalog
  GET    /api/health/providers      Circuit breaker states`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, sessionDir)
			if err != nil {
				return err
			}

			srv, err := webserver.New(webserver.Config{
				Port:           port,
				Host:           host,
				AllowedOrigins: origins,
				Logger:         a.logger,
				Council:        a.cfg,
				Session:        a.orchestrator,
				Router:         a.classifier,
				Broker:         a.broker,
				Reminders:      a.scheduler,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = srv.ListenAndServe(ctx)

			a.scheduler.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.orchestrator.Shutdown(shutdownCtx)
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host interface to bind")
	cmd.Flags().StringVar(&sessionDir, "session-dir", "", "Directory for session records (in-memory when unset)")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Allowed CORS origins")

	return cmd
}
