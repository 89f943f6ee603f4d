package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/behaviour.report/internal/api"
	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/units"
)

var (
	listenAddr   string
	serveDBPath  string
	defaultUnits string
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "behaviour.db", "SQLite database path")
	serveCmd.Flags().StringVar(&defaultUnits, "units", units.MMPS, "speed units for summaries: "+units.GetValidUnitsString())
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs over HTTP",
	Long: `Serve exposes the results database read-only.

  GET /api/runs                 recorded runs, newest first (?experiment=, ?limit=)
  GET /api/runs/{id}/bouts      bouts of one run
  GET /api/runs/{id}/summary    summaries of one run (?units=mm_per_sec|cm_per_sec|m_per_sec)

The debug pages under /debug/ include a SQL console and a database backup.

Examples:
  behaviour serve --db behaviour.db --listen :8080 --units cm_per_sec`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func newServeMux(store *db.DB, unit string) (http.Handler, error) {
	if !units.IsValid(unit) {
		return nil, fmt.Errorf("invalid units %q, want one of %s", unit, units.GetValidUnitsString())
	}
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, fmt.Errorf("attach admin routes: %w", err)
	}
	mux.Handle("/api/", http.StripPrefix("/api", api.LoggingMiddleware(api.NewServer(store, unit).ServeMux())))
	return mux, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(serveDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	h, err := newServeMux(store, defaultUnits)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return <-errc
}
