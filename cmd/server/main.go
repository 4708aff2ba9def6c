/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the analytics engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then flags
  2. Build the logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start the rollup scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the rollup scheduler (waits for a running rollup)
  2. Stop accepting new connections
  3. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/analytics.db"
  ./server -db=":memory:" -port=3000
  LOG_FORMAT=text ROLLUP_SCHEDULE="@every 5m" ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/getlago/analytics-engine/api"
	"github.com/getlago/analytics-engine/config"
	"github.com/getlago/analytics-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	log := cfg.Log.NewLogger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, api.Options{
		DefaultCurrency: cfg.Analytics.DefaultCurrency,
		DefaultLocale:   cfg.Analytics.DefaultLocale,
		Logger:          log,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IngestRate:     cfg.Ingestion.RateLimit,
		IngestBurst:    cfg.Ingestion.Burst,
	})

	scheduler := api.NewRollupScheduler(handler.Usage, cfg.Rollup.Spec, log)
	scheduler.Enabled = cfg.Rollup.Enabled
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("failed to start rollup scheduler")
	}

	server := newHTTPServer(cfg.Server, *port, router)

	go func() {
		log.WithFields(logrus.Fields{
			"addr":        server.Addr,
			"db":          *dbPath,
			"environment": cfg.Server.Environment,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}
	log.Info("server stopped")
}

// newHTTPServer applies the configured address and timeouts. port overrides
// cfg.Port.
func newHTTPServer(cfg config.ServerConfig, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
