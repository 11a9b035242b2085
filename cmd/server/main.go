/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission tracking server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Apply command-line flag overrides
  3. Initialize SQLite store
  4. Create workflow service and API handler
  5. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (or .env file):
    PORT              HTTP server port (default: 8080)
    DB_PATH           SQLite database path (default: commissions.db)
                      Use ":memory:" for an in-memory database
    JWT_SECRET        Token signing key (required outside dev)
    BOOTSTRAP_SECRET  Secret for the dev token endpoint
    LOG_LEVEL         logrus level: debug, info, warn, error

  Flags override the environment:
    -port, -db

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commissions.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/salesdesk/commission-engine/api"
	"github.com/salesdesk/commission-engine/store/sqlite"
	"github.com/salesdesk/commission-engine/workflow"
)

type config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	DBPath          string `env:"DB_PATH" envDefault:"commissions.db"`
	JWTSecret       string `env:"JWT_SECRET" envDefault:"dev-signing-key"`
	BootstrapSecret string `env:"BOOTSTRAP_SECRET" envDefault:"dev-bootstrap"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse environment: %v\n", err)
		os.Exit(1)
	}

	// Flag overrides
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Wire the workflow and API
	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.BootstrapSecret)
	handler := api.NewHandler(store, workflow.NewService(store), auth, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{"port": *port, "db": *dbPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
