/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory platform server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config from environment, apply flag overrides
  2. Initialize SQLite store
  3. Wire identity, blood and organ services
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (default from BLOODBANK_ADDR, else :8080)
  -db      SQLite database path (default from BLOODBANK_DB)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bloodbank.db"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  BLOODBANK_ADDR, BLOODBANK_DB, JWT_SIGNING_KEY, UPLOAD_DIR,
  ALLOWED_ORIGINS. See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redcell/inventory-engine/api"
	"github.com/redcell/inventory-engine/blood"
	"github.com/redcell/inventory-engine/config"
	"github.com/redcell/inventory-engine/docstore"
	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/metrics"
	"github.com/redcell/inventory-engine/organ"
	"github.com/redcell/inventory-engine/store/sqlite"
)

func main() {
	cfg := config.FromEnv()

	// Flags override environment
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize document storage
	docs, err := docstore.NewDisk(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize upload dir: %v", err)
	}

	// Wire services
	tokens := identity.NewTokenService(cfg.JWTSigningKey, cfg.TokenTTL)
	identitySvc := identity.NewService(store, tokens)
	bloodSvc := blood.NewService(store.Blood(), store)
	organSvc := organ.NewService(store.Organs())
	m := metrics.New()

	handler := api.NewHandler(identitySvc, bloodSvc, organSvc, docs, m)
	router := api.NewRouter(handler, api.RouterConfig{
		Tokens:         tokens,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      cfg.UploadDir,
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
