/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the escrow engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load TOML config if present
  2. Initialize SQLite store
  3. Initialize the value store (in-process token ledger, seeded from
     config in development)
  4. Wire the escrow ledger and HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config; ":memory:" works)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=./escrow.toml

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Configuration schema
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearhold/escrow-engine/api"
	"github.com/clearhold/escrow-engine/config"
	"github.com/clearhold/escrow-engine/escrow"
	"github.com/clearhold/escrow-engine/store/sqlite"
	"github.com/clearhold/escrow-engine/token"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	evidencePolicy, err := escrow.ParseEvidencePolicy(cfg.Escrow.EvidencePolicy)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize the value store. The in-process token ledger stands in for
	// the external token until a real client is wired here.
	values := token.NewMemory(escrow.Identity(cfg.Escrow.Custodian))
	for account, balance := range cfg.Token.Balances {
		amount, err := escrow.ParseAmount(balance)
		if err != nil {
			log.Fatalf("Invalid seed balance for %s: %v", account, err)
		}
		values.Mint(escrow.Identity(account), amount)
		values.Approve(escrow.Identity(account), amount)
		log.Printf("Seeded %s with %s (custody pre-approved)", account, balance)
	}

	// Wire the ledger and router
	ledger := escrow.NewLedger(store, values, escrow.WithEvidencePolicy(evidencePolicy))
	handler := api.NewHandler(ledger)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Escrow engine listening on http://%s (evidence policy: %s)", server.Addr, evidencePolicy)
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
