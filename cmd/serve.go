package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-kiosk/internal/cache"
	"github.com/kozaktomas/face-kiosk/internal/config"
	"github.com/kozaktomas/face-kiosk/internal/database/postgres"
	"github.com/kozaktomas/face-kiosk/internal/events"
	"github.com/kozaktomas/face-kiosk/internal/extraction"
	"github.com/kozaktomas/face-kiosk/internal/matching"
	"github.com/kozaktomas/face-kiosk/internal/pipeline"
	"github.com/kozaktomas/face-kiosk/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk API server",
	Long: `Start the Face Kiosk backend.
The server exposes capture ingestion, customer registration and lookup,
and a server-sent events stream for kiosk frontends.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// initHNSW builds the in-memory nearest-neighbor index over stored customers.
func initHNSW(ctx context.Context, repo *postgres.CustomerRepository) {
	fmt.Println("Building in-memory HNSW index for customer matching...")
	if err := repo.EnableHNSW(ctx); err != nil {
		fmt.Printf("Warning: failed to build HNSW index: %v\n", err)
		fmt.Println("Broad searches will use PostgreSQL vector queries (slower)")
		return
	}
	fmt.Printf("HNSW index built with %d customers\n", repo.HNSWCount())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	customerRepo := postgres.NewCustomerRepository(pool)
	kioskRepo := postgres.NewKioskRepository(pool)
	initHNSW(ctx, customerRepo)

	store := cache.New()
	broadcaster := events.New(cfg.Events.KeepAliveInterval)
	defer broadcaster.Close()

	extractor := extraction.NewClient(cfg.Extractor.URL, cfg.Extractor.Timeout, cfg.Extractor.Retries)
	matcher := matching.NewMatcher(cfg.Matching.Threshold, store, cfg.Cache.EmbeddingTTL)
	orchestrator := pipeline.New(extractor, customerRepo, kioskRepo, matcher, broadcaster, store, pipeline.Options{
		AgeWindow:          cfg.Matching.AgeWindow,
		MaxBroadCandidates: cfg.Matching.MaxBroadCandidates,
		AnalysisTTL:        cfg.Cache.AnalysisTTL,
	})

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(host, port, web.Deps{
		Analyzer:    orchestrator,
		Customers:   customerRepo,
		Kiosks:      kioskRepo,
		Broadcaster: broadcaster,
		Store:       store,
		Config:      cfg,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Kiosk API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
