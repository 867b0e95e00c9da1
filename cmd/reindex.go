package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-kiosk/internal/config"
	"github.com/kozaktomas/face-kiosk/internal/database/postgres"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector columns from stored embeddings",
	Long: `Re-derive the pgvector column for every customer from the stored
embedding payload. Useful after restoring a database dump or when customer
rows were written by an older version without the vector column.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().Bool("create-index", false, "Also (re)create the ivfflat vector index")
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repo := postgres.NewCustomerRepository(pool)
	customers, err := repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing customers: %w", err)
	}
	if len(customers) == 0 {
		fmt.Println("No customers to reindex")
		return nil
	}

	bar := progressbar.NewOptions(len(customers),
		progressbar.OptionSetDescription("Reindexing vectors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("customers"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var skipped int
	for _, c := range customers {
		vec, err := embedding.DecodeRaw(c.FaceEmbedding)
		if err != nil {
			skipped++
			bar.Add(1)
			continue
		}
		if err := repo.UpdateVector(ctx, c.ID, vec); err != nil {
			return fmt.Errorf("updating vector for %s: %w", c.ID, err)
		}
		bar.Add(1)
	}
	fmt.Println()

	if skipped > 0 {
		fmt.Printf("Skipped %d customers with undecodable embeddings\n", skipped)
	}
	fmt.Printf("Reindexed %d customers\n", len(customers)-skipped)

	if mustGetBool(cmd, "create-index") {
		fmt.Println("Creating ivfflat vector index...")
		if err := pool.CreateVectorIndex(ctx); err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}
		fmt.Println("Vector index ready")
	}
	return nil
}
