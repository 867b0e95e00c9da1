package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-kiosk/internal/config"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/database/postgres"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Manage kiosk registrations",
}

var kioskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a kiosk under a point of sale",
	RunE:  runKioskCreate,
}

func init() {
	rootCmd.AddCommand(kioskCmd)
	kioskCmd.AddCommand(kioskCreateCmd)

	kioskCreateCmd.Flags().String("pos", "", "POS ID the kiosk belongs to (required)")
	kioskCreateCmd.Flags().String("id", "", "Kiosk ID (defaults to a new UUID)")
	kioskCreateCmd.MarkFlagRequired("pos")
}

func runKioskCreate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	posID, err := uuid.Parse(mustGetString(cmd, "pos"))
	if err != nil {
		return fmt.Errorf("invalid POS ID: %w", err)
	}

	kioskID := uuid.New()
	if raw := mustGetString(cmd, "id"); raw != "" {
		kioskID, err = uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid kiosk ID: %w", err)
		}
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

	repo := postgres.NewKioskRepository(pool)
	if err := repo.Save(ctx, &database.Kiosk{ID: kioskID, PosID: posID}); err != nil {
		return fmt.Errorf("saving kiosk: %w", err)
	}

	fmt.Printf("Kiosk %s registered under POS %s\n", kioskID, posID)
	return nil
}
