package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/database"
)

// KioskRepository resolves kiosk identifiers to their owning POS.
type KioskRepository struct {
	pool *Pool
}

// NewKioskRepository creates a new PostgreSQL kiosk repository.
func NewKioskRepository(pool *Pool) *KioskRepository {
	return &KioskRepository{pool: pool}
}

// GetPosID returns the POS owning the kiosk.
func (r *KioskRepository) GetPosID(ctx context.Context, kioskID uuid.UUID) (uuid.UUID, error) {
	var posID uuid.UUID
	err := r.pool.QueryRow(ctx, "SELECT pos_id FROM kiosks WHERE id = $1", kioskID).Scan(&posID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, database.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query kiosk pos: %w", err)
	}
	return posID, nil
}

// Save registers a kiosk under a POS.
func (r *KioskRepository) Save(ctx context.Context, k *database.Kiosk) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		"INSERT INTO kiosks (id, pos_id) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET pos_id = $2",
		k.ID, k.PosID)
	if err != nil {
		return fmt.Errorf("insert kiosk: %w", err)
	}
	return nil
}
