package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-kiosk/internal/constants"
)

// Migrate creates the schema the matching pipeline reads and writes.
// face_embedding holds the raw JSON-array bytes of the stored embedding
// (the source of truth, decoded by the embedding codec); the vector column
// is derived from it and only used for nearest-neighbor ordering.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createCustomers := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS customers (
			id             UUID PRIMARY KEY,
			pos_id         UUID NOT NULL,
			gender         VARCHAR(16) NOT NULL,
			age            INTEGER NOT NULL,
			phone_number   VARCHAR(32) NOT NULL,
			face_embedding BYTEA NOT NULL,
			embedding      vector(%d),
			created_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, constants.FaceEmbeddingDim)
	if _, err := p.Exec(ctx, createCustomers); err != nil {
		return fmt.Errorf("failed to create customers table: %w", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS customers_pos_id_idx ON customers(pos_id)
	`); err != nil {
		return fmt.Errorf("failed to create customers pos_id index: %w", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS customers_pos_demographics_idx
		ON customers(pos_id, gender, age)
	`); err != nil {
		return fmt.Errorf("failed to create customers demographics index: %w", err)
	}

	createKiosks := `
		CREATE TABLE IF NOT EXISTS kiosks (
			id         UUID PRIMARY KEY,
			pos_id     UUID NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := p.Exec(ctx, createKiosks); err != nil {
		return fmt.Errorf("failed to create kiosks table: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for similarity ordering.
// This should be called after the table has some data for optimal performance.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS customers_vector_idx
		ON customers USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
