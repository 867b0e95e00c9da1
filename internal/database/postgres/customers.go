package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

// CustomerRepository provides PostgreSQL-backed candidate storage with an
// optional in-memory HNSW index for the broad-phase nearest-neighbor query.
type CustomerRepository struct {
	pool        *Pool
	hnswIndex   *database.CandidateIndex
	hnswEnabled bool
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(pool *Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = "id, pos_id, gender, age, phone_number, face_embedding, created_at"

// FindByPosGenderAndAgeBetween returns the narrow candidate set: one POS,
// one gender, inclusive age range. Ordered by creation time so repeated
// searches see candidates in a stable order.
func (r *CustomerRepository) FindByPosGenderAndAgeBetween(ctx context.Context, posID uuid.UUID, gender database.Gender, minAge, maxAge int) ([]database.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM customers
		WHERE pos_id = $1 AND gender = $2 AND age BETWEEN $3 AND $4
		ORDER BY created_at, id
	`, customerColumns)

	rows, err := r.pool.Query(ctx, query, posID, string(gender), minAge, maxAge)
	if err != nil {
		return nil, fmt.Errorf("query customers by demographics: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// FindAllByPos returns every candidate of one POS.
func (r *CustomerRepository) FindAllByPos(ctx context.Context, posID uuid.UUID) ([]database.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM customers
		WHERE pos_id = $1
		ORDER BY created_at, id
	`, customerColumns)

	rows, err := r.pool.Query(ctx, query, posID)
	if err != nil {
		return nil, fmt.Errorf("query customers by pos: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// FindNearestByPos returns up to limit candidates of one POS ordered by
// cosine distance to vec. Uses the in-memory HNSW index when enabled,
// otherwise the pgvector <=> operator.
func (r *CustomerRepository) FindNearestByPos(ctx context.Context, posID uuid.UUID, vec []float64, limit int) ([]database.Customer, error) {
	if r.hnswEnabled {
		return r.findNearestHNSW(ctx, posID, vec, limit)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM customers
		WHERE pos_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, customerColumns)

	rows, err := r.pool.Query(ctx, query, posID, pgvector.NewVector(toFloat32(vec)), limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest customers: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// findNearestHNSW serves the nearest query from the in-memory index and
// hydrates the hits from the database, preserving nearest-first order.
// Hits from other POS tenants are filtered out after hydration.
func (r *CustomerRepository) findNearestHNSW(ctx context.Context, posID uuid.UUID, vec []float64, limit int) ([]database.Customer, error) {
	// Over-fetch to survive cross-tenant hits in the shared index.
	ids := r.hnswIndex.Search(vec, limit*2)
	customers := make([]database.Customer, 0, limit)
	for _, id := range ids {
		c, err := r.FindByID(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue // index is stale for this entry
		}
		if err != nil {
			return nil, err
		}
		if c.PosID != posID {
			continue
		}
		customers = append(customers, *c)
		if len(customers) == limit {
			break
		}
	}
	return customers, nil
}

// FindByID retrieves a single customer.
func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*database.Customer, error) {
	query := fmt.Sprintf("SELECT %s FROM customers WHERE id = $1", customerColumns)

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer by id: %w", err)
	}
	return c, nil
}

// FindByPosAndPhone retrieves a customer of one POS by phone number.
func (r *CustomerRepository) FindByPosAndPhone(ctx context.Context, posID uuid.UUID, phone string) (*database.Customer, error) {
	query := fmt.Sprintf("SELECT %s FROM customers WHERE pos_id = $1 AND phone_number = $2", customerColumns)

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, posID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer by phone: %w", err)
	}
	return c, nil
}

// CountByPos returns the candidate population of one POS.
func (r *CustomerRepository) CountByPos(ctx context.Context, posID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers WHERE pos_id = $1", posID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return count, nil
}

// Save persists a new customer. The derived vector column is populated from
// the raw embedding bytes when they decode cleanly; a record with an
// undecodable embedding is still saved (it just never wins a nearest query).
func (r *CustomerRepository) Save(ctx context.Context, c *database.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	var vec any
	if decoded, err := embedding.DecodeRaw(c.FaceEmbedding); err == nil {
		v := pgvector.NewVector(toFloat32(decoded))
		vec = v
		if r.hnswEnabled {
			if err := r.hnswIndex.Add(c.ID, decoded); err != nil {
				log.Printf("customer %s not added to HNSW index: %v", c.ID, err)
			}
		}
	} else {
		log.Printf("customer %s saved without derived vector: %v", c.ID, err)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO customers (id, pos_id, gender, age, phone_number, face_embedding, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.PosID, string(c.Gender), c.Age, c.PhoneNumber, c.FaceEmbedding, vec)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// UpdateVector recomputes the derived vector column for one customer.
// Used by the reindex command to backfill records saved before the vector
// column existed.
func (r *CustomerRepository) UpdateVector(ctx context.Context, id uuid.UUID, vec []float64) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE customers SET embedding = $2 WHERE id = $1",
		id, pgvector.NewVector(toFloat32(vec)))
	if err != nil {
		return fmt.Errorf("update customer vector: %w", err)
	}
	return nil
}

// ListAll returns every customer across all POS tenants. Used by the
// reindex command; the serving path always scopes by POS.
func (r *CustomerRepository) ListAll(ctx context.Context) ([]database.Customer, error) {
	query := fmt.Sprintf("SELECT %s FROM customers ORDER BY created_at, id", customerColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all customers: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// EnableHNSW builds the in-memory candidate index from all stored customers
// and routes subsequent nearest queries through it.
func (r *CustomerRepository) EnableHNSW(ctx context.Context) error {
	customers, err := r.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load customers for HNSW build: %w", err)
	}

	ix := database.NewCandidateIndex()
	skipped, err := ix.BuildFromCustomers(customers)
	if err != nil {
		return fmt.Errorf("build HNSW index: %w", err)
	}
	if skipped > 0 {
		log.Printf("HNSW build skipped %d customers with undecodable embeddings", skipped)
	}

	r.hnswIndex = ix
	r.hnswEnabled = true
	return nil
}

// HNSWCount returns the number of indexed candidates.
func (r *CustomerRepository) HNSWCount() int {
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Len()
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s scanner) (*database.Customer, error) {
	var c database.Customer
	var gender string
	if err := s.Scan(&c.ID, &c.PosID, &gender, &c.Age, &c.PhoneNumber, &c.FaceEmbedding, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Gender = database.Gender(gender)
	return &c, nil
}

func scanCustomers(rows *sql.Rows) ([]database.Customer, error) {
	var customers []database.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
