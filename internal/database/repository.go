package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CustomerReader provides read-only access to match candidates.
type CustomerReader interface {
	// FindByPosGenderAndAgeBetween returns candidates of one POS filtered by
	// gender and an inclusive age range (the narrow search set).
	FindByPosGenderAndAgeBetween(ctx context.Context, posID uuid.UUID, gender Gender, minAge, maxAge int) ([]Customer, error)
	// FindAllByPos returns every candidate of one POS (the broad search set).
	FindAllByPos(ctx context.Context, posID uuid.UUID) ([]Customer, error)
	// FindNearestByPos returns up to limit candidates of one POS ordered by
	// cosine distance to the input vector. Used to bound the broad search on
	// large tenants; callers re-score the result exactly.
	FindNearestByPos(ctx context.Context, posID uuid.UUID, vec []float64, limit int) ([]Customer, error)
	// FindByID retrieves a single customer, ErrNotFound if absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// FindByPosAndPhone retrieves a customer of one POS by phone number.
	FindByPosAndPhone(ctx context.Context, posID uuid.UUID, phone string) (*Customer, error)
	// CountByPos returns the candidate population of one POS.
	CountByPos(ctx context.Context, posID uuid.UUID) (int, error)
}

// CustomerWriter provides write access to customer records.
type CustomerWriter interface {
	CustomerReader

	// Save persists a new customer. The ID is assigned if zero.
	Save(ctx context.Context, c *Customer) error
}

// KioskReader resolves kiosk identifiers to their owning POS.
type KioskReader interface {
	// GetPosID returns the POS owning the kiosk, ErrNotFound if the kiosk is unknown.
	GetPosID(ctx context.Context, kioskID uuid.UUID) (uuid.UUID, error)
}
