// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

// CustomerRepository is an in-memory implementation of database.CustomerWriter.
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]database.Customer
	order     []uuid.UUID // insertion order, for stable listings

	// Error injection
	FindError  error
	SaveError  error
	CountError error
}

// NewCustomerRepository creates a new mock customer repository.
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{
		customers: make(map[uuid.UUID]database.Customer),
	}
}

// AddCustomer adds a customer to the mock store.
func (m *CustomerRepository) AddCustomer(c database.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.customers[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.customers[c.ID] = c
}

func (m *CustomerRepository) list(filter func(database.Customer) bool) []database.Customer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Customer
	for _, id := range m.order {
		c := m.customers[id]
		if filter(c) {
			out = append(out, c)
		}
	}
	return out
}

// FindByPosGenderAndAgeBetween implements database.CustomerReader.
func (m *CustomerRepository) FindByPosGenderAndAgeBetween(_ context.Context, posID uuid.UUID, gender database.Gender, minAge, maxAge int) ([]database.Customer, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	return m.list(func(c database.Customer) bool {
		return c.PosID == posID && c.Gender == gender && c.Age >= minAge && c.Age <= maxAge
	}), nil
}

// FindAllByPos implements database.CustomerReader.
func (m *CustomerRepository) FindAllByPos(_ context.Context, posID uuid.UUID) ([]database.Customer, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	return m.list(func(c database.Customer) bool {
		return c.PosID == posID
	}), nil
}

// FindNearestByPos implements database.CustomerReader with an exact scan
// (mocks do not need an index).
func (m *CustomerRepository) FindNearestByPos(_ context.Context, posID uuid.UUID, vec []float64, limit int) ([]database.Customer, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	candidates := m.list(func(c database.Customer) bool {
		return c.PosID == posID
	})

	type scored struct {
		c   database.Customer
		sim float64
		pos int
	}
	scoredList := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		cv, err := embedding.DecodeRaw(c.FaceEmbedding)
		if err != nil || len(cv) != len(vec) {
			continue
		}
		scoredList = append(scoredList, scored{c, embedding.CosineSimilarity(vec, cv), i})
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].sim > scoredList[j].sim
	})
	if limit > len(scoredList) {
		limit = len(scoredList)
	}
	out := make([]database.Customer, 0, limit)
	for _, s := range scoredList[:limit] {
		out = append(out, s.c)
	}
	return out, nil
}

// FindByID implements database.CustomerReader.
func (m *CustomerRepository) FindByID(_ context.Context, id uuid.UUID) (*database.Customer, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

// FindByPosAndPhone implements database.CustomerReader.
func (m *CustomerRepository) FindByPosAndPhone(_ context.Context, posID uuid.UUID, phone string) (*database.Customer, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	found := m.list(func(c database.Customer) bool {
		return c.PosID == posID && c.PhoneNumber == phone
	})
	if len(found) == 0 {
		return nil, database.ErrNotFound
	}
	return &found[0], nil
}

// CountByPos implements database.CustomerReader.
func (m *CustomerRepository) CountByPos(_ context.Context, posID uuid.UUID) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	return len(m.list(func(c database.Customer) bool { return c.PosID == posID })), nil
}

// Save implements database.CustomerWriter.
func (m *CustomerRepository) Save(_ context.Context, c *database.Customer) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.AddCustomer(*c)
	return nil
}

// KioskRepository is an in-memory implementation of database.KioskReader.
type KioskRepository struct {
	mu     sync.RWMutex
	kiosks map[uuid.UUID]uuid.UUID // kiosk ID -> POS ID

	// Error injection
	GetError error
}

// NewKioskRepository creates a new mock kiosk repository.
func NewKioskRepository() *KioskRepository {
	return &KioskRepository{
		kiosks: make(map[uuid.UUID]uuid.UUID),
	}
}

// AddKiosk registers a kiosk under a POS.
func (m *KioskRepository) AddKiosk(kioskID, posID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kiosks[kioskID] = posID
}

// GetPosID implements database.KioskReader.
func (m *KioskRepository) GetPosID(_ context.Context, kioskID uuid.UUID) (uuid.UUID, error) {
	if m.GetError != nil {
		return uuid.Nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	posID, ok := m.kiosks[kioskID]
	if !ok {
		return uuid.Nil, database.ErrNotFound
	}
	return posID, nil
}
