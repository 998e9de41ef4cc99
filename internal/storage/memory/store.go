package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tawhid126/hotelhub/internal/domain"
)

// Store is an in-memory inventory store with the same compare-and-apply
// contract as the Postgres store. Used in tests and databaseless
// development mode. A single mutex covers the maps, but each contract
// call is short; contention between a ledger read and apply still
// surfaces as ErrTxConflict, exercising the caller's retry loop.
type Store struct {
	mu         sync.RWMutex
	categories map[string]domain.RoomCategory
	nights     map[string]int
}

func NewStore() *Store {
	return &Store{
		categories: make(map[string]domain.RoomCategory),
		nights:     make(map[string]int),
	}
}

func (s *Store) Category(_ context.Context, id string) (domain.RoomCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.categories[id]
	if !ok {
		return domain.RoomCategory{}, domain.ErrCategoryNotFound
	}
	return cat, nil
}

func (s *Store) CreateCategory(_ context.Context, cat domain.RoomCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[cat.ID]; ok {
		return domain.ErrCategoryExists
	}
	for _, existing := range s.categories {
		if existing.HotelID == cat.HotelID && existing.Name == cat.Name {
			return domain.ErrCategoryExists
		}
	}
	s.categories[cat.ID] = cat
	return nil
}

func (s *Store) ListCategories(_ context.Context, hotelID string) ([]domain.RoomCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomCategory, 0)
	for _, cat := range s.categories {
		if hotelID == "" || cat.HotelID == hotelID {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) RetireCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[id]
	if !ok {
		return domain.ErrCategoryNotFound
	}
	cat.Retired = true
	s.categories[id] = cat
	return nil
}

func (s *Store) NightCount(_ context.Context, categoryID string, night time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.categories[categoryID]; !ok {
		return 0, domain.ErrCategoryNotFound
	}
	return s.nights[nightKey(categoryID, night)], nil
}

func (s *Store) CompareAndApply(_ context.Context, categoryID string, night time.Time, expected, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	key := nightKey(categoryID, night)
	cur := s.nights[key]
	if cur != expected {
		return domain.ErrTxConflict
	}
	next := cur + delta
	if next < 0 {
		return domain.ErrTxConflict
	}
	if next == 0 {
		delete(s.nights, key)
		return nil
	}
	s.nights[key] = next
	return nil
}

func nightKey(categoryID string, night time.Time) string {
	return categoryID + "|" + night.UTC().Format(time.DateOnly)
}
