package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/tawhid126/hotelhub/internal/domain"
)

type CategoryStore interface {
	CreateCategory(ctx context.Context, cat domain.RoomCategory) error
	ListCategories(ctx context.Context, hotelID string) ([]domain.RoomCategory, error)
	RetireCategory(ctx context.Context, id string) error
}

// AdminService configures room-category capacity pools. Capacity is set
// here once; only the ledger mutates reserved counts afterwards.
type AdminService struct {
	store CategoryStore
}

func NewAdminService(store CategoryStore) *AdminService {
	return &AdminService{store: store}
}

type CreateCategoryInput struct {
	HotelID    string
	Name       string
	TotalRooms int
}

func (s *AdminService) CreateCategory(ctx context.Context, in CreateCategoryInput) (domain.RoomCategory, error) {
	if in.HotelID == "" {
		return domain.RoomCategory{}, domain.ErrHotelIDRequired
	}
	if in.Name == "" {
		return domain.RoomCategory{}, domain.ErrCategoryNameRequired
	}
	if in.TotalRooms <= 0 {
		return domain.RoomCategory{}, domain.ErrInvalidCapacity
	}

	cat := domain.RoomCategory{
		ID:         uuid.NewString(),
		HotelID:    in.HotelID,
		Name:       in.Name,
		TotalRooms: in.TotalRooms,
	}

	if err := s.store.CreateCategory(ctx, cat); err != nil {
		return domain.RoomCategory{}, err
	}
	return cat, nil
}

func (s *AdminService) ListCategories(ctx context.Context, hotelID string) ([]domain.RoomCategory, error) {
	return s.store.ListCategories(ctx, hotelID)
}

// RetireCategory soft-retires a category: existing bookings stand, new
// reservations are refused by the ledger.
func (s *AdminService) RetireCategory(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidID
	}
	return s.store.RetireCategory(ctx, id)
}
