package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tawhid126/hotelhub/internal/domain"
)

// InventoryStore persists room categories and per-night reserved counts.
// Mutation goes through a single conditional UPDATE so the
// compare-and-apply contract holds without explicit transactions or row
// locks: a lost race shows up as zero affected rows.
type InventoryStore struct {
	pool *pgxpool.Pool
}

func NewInventoryStore(pool *pgxpool.Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

func (s *InventoryStore) Category(ctx context.Context, id string) (domain.RoomCategory, error) {
	const query = `SELECT id, hotel_id, name, total_rooms, retired FROM room_categories WHERE id = $1`
	var cat domain.RoomCategory
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&cat.ID, &cat.HotelID, &cat.Name, &cat.TotalRooms, &cat.Retired)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.RoomCategory{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoomCategory{}, domain.ErrCategoryNotFound
		}
		return domain.RoomCategory{}, fmt.Errorf("get category: %w", err)
	}
	return cat, nil
}

func (s *InventoryStore) CreateCategory(ctx context.Context, cat domain.RoomCategory) error {
	const stmt = `
INSERT INTO room_categories (id, hotel_id, name, total_rooms, retired)
VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, stmt, cat.ID, cat.HotelID, cat.Name, cat.TotalRooms, cat.Retired)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCategoryExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *InventoryStore) ListCategories(ctx context.Context, hotelID string) ([]domain.RoomCategory, error) {
	const query = `
SELECT id, hotel_id, name, total_rooms, retired
FROM room_categories
WHERE $1 = '' OR hotel_id = $1
ORDER BY name`

	rows, err := s.pool.Query(ctx, query, hotelID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RoomCategory, 0)
	for rows.Next() {
		var cat domain.RoomCategory
		if err := rows.Scan(&cat.ID, &cat.HotelID, &cat.Name, &cat.TotalRooms, &cat.Retired); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *InventoryStore) RetireCategory(ctx context.Context, id string) error {
	const stmt = `UPDATE room_categories SET retired = TRUE WHERE id = $1`
	tag, err := s.pool.Exec(ctx, stmt, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("retire category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func (s *InventoryStore) NightCount(ctx context.Context, categoryID string, night time.Time) (int, error) {
	const query = `SELECT reserved FROM room_nights WHERE category_id = $1 AND night = $2`
	var reserved int
	err := s.pool.QueryRow(ctx, query, categoryID, night).Scan(&reserved)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// Nights materialize on first reservation.
			return 0, nil
		}
		return 0, fmt.Errorf("night count: %w", err)
	}
	return reserved, nil
}

func (s *InventoryStore) CompareAndApply(ctx context.Context, categoryID string, night time.Time, expected, delta int) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if expected == 0 {
		// The night row may not exist yet; upsert keeps first writers and
		// racing writers on the same conditional path.
		const stmt = `
INSERT INTO room_nights (category_id, night, reserved)
VALUES ($1, $2, $3)
ON CONFLICT (category_id, night)
DO UPDATE SET reserved = room_nights.reserved + $3
WHERE room_nights.reserved = 0`
		tag, err = s.pool.Exec(ctx, stmt, categoryID, night, delta)
	} else {
		const stmt = `
UPDATE room_nights
SET reserved = reserved + $3
WHERE category_id = $1 AND night = $2 AND reserved = $4`
		tag, err = s.pool.Exec(ctx, stmt, categoryID, night, delta, expected)
	}
	if err != nil {
		switch {
		case isCheckViolation(err):
			return domain.ErrTxConflict
		case isForeignKeyViolation(err):
			return domain.ErrCategoryNotFound
		case isInvalidUUID(err):
			return domain.ErrInvalidID
		}
		return fmt.Errorf("apply night delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTxConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
