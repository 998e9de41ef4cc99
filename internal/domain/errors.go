package domain

import "errors"

var (
	ErrCategoryNotFound     = errors.New("room category not found")
	ErrCategoryRetired      = errors.New("room category retired")
	ErrCategoryExists       = errors.New("room category already exists")
	ErrNoAvailability       = errors.New("no availability for requested stay")
	ErrReleaseExceedsHeld   = errors.New("release exceeds reserved rooms")
	ErrInvalidStay          = errors.New("invalid stay range")
	ErrInvalidRooms         = errors.New("invalid room count")
	ErrInvalidCapacity      = errors.New("invalid capacity")
	ErrRequestIDRequired    = errors.New("request id required")
	ErrIdempotencyConflict  = errors.New("request id reused with a different payload")
	ErrTxConflict           = errors.New("inventory write conflict")
	ErrHotelIDRequired      = errors.New("hotel id required")
	ErrCategoryNameRequired = errors.New("category name required")
	ErrInvalidID            = errors.New("invalid id")
)
