package domain

// RoomCategory is a class of bookable rooms within one hotel sharing a
// capacity pool (no room-level assignment).
type RoomCategory struct {
	ID         string
	HotelID    string
	Name       string
	TotalRooms int
	// Retired categories stop accepting reservations but are never deleted
	// while bookings reference them.
	Retired bool
}
