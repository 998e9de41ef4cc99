package domain

import "time"

// AvailabilityEvent is the immutable notification emitted once per
// successful ledger mutation. AvailableRooms is the smallest remaining
// count across the mutated stay, i.e. how many rooms can still be booked
// for the whole range.
type AvailabilityEvent struct {
	RoomCategoryID string
	HotelID        string
	AvailableRooms int
	TotalRooms     int
	Timestamp      time.Time
}

// AvailabilityUpdate is the client-facing record pushed over a
// subscription stream. Snapshots and relayed events share this shape.
type AvailabilityUpdate struct {
	RoomCategoryID string
	HotelID        string
	AvailableRooms int
	TotalRooms     int
	Timestamp      time.Time
}

// Update converts a bus event into its client-facing form.
func (e AvailabilityEvent) Update() AvailabilityUpdate {
	return AvailabilityUpdate(e)
}
