package domain

// ReservationDelta is one unit of work against the inventory ledger.
// Rooms is always positive; the ledger operation (reserve or release)
// determines the sign applied to the stored counts. RequestID makes
// retried submissions idempotent.
type ReservationDelta struct {
	RequestID      string
	RoomCategoryID string
	Stay           Stay
	Rooms          int
}

func (d ReservationDelta) Validate() error {
	if d.RequestID == "" {
		return ErrRequestIDRequired
	}
	if d.RoomCategoryID == "" {
		return ErrInvalidID
	}
	if d.Rooms <= 0 {
		return ErrInvalidRooms
	}
	return d.Stay.Validate()
}
