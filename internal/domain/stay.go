package domain

import "time"

// MaxStayNights bounds how many nights a single reservation may cover.
const MaxStayNights = 90

// Stay is a half-open date range: the guest occupies every night from
// CheckIn (inclusive) to CheckOut (exclusive). Both are UTC midnights.
type Stay struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Night normalizes an instant to the UTC midnight that identifies its night.
func Night(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewStay builds a normalized stay from arbitrary instants.
func NewStay(checkIn, checkOut time.Time) Stay {
	return Stay{CheckIn: Night(checkIn), CheckOut: Night(checkOut)}
}

func (s Stay) Validate() error {
	if s.CheckIn.IsZero() || s.CheckOut.IsZero() {
		return ErrInvalidStay
	}
	if !s.CheckOut.After(s.CheckIn) {
		return ErrInvalidStay
	}
	if s.CheckOut.Sub(s.CheckIn) > MaxStayNights*24*time.Hour {
		return ErrInvalidStay
	}
	return nil
}

// Nights expands the stay into the individual nights it occupies.
func (s Stay) Nights() []time.Time {
	nights := make([]time.Time, 0, int(s.CheckOut.Sub(s.CheckIn)/(24*time.Hour)))
	for night := s.CheckIn; night.Before(s.CheckOut); night = night.AddDate(0, 0, 1) {
		nights = append(nights, night)
	}
	return nights
}
