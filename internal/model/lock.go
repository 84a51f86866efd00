package model

import "time"

// SeatLock is a backend-held, time-boxed claim on a seat by a specific
// user.  Locks are read-only on the client: they are fetched during
// reconciliation and never mutated locally.  A lock held by the current
// user is adopted into the local selection; a lock held by anyone else
// makes the seat unselectable until the lock expires.
//
// Fields:
//  SeatRow    – row label of the locked seat.
//  SeatNumber – number of the locked seat.
//  UserID     – holder of the lock.
//  ShowtimeID – showtime the lock belongs to.
//  BookingID  – booking attached to the lock, if any.
//  ExpiresAt  – when the backend releases the lock.
type SeatLock struct {
	SeatRow    string    `json:"seat_row"`
	SeatNumber int       `json:"seat_number"`
	UserID     string    `json:"user_id"`
	ShowtimeID string    `json:"showtime_id"`
	BookingID  string    `json:"booking_id,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Key returns the seat-key of the locked seat.
func (l SeatLock) Key() string {
	return SeatKey(l.SeatRow, l.SeatNumber)
}

// BookedSeat is a seat permanently committed to a confirmed booking.
// Booked seats are always unselectable and take display precedence over
// lock state for the same seat-key.
type BookedSeat struct {
	SeatRow    string `json:"seat_row"`
	SeatNumber int    `json:"seat_number"`
}

// Key returns the seat-key of the booked seat.
func (b BookedSeat) Key() string {
	return SeatKey(b.SeatRow, b.SeatNumber)
}
