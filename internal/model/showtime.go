package model

import "time"

// Showtime carries the authoritative pricing and availability data the
// backend reports for one screening: the per-type price table, the full
// seat layout of the screen, and the seats already committed to
// confirmed bookings.
//
// Fields:
//  ID          – showtime identifier.
//  MovieID     – movie being screened.
//  TheaterID   – theater the screen belongs to.
//  ScreenID    – screen (hall) of this showtime.
//  StartsAt    – screening start time.
//  Prices      – price per seat type in minor currency units.
//  Layout      – every seat of the screen.
//  BookedSeats – seats committed to confirmed bookings.
type Showtime struct {
	ID          string           `json:"id"`
	MovieID     string           `json:"movie_id"`
	TheaterID   string           `json:"theater_id"`
	ScreenID    string           `json:"screen_id"`
	StartsAt    time.Time        `json:"starts_at"`
	Prices      map[string]int64 `json:"prices"`
	Layout      []Seat           `json:"seat_layout"`
	BookedSeats []BookedSeat     `json:"booked_seats"`
}

// PriceFor returns the price of the seat with the given key by scanning
// the layout for a matching seat and looking its type up in the price
// table.  Layouts are a few hundred seats at most, so the linear scan
// is fine.  Returns 0 for unknown keys or unpriced types.
func (st *Showtime) PriceFor(key string) int64 {
	for _, s := range st.Layout {
		if s.Key() == key {
			return st.Prices[s.Type]
		}
	}
	return 0
}
