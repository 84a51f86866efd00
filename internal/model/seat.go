package model

import (
	"fmt"
	"strconv"
)

// Seat types as they appear in a showtime's price table.  The set is
// open ended; these are the values the seeded catalog uses.
const (
	SeatTypeRegular = "regular"
	SeatTypePremium = "premium"
)

// Seat describes one seat in a screen's layout.  Seats are identified
// by their row letter and number within the row; the concatenation of
// the two is the seat-key used everywhere else ("A1").
//
// Fields:
//  Row    – row letter or label.
//  Number – seat number within the row.
//  Type   – pricing type (regular, premium, ...).
//  Active – whether the seat can be sold at all.
type Seat struct {
	Row    string `json:"row"`
	Number int    `json:"number"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Key returns the seat-key of this seat, e.g. "A1".
func (s Seat) Key() string {
	return SeatKey(s.Row, s.Number)
}

// SeatKey builds a seat-key from a row label and seat number.
func SeatKey(row string, number int) string {
	return row + strconv.Itoa(number)
}

// SplitSeatKey splits a seat-key back into its row label and seat
// number.  The row is everything before the first digit, so multi
// letter rows ("AA12") round-trip correctly.
func SplitSeatKey(key string) (string, int, error) {
	i := 0
	for i < len(key) && (key[i] < '0' || key[i] > '9') {
		i++
	}
	if i == 0 || i == len(key) {
		return "", 0, fmt.Errorf("malformed seat-key %q", key)
	}
	n, err := strconv.Atoi(key[i:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed seat-key %q", key)
	}
	return key[:i], n, nil
}
