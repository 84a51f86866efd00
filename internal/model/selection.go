package model

import "time"

// SelectionRecord is the locally persisted, expiring snapshot of an
// in-progress seat selection.  It is a convenience cache, not a source
// of truth: the backend holds the authoritative seat locks and booking
// state, and the record exists so a selection survives a process
// restart.  A record whose ExpiresAt has passed is condemned and must
// be treated as absent.
//
// Fields:
//  Seats          – seat-keys ("A1") in selection order.
//  ScreenID       – opaque screen identifier from the catalog.
//  MovieID        – opaque movie identifier.
//  ShowtimeID     – opaque showtime identifier.
//  TheaterID      – opaque theater identifier.
//  BookingID      – set once a server-side booking exists.
//  TotalAmount    – net payable amount after discount, minor units.
//  OriginalAmount – gross amount before discount.
//  CouponCode     – applied coupon code; empty when no coupon.
//  CouponDiscount – discount amount of the applied coupon.
//  AppliedCoupon  – coupon object returned by validation.
//  Timestamp      – last write time.
//  ExpiresAt      – absolute expiry of the selection hold.
type SelectionRecord struct {
	Seats          []string  `json:"seats"`
	ScreenID       string    `json:"screen_id"`
	MovieID        string    `json:"movie_id"`
	ShowtimeID     string    `json:"showtime_id"`
	TheaterID      string    `json:"theater_id"`
	BookingID      string    `json:"booking_id,omitempty"`
	TotalAmount    int64     `json:"total_amount"`
	OriginalAmount int64     `json:"original_amount"`
	CouponCode     string    `json:"coupon_code,omitempty"`
	CouponDiscount int64     `json:"coupon_discount,omitempty"`
	AppliedCoupon  *Coupon   `json:"applied_coupon,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// HasSeat reports whether the given seat-key is part of the selection.
func (r *SelectionRecord) HasSeat(key string) bool {
	for _, s := range r.Seats {
		if s == key {
			return true
		}
	}
	return false
}

// HasCoupon reports whether a coupon is currently applied.  The three
// coupon fields are present together or absent together; the code is
// the canonical presence marker.
func (r *SelectionRecord) HasCoupon() bool {
	return r.CouponCode != ""
}

// Coupon is the coupon object returned by the validation endpoint and
// stored alongside the discount in the selection record.
type Coupon struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name,omitempty"`
	DiscountAmount int64  `json:"discount_amount"`
}
