package model

import "time"

// BookingStatus is the lifecycle state of a server-side booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingExpired   BookingStatus = "EXPIRED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BookingSeat is one seat inside a booking payload, addressed by row,
// number and pricing type.
type BookingSeat struct {
	Row    string `json:"row"`
	Number int    `json:"number"`
	Type   string `json:"type"`
}

// Key returns the seat-key of the booking seat.
func (s BookingSeat) Key() string {
	return SeatKey(s.Row, s.Number)
}

// Booking is the server-side booking created from a selection.  Only
// the fields the client reads back are modeled; the backend owns the
// rest.
//
// Fields:
//  ID             – booking identifier returned on creation.
//  ShowtimeID     – showtime the booking belongs to.
//  Seats          – seats included in the booking.
//  CouponCode     – coupon applied at creation time, if any.
//  CouponDiscount – discount amount applied.
//  TotalAmount    – net amount payable.
//  Status         – lifecycle status.
//  ExpiresAt      – authoritative payment deadline for the booking.
type Booking struct {
	ID             string        `json:"booking_id"`
	ShowtimeID     string        `json:"showtime_id"`
	Seats          []BookingSeat `json:"seats"`
	CouponCode     string        `json:"coupon_code,omitempty"`
	CouponDiscount int64         `json:"coupon_discount,omitempty"`
	TotalAmount    int64         `json:"total_amount"`
	Status         BookingStatus `json:"status"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// Payment methods understood by the checkout flow.  Bank transfer
// produces an instructions page, gateway redirects to a hosted payment
// URL, on-site is treated as immediately successful.
const (
	PaymentBankTransfer = "bank_transfer"
	PaymentGateway      = "gateway"
	PaymentOnSite       = "on_site"
)

// Payment is the server-side payment record attached to a booking.
type Payment struct {
	ID         string `json:"payment_id"`
	BookingID  string `json:"booking_id"`
	Method     string `json:"payment_method"`
	Status     string `json:"status,omitempty"`
	PaymentURL string `json:"payment_url,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
}
