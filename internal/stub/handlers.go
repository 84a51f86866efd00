package stub

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cinepass/booking-client/internal/model"
)

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// getShowtime handles GET /v1/showtimes/:id.
func (s *Server) getShowtime(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.showtimes[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	return c.JSON(http.StatusOK, st)
}

// getLockedSeats handles GET /v1/showtimes/:id/locked-seats.  Expired
// locks are swept before reporting.
func (s *Server) getLockedSeats(c echo.Context) error {
	showtimeID := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[showtimeID]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	s.sweepLocks(showtimeID)
	locks := make([]model.SeatLock, 0, len(s.locks[showtimeID]))
	for _, l := range s.locks[showtimeID] {
		locks = append(locks, l)
	}
	return c.JSON(http.StatusOK, echo.Map{"locked_seats": locks})
}

type bookingRequest struct {
	ShowtimeID     string              `json:"showtime_id"`
	Seats          []model.BookingSeat `json:"seats"`
	CouponCode     string              `json:"coupon_code"`
	CouponDiscount int64               `json:"coupon_discount"`
	TotalAmount    int64               `json:"total_amount"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// createBooking handles POST /v1/bookings.  Creation is idempotent on
// the client-supplied key: replaying the same key returns the booking
// created the first time instead of a duplicate.
func (s *Server) createBooking(c echo.Context) error {
	uid := userID(c)
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats are required"})
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = body.IdempotencyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if id, ok := s.bookingIdem[key]; ok {
			return c.JSON(http.StatusOK, s.bookings[id])
		}
	}
	st, ok := s.showtimes[body.ShowtimeID]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	s.sweepLocks(body.ShowtimeID)

	if unavailable := s.unavailableSeats(st, uid, body.Seats); len(unavailable) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are unavailable",
			"unavailable": unavailable,
		})
	}

	booking := &model.Booking{
		ID:             uuid.NewString(),
		ShowtimeID:     body.ShowtimeID,
		Seats:          body.Seats,
		CouponCode:     body.CouponCode,
		CouponDiscount: body.CouponDiscount,
		TotalAmount:    body.TotalAmount,
		Status:         model.BookingPending,
		ExpiresAt:      time.Now().UTC().Add(s.lockTTL),
	}
	s.lockSeats(body.ShowtimeID, uid, booking)
	s.bookings[booking.ID] = booking
	if key != "" {
		s.bookingIdem[key] = booking.ID
	}
	return c.JSON(http.StatusCreated, booking)
}

// updateBooking handles PUT /v1/bookings/:id with the same payload
// shape as creation.  The old seat locks are replaced by locks on the
// new seat set.
func (s *Server) updateBooking(c echo.Context) error {
	uid := userID(c)
	bookingID := c.Param("id")
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	st, ok := s.showtimes[booking.ShowtimeID]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	s.sweepLocks(booking.ShowtimeID)

	// Drop this booking's current locks before availability checks so
	// the update can keep seats it already holds.
	for key, l := range s.locks[booking.ShowtimeID] {
		if l.BookingID == booking.ID {
			delete(s.locks[booking.ShowtimeID], key)
		}
	}
	if unavailable := s.unavailableSeats(st, uid, body.Seats); len(unavailable) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are unavailable",
			"unavailable": unavailable,
		})
	}

	booking.Seats = body.Seats
	booking.CouponCode = body.CouponCode
	booking.CouponDiscount = body.CouponDiscount
	booking.TotalAmount = body.TotalAmount
	booking.ExpiresAt = time.Now().UTC().Add(s.lockTTL)
	s.lockSeats(booking.ShowtimeID, uid, booking)
	return c.JSON(http.StatusOK, booking)
}

// releaseSeats handles POST /v1/bookings/delete/showtime/:id.  Only
// locks held by the calling user are released.
func (s *Server) releaseSeats(c echo.Context) error {
	uid := userID(c)
	showtimeID := c.Param("id")
	var body struct {
		Seats []struct {
			SeatRow    string `json:"seat_row"`
			SeatNumber int    `json:"seat_number"`
		} `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[showtimeID]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	released := 0
	for _, ref := range body.Seats {
		key := model.SeatKey(ref.SeatRow, ref.SeatNumber)
		if l, ok := s.locks[showtimeID][key]; ok && l.UserID == uid {
			delete(s.locks[showtimeID], key)
			released++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// bookingExpiration handles GET /v1/bookings/:id/expiration.
func (s *Server) bookingExpiration(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"expires_at": booking.ExpiresAt})
}

// createPayment handles POST /v1/payments.  Idempotent on the supplied
// key.  A successful payment confirms the booking and commits its
// seats: they move from the lock table into the booked set.
func (s *Server) createPayment(c echo.Context) error {
	var body struct {
		BookingID      string `json:"booking_id"`
		Method         string `json:"payment_method"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = body.IdempotencyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if id, ok := s.paymentIdem[key]; ok {
			return c.JSON(http.StatusOK, s.payments[id])
		}
	}
	booking, ok := s.bookings[body.BookingID]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}

	payment := &model.Payment{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		Method:    body.Method,
		Status:    "pending",
		OrderID:   uuid.NewString(),
	}
	if body.Method == model.PaymentGateway {
		payment.PaymentURL = "https://pay.cinepass.dev/checkout/" + payment.OrderID
	}

	booking.Status = model.BookingConfirmed
	if st, ok := s.showtimes[booking.ShowtimeID]; ok {
		for _, seat := range booking.Seats {
			st.BookedSeats = append(st.BookedSeats, model.BookedSeat{
				SeatRow:    seat.Row,
				SeatNumber: seat.Number,
			})
			delete(s.locks[booking.ShowtimeID], seat.Key())
		}
	}

	s.payments[payment.ID] = payment
	if key != "" {
		s.paymentIdem[key] = payment.ID
	}
	return c.JSON(http.StatusCreated, payment)
}

// validateCoupon handles POST /v1/coupons/validate.
func (s *Server) validateCoupon(c echo.Context) error {
	var body struct {
		Code        string `json:"code"`
		MovieID     string `json:"movie_id"`
		TheaterID   string `json:"theater_id"`
		TotalAmount int64  `json:"total_amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coupon, ok := s.coupons[body.Code]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon code"})
	}
	if body.TotalAmount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "coupon requires a non-empty order"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"coupon":          coupon,
		"discount_amount": coupon.DiscountAmount,
	})
}

// unavailableSeats returns the seat-keys of requested seats that are
// booked or locked by another user.  The caller holds the mutex.
func (s *Server) unavailableSeats(st *model.Showtime, uid string, seats []model.BookingSeat) []string {
	booked := map[string]struct{}{}
	for _, b := range st.BookedSeats {
		booked[b.Key()] = struct{}{}
	}
	var unavailable []string
	for _, seat := range seats {
		key := seat.Key()
		if _, ok := booked[key]; ok {
			unavailable = append(unavailable, key)
			continue
		}
		if l, ok := s.locks[st.ID][key]; ok && l.UserID != uid {
			unavailable = append(unavailable, key)
		}
	}
	return unavailable
}

// lockSeats writes a lock for every seat of the booking.  The caller
// holds the mutex and has already verified availability.
func (s *Server) lockSeats(showtimeID, uid string, booking *model.Booking) {
	if s.locks[showtimeID] == nil {
		s.locks[showtimeID] = map[string]model.SeatLock{}
	}
	for _, seat := range booking.Seats {
		s.locks[showtimeID][seat.Key()] = model.SeatLock{
			SeatRow:    seat.Row,
			SeatNumber: seat.Number,
			UserID:     uid,
			ShowtimeID: showtimeID,
			BookingID:  booking.ID,
			ExpiresAt:  booking.ExpiresAt,
		}
	}
}
