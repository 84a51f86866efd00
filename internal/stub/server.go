// Package stub is a self-contained in-memory implementation of the
// booking backend API.  It exists so the client core can be developed
// and integration-tested without any external service: cmd/stubd serves
// it on a port, and the test suite mounts it on httptest.  It mirrors
// the real backend's observable semantics (lock expiry, booked-seat
// precedence, idempotent creation) but keeps everything in one
// process's memory.
package stub

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinepass/booking-client/internal/model"
)

// Options configures a stub server.  Zero values fall back to
// development defaults.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	LockTTL   time.Duration
}

type user struct {
	id           string
	passwordHash []byte
}

// Server holds the in-memory state behind the API.  All maps are
// guarded by one mutex; the dataset is tiny and contention is not a
// concern here.
type Server struct {
	secret   string
	tokenTTL time.Duration
	lockTTL  time.Duration

	mu          sync.Mutex
	users       map[string]user
	showtimes   map[string]*model.Showtime
	locks       map[string]map[string]model.SeatLock
	bookings    map[string]*model.Booking
	payments    map[string]*model.Payment
	coupons     map[string]model.Coupon
	bookingIdem map[string]string
	paymentIdem map[string]string
}

// New returns a seeded stub server.
func New(opts Options) *Server {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "dev-secret"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	s := &Server{
		secret:      opts.JWTSecret,
		tokenTTL:    opts.TokenTTL,
		lockTTL:     opts.LockTTL,
		users:       map[string]user{},
		showtimes:   map[string]*model.Showtime{},
		locks:       map[string]map[string]model.SeatLock{},
		bookings:    map[string]*model.Booking{},
		payments:    map[string]*model.Payment{},
		coupons:     map[string]model.Coupon{},
		bookingIdem: map[string]string{},
		paymentIdem: map[string]string{},
	}
	s.seed()
	return s
}

// Router builds the echo instance with every route registered.
// Unauthenticated routes are login and coupon validation; everything
// else requires a bearer token.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.GET("/healthz", s.health)
	e.POST("/v1/auth/login", s.login)
	e.POST("/v1/coupons/validate", s.validateCoupon)

	auth := e.Group("/v1")
	auth.Use(s.jwtAuth)
	auth.GET("/showtimes/:id", s.getShowtime)
	auth.GET("/showtimes/:id/locked-seats", s.getLockedSeats)
	auth.POST("/bookings", s.createBooking)
	auth.PUT("/bookings/:id", s.updateBooking)
	auth.POST("/bookings/delete/showtime/:id", s.releaseSeats)
	auth.GET("/bookings/:id/expiration", s.bookingExpiration)
	auth.POST("/payments", s.createPayment)
	return e
}

// Start serves the stub on the given address, blocking until the
// server stops.
func (s *Server) Start(addr string) error {
	return s.Router().Start(addr)
}

// seed populates one demo user, one showtime with a five-row layout
// and a weekend coupon.  Rows A-C are regular, D-E premium.
func (s *Server) seed() {
	hash, err := bcrypt.GenerateFromPassword([]byte("demo-pass"), bcrypt.DefaultCost)
	if err != nil {
		panic("stub: seeding password hash: " + err.Error())
	}
	s.users["demo@cinepass.io"] = user{id: "u-demo", passwordHash: hash}

	layout := make([]model.Seat, 0, 40)
	for _, row := range []string{"A", "B", "C", "D", "E"} {
		seatType := model.SeatTypeRegular
		if row == "D" || row == "E" {
			seatType = model.SeatTypePremium
		}
		for n := 1; n <= 8; n++ {
			layout = append(layout, model.Seat{Row: row, Number: n, Type: seatType, Active: true})
		}
	}
	s.showtimes["S1"] = &model.Showtime{
		ID:        "S1",
		MovieID:   "M1",
		TheaterID: "T1",
		ScreenID:  "SCR1",
		StartsAt:  time.Now().Add(6 * time.Hour).UTC(),
		Prices: map[string]int64{
			model.SeatTypeRegular: 80000,
			model.SeatTypePremium: 120000,
		},
		Layout:      layout,
		BookedSeats: []model.BookedSeat{{SeatRow: "E", SeatNumber: 8}},
	}
	s.locks["S1"] = map[string]model.SeatLock{}

	s.coupons["WEEKEND50"] = model.Coupon{
		ID:             "c-weekend",
		Code:           "WEEKEND50",
		Name:           "Weekend special",
		DiscountAmount: 50000,
	}
}

// sweepLocks drops every expired lock for the showtime.  Called before
// any read or write of the lock table, matching the backend behavior
// of expiring holds before checking availability.
func (s *Server) sweepLocks(showtimeID string) {
	now := time.Now()
	for key, l := range s.locks[showtimeID] {
		if !l.ExpiresAt.After(now) {
			delete(s.locks[showtimeID], key)
		}
	}
}
