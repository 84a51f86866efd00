package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cinepass/booking-client/internal/model"
)

// Client is a thin HTTP client for the booking backend.  One instance
// is shared by all subsystems; it is safe for concurrent use because it
// holds no mutable state beyond the bearer token, which is set once
// after login.
type Client struct {
	base  string
	token string
	httpc *http.Client
}

// New returns a Client for the given base URL.  A zero timeout falls
// back to ten seconds.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  base,
		httpc: &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent on every subsequent request.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the currently configured bearer token.
func (c *Client) Token() string { return c.token }

// CreateBookingRequest is the payload of POST /bookings.  The
// idempotency key is client generated; when the caller leaves it empty
// the client stamps a fresh one so a transport-level retry can never
// create a second booking.
type CreateBookingRequest struct {
	ShowtimeID     string              `json:"showtime_id"`
	Seats          []model.BookingSeat `json:"seats"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	CouponDiscount int64               `json:"coupon_discount,omitempty"`
	TotalAmount    int64               `json:"total_amount,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

// SeatRef addresses a single seat in a release request.
type SeatRef struct {
	SeatRow    string `json:"seat_row"`
	SeatNumber int    `json:"seat_number"`
}

// CreatePaymentRequest is the payload of POST /payments.
type CreatePaymentRequest struct {
	BookingID      string `json:"booking_id"`
	Method         string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ValidateCouponRequest is the payload of POST /coupons/validate.
type ValidateCouponRequest struct {
	Code        string `json:"code"`
	MovieID     string `json:"movie_id"`
	TheaterID   string `json:"theater_id"`
	TotalAmount int64  `json:"total_amount"`
}

// CouponResult is the successful response of coupon validation.
type CouponResult struct {
	Coupon         model.Coupon `json:"coupon"`
	DiscountAmount int64        `json:"discount_amount"`
}

// Login exchanges credentials for an access token and installs it on
// the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", body, &out); err != nil {
		return "", err
	}
	c.token = out.AccessToken
	return out.AccessToken, nil
}

// GetShowtime fetches a showtime's price table, seat layout and the
// seats committed to confirmed bookings.
func (c *Client) GetShowtime(ctx context.Context, showtimeID string) (*model.Showtime, error) {
	var out model.Showtime
	if err := c.do(ctx, http.MethodGet, "/v1/showtimes/"+showtimeID, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLockedSeats fetches every seat lock currently held for the
// showtime, regardless of holder.
func (c *Client) GetLockedSeats(ctx context.Context, showtimeID string) ([]model.SeatLock, error) {
	var out struct {
		LockedSeats []model.SeatLock `json:"locked_seats"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/showtimes/"+showtimeID+"/locked-seats", "", nil, &out); err != nil {
		return nil, err
	}
	return out.LockedSeats, nil
}

// CreateBooking creates a server-side booking from the selection
// payload and returns it with its booking id populated.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	var out model.Booking
	if err := c.do(ctx, http.MethodPost, "/v1/bookings", req.IdempotencyKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBooking replaces the seat/coupon/total payload of an existing
// booking.
func (c *Client) UpdateBooking(ctx context.Context, bookingID string, req CreateBookingRequest) (*model.Booking, error) {
	var out model.Booking
	if err := c.do(ctx, http.MethodPut, "/v1/bookings/"+bookingID, "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReleaseSeats releases one or more seat locks held by the current
// user on the given showtime.
func (c *Client) ReleaseSeats(ctx context.Context, showtimeID string, seats []SeatRef) error {
	body := struct {
		Seats []SeatRef `json:"seats"`
	}{Seats: seats}
	return c.do(ctx, http.MethodPost, "/v1/bookings/delete/showtime/"+showtimeID, "", body, nil)
}

// GetBookingExpiration returns the authoritative payment deadline of a
// booking.  The server's clock wins over any locally derived countdown.
func (c *Client) GetBookingExpiration(ctx context.Context, bookingID string) (time.Time, error) {
	var out struct {
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/bookings/"+bookingID+"/expiration", "", nil, &out); err != nil {
		return time.Time{}, err
	}
	return out.ExpiresAt, nil
}

// CreatePayment creates a payment record for a booking.  Like booking
// creation it carries a client-generated idempotency key.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	var out model.Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments", req.IdempotencyKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateCoupon asks the backend to validate a coupon code against
// the current gross total.
func (c *Client) ValidateCoupon(ctx context.Context, req ValidateCouponRequest) (*CouponResult, error) {
	var out CouponResult
	if err := c.do(ctx, http.MethodPost, "/v1/coupons/validate", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes one request against the backend.  Non-2xx responses are
// decoded into an *APIError carrying the backend's error message where
// one is present; transport failures map onto ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
