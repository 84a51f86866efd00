package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/booking-client/internal/api"
	"github.com/cinepass/booking-client/internal/model"
)

func TestLoginInstallsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/login", r.URL.Path)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "demo@cinepass.io", creds["email"])
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	token, err := c.Login(context.Background(), "demo@cinepass.io", "demo-pass")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "tok-123", c.Token())
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(model.Showtime{ID: "S1"})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	c.SetToken("tok-abc")
	st, err := c.GetShowtime(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", st.ID)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestCreateBookingGeneratesIdempotencyKey(t *testing.T) {
	var headerKey string
	var req api.CreateBookingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/bookings", r.URL.Path)
		headerKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.Booking{ID: "b-1"})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	booking, err := c.CreateBooking(context.Background(), api.CreateBookingRequest{
		ShowtimeID: "S1",
		Seats:      []model.BookingSeat{{Row: "A", Number: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", booking.ID)
	assert.NotEmpty(t, headerKey, "an omitted key is generated client side")
	assert.Equal(t, headerKey, req.IdempotencyKey, "header and body carry the same key")
}

func TestCreateBookingKeepsCallerKey(t *testing.T) {
	var headerKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(model.Booking{ID: "b-1"})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	_, err := c.CreateBooking(context.Background(), api.CreateBookingRequest{
		ShowtimeID:     "S1",
		IdempotencyKey: "attempt-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "attempt-7", headerKey)
}

func TestGetLockedSeatsUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/showtimes/S1/locked-seats", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"locked_seats": []model.SeatLock{
				{SeatRow: "A", SeatNumber: 1, UserID: "u2"},
			},
		})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	locks, err := c.GetLockedSeats(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "u2", locks[0].UserID)
}

func TestReleaseSeatsPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]int{"released": 1})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	err := c.ReleaseSeats(context.Background(), "S1", []api.SeatRef{{SeatRow: "A", SeatNumber: 1}})
	require.NoError(t, err)
	assert.Equal(t, "/v1/bookings/delete/showtime/S1", gotPath)
}

func TestGetBookingExpiration(t *testing.T) {
	exp := time.Now().Add(4 * time.Minute).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/bookings/b-1/expiration", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]time.Time{"expires_at": exp})
	}))
	defer srv.Close()

	c := api.New(srv.URL, time.Second)
	got, err := c.GetBookingExpiration(context.Background(), "b-1")
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		message  string
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, "token expired", api.ErrUnauthorized},
		{"not found", http.StatusNotFound, "showtime not found", api.ErrNotFound},
		{"conflict", http.StatusConflict, "seats unavailable", api.ErrConflict},
		{"server error", http.StatusBadGateway, "", api.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]string{"error": tc.message})
			}))
			defer srv.Close()

			c := api.New(srv.URL, time.Second)
			_, err := c.GetShowtime(context.Background(), "S1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)

			var apiErr *api.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := api.New(srv.URL, time.Second)
	_, err := c.GetShowtime(context.Background(), "S1")
	assert.ErrorIs(t, err, api.ErrUnavailable)
}
