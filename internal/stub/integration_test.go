package stub_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/booking-client/internal/api"
	"github.com/cinepass/booking-client/internal/checkout"
	"github.com/cinepass/booking-client/internal/identity"
	"github.com/cinepass/booking-client/internal/model"
	"github.com/cinepass/booking-client/internal/reconcile"
	"github.com/cinepass/booking-client/internal/selection"
	"github.com/cinepass/booking-client/internal/store"
	"github.com/cinepass/booking-client/internal/stub"
)

func newBackend(t *testing.T) (*httptest.Server, *api.Client) {
	t.Helper()
	srv := httptest.NewServer(stub.New(stub.Options{}).Router())
	t.Cleanup(srv.Close)
	return srv, api.New(srv.URL, 5*time.Second)
}

func login(t *testing.T, client *api.Client) string {
	t.Helper()
	token, err := client.Login(context.Background(), "demo@cinepass.io", "demo-pass")
	require.NoError(t, err)
	uid, err := identity.Subject(token)
	require.NoError(t, err)
	return uid
}

func seatFromLayout(t *testing.T, showtime *model.Showtime, key string) model.Seat {
	t.Helper()
	for _, s := range showtime.Layout {
		if s.Key() == key {
			return s
		}
	}
	t.Fatalf("seat %s not in layout", key)
	return model.Seat{}
}

func TestFullBookingFlow(t *testing.T) {
	ctx := context.Background()
	_, client := newBackend(t)
	uid := login(t, client)
	assert.Equal(t, "u-demo", uid)

	showtime, err := client.GetShowtime(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, showtime.Layout, 40)
	require.Equal(t, []model.BookedSeat{{SeatRow: "E", SeatNumber: 8}}, showtime.BookedSeats)

	st := store.NewFile(filepath.Join(t.TempDir(), "sel.json"), 5*time.Minute)
	engine := reconcile.New(client, st, uid, "S1")
	require.NoError(t, engine.Reconcile(ctx))

	ctrl := selection.New(client, st, engine, selection.Context{
		ScreenID:   showtime.ScreenID,
		MovieID:    showtime.MovieID,
		ShowtimeID: showtime.ID,
		TheaterID:  showtime.TheaterID,
	})
	require.NoError(t, ctrl.VerifyScreen(showtime.ScreenID))

	// One regular and one premium seat.
	require.NoError(t, ctrl.ToggleSeat(ctx, seatFromLayout(t, showtime, "A1")))
	require.NoError(t, ctrl.ToggleSeat(ctx, seatFromLayout(t, showtime, "D1")))

	rec, err := st.Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(200000), rec.TotalAmount)

	coupon, err := ctrl.ApplyCoupon(ctx, "WEEKEND50")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), coupon.DiscountAmount)

	rec, err = st.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(150000), rec.TotalAmount)
	assert.Equal(t, int64(200000), rec.OriginalAmount)

	orch := checkout.New(client, st, showtime)
	require.NoError(t, orch.ConfirmBooking(ctx))
	require.NotEmpty(t, orch.BookingID())
	assert.Equal(t, checkout.StepPayment, orch.Step())

	// Confirmation locked the seats server side.
	locks, err := client.GetLockedSeats(ctx, "S1")
	require.NoError(t, err)
	keys := make([]string, 0, len(locks))
	for _, l := range locks {
		assert.Equal(t, uid, l.UserID)
		keys = append(keys, l.Key())
	}
	assert.ElementsMatch(t, []string{"A1", "D1"}, keys)

	exp, err := client.GetBookingExpiration(ctx, orch.BookingID())
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	handoff, err := orch.ChoosePayment(ctx, model.PaymentBankTransfer)
	require.NoError(t, err)
	assert.Equal(t, checkout.TargetInstructions, handoff.Target)
	assert.NotEmpty(t, handoff.PaymentID)

	// Payment confirmed the booking: seats are booked, locks are gone.
	showtime, err = client.GetShowtime(ctx, "S1")
	require.NoError(t, err)
	bookedKeys := make([]string, 0, len(showtime.BookedSeats))
	for _, b := range showtime.BookedSeats {
		bookedKeys = append(bookedKeys, b.Key())
	}
	assert.ElementsMatch(t, []string{"A1", "D1", "E8"}, bookedKeys)

	locks, err = client.GetLockedSeats(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, locks)

	rec, err = st.Load()
	require.NoError(t, err)
	assert.Nil(t, rec, "handoff clears the persisted selection")
}

func TestBookingConflictOnBookedSeat(t *testing.T) {
	ctx := context.Background()
	_, client := newBackend(t)
	login(t, client)

	_, err := client.CreateBooking(ctx, api.CreateBookingRequest{
		ShowtimeID: "S1",
		Seats:      []model.BookingSeat{{Row: "E", Number: 8, Type: model.SeatTypePremium}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConflict)
}

func TestIdempotentBookingReplay(t *testing.T) {
	ctx := context.Background()
	_, client := newBackend(t)
	login(t, client)

	req := api.CreateBookingRequest{
		ShowtimeID:     "S1",
		Seats:          []model.BookingSeat{{Row: "B", Number: 3, Type: model.SeatTypeRegular}},
		TotalAmount:    80000,
		IdempotencyKey: "attempt-1",
	}
	first, err := client.CreateBooking(ctx, req)
	require.NoError(t, err)

	second, err := client.CreateBooking(ctx, req)
	require.NoError(t, err, "replaying the same key is not a conflict")
	assert.Equal(t, first.ID, second.ID, "replay returns the original booking")

	locks, err := client.GetLockedSeats(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, locks, 1)
}

func TestReleaseSeatsDropsOwnLocks(t *testing.T) {
	ctx := context.Background()
	_, client := newBackend(t)
	login(t, client)

	_, err := client.CreateBooking(ctx, api.CreateBookingRequest{
		ShowtimeID:  "S1",
		Seats:       []model.BookingSeat{{Row: "C", Number: 5, Type: model.SeatTypeRegular}},
		TotalAmount: 80000,
	})
	require.NoError(t, err)

	err = client.ReleaseSeats(ctx, "S1", []api.SeatRef{{SeatRow: "C", SeatNumber: 5}})
	require.NoError(t, err)

	locks, err := client.GetLockedSeats(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestUnknownCouponIsRejected(t *testing.T) {
	ctx := context.Background()
	_, client := newBackend(t)

	_, err := client.ValidateCoupon(ctx, api.ValidateCouponRequest{Code: "NOPE", TotalAmount: 80000})
	require.Error(t, err)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	_, client := newBackend(t)
	_, err := client.GetShowtime(context.Background(), "S1")
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}
