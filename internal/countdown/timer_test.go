package countdown

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/booking-client/internal/store"
)

type fakeExpiration struct {
	exp   time.Time
	err   error
	calls int
}

func (f *fakeExpiration) GetBookingExpiration(context.Context, string) (time.Time, error) {
	f.calls++
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.exp, nil
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.NewFile(filepath.Join(t.TempDir(), "sel.json"), 5*time.Minute)
	seats := []string{"A1"}
	_, err := st.Save(store.Partial{Seats: &seats})
	require.NoError(t, err)
	return st
}

func TestRemainingFallsBackToLocalExpiry(t *testing.T) {
	timer := New(&fakeExpiration{}, seededStore(t))

	left := timer.Remaining(context.Background())
	assert.InDelta(t, 300, left, 2, "no booking yet, the local hold drives the countdown")
}

func TestRemainingPrefersServerExpiry(t *testing.T) {
	base := time.Now()
	src := &fakeExpiration{exp: base.Add(90 * time.Second)}
	timer := New(src, seededStore(t))
	timer.now = func() time.Time { return base }
	timer.BookingID = func() string { return "b-1" }

	assert.Equal(t, 90, timer.Remaining(context.Background()))

	// The expiry is fetched once per booking id, then served from memory.
	timer.Remaining(context.Background())
	assert.Equal(t, 1, src.calls)
}

func TestRemainingRetriesFetchAfterFailure(t *testing.T) {
	base := time.Now()
	src := &fakeExpiration{err: errors.New("backend unreachable")}
	timer := New(src, seededStore(t))
	timer.now = func() time.Time { return base }
	timer.BookingID = func() string { return "b-1" }

	left := timer.Remaining(context.Background())
	assert.InDelta(t, 300, left, 2, "fetch failure falls back to the local expiry")

	src.err = nil
	src.exp = base.Add(45 * time.Second)
	assert.Equal(t, 45, timer.Remaining(context.Background()))
	assert.Equal(t, 2, src.calls)
}

func TestRemainingZeroAfterServerExpiry(t *testing.T) {
	base := time.Now()
	src := &fakeExpiration{exp: base.Add(-time.Second)}
	timer := New(src, seededStore(t))
	timer.now = func() time.Time { return base }
	timer.BookingID = func() string { return "b-1" }

	assert.Equal(t, 0, timer.Remaining(context.Background()))
}

func TestRunFiresExpireOnce(t *testing.T) {
	st := store.NewFile(filepath.Join(t.TempDir(), "sel.json"), 5*time.Minute)
	timer := New(&fakeExpiration{}, st) // empty store: zero seconds left

	expired := make(chan struct{})
	timer.OnExpire = func() { close(expired) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go timer.Run(ctx)

	select {
	case <-expired:
	case <-ctx.Done():
		t.Fatal("timer never expired")
	}
}
