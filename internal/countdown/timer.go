// Package countdown runs the visible seat-hold countdown.  The value
// is sourced from the server's booking expiration once a booking
// exists, because the server's clock is authoritative; before that it
// falls back to the locally persisted expiry.  The displayed value can
// therefore jump when a booking is created mid-flow; that
// discontinuity is accepted rather than hidden.
package countdown

import (
	"context"
	"log"
	"time"

	"github.com/cinepass/booking-client/internal/store"
)

// ExpirationSource fetches the authoritative payment deadline of a
// booking.
type ExpirationSource interface {
	GetBookingExpiration(ctx context.Context, bookingID string) (time.Time, error)
}

// Timer ticks at one-second resolution while a seat screen or the
// review step is showing.  Reaching zero fires OnExpire exactly once
// and stops the timer; the owner wires OnExpire to the same cleanup as
// explicit cancellation.
type Timer struct {
	api   ExpirationSource
	store *store.Store

	// BookingID is polled each tick so the timer switches to the
	// server-reported expiry as soon as a booking appears.
	BookingID func() string

	// OnTick receives the seconds left on every tick.
	OnTick func(secondsLeft int)

	// OnExpire fires once when the countdown reaches zero.
	OnExpire func()

	now        func() time.Time
	serverExp  time.Time
	fetchedFor string
}

// New returns a timer using the given expiration source and store.
func New(api ExpirationSource, st *store.Store) *Timer {
	return &Timer{api: api, store: st, now: time.Now}
}

// Run ticks until the countdown reaches zero or the context is
// cancelled.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			left := t.Remaining(ctx)
			if t.OnTick != nil {
				t.OnTick(left)
			}
			if left <= 0 {
				if t.OnExpire != nil {
					t.OnExpire()
				}
				return
			}
		}
	}
}

// Remaining returns the seconds left, preferring the server-reported
// booking expiration when a booking exists.  A failed expiry fetch is
// logged and the local value used; the next tick retries.
func (t *Timer) Remaining(ctx context.Context) int {
	if t.BookingID != nil {
		if id := t.BookingID(); id != "" {
			if t.fetchedFor != id {
				exp, err := t.api.GetBookingExpiration(ctx, id)
				if err != nil {
					log.Printf("countdown: booking expiration fetch failed, using local expiry: %v", err)
				} else {
					t.serverExp = exp
					t.fetchedFor = id
				}
			}
			if t.fetchedFor == id {
				left := t.serverExp.Sub(t.now())
				if left <= 0 {
					return 0
				}
				return int(left / time.Second)
			}
		}
	}
	return t.store.RemainingSeconds()
}
