// Package selection implements the seat-toggle side of the client:
// membership changes in the local selection, the lock/unlock calls they
// trigger, and the monetary totals derived from the current seats and
// coupon.  Toggles are optimistic: the local state changes first and
// the next reconciliation corrects it if the backend disagrees.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cinepass/booking-client/internal/api"
	"github.com/cinepass/booking-client/internal/model"
	"github.com/cinepass/booking-client/internal/reconcile"
	"github.com/cinepass/booking-client/internal/store"
)

// ErrSeatUnavailable is returned when a toggle-on targets a seat that
// is inactive, booked, or locked by another user.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrScreenMismatch is returned when the persisted selection belongs
// to a different screen than the one being opened.  The record is
// cleared as a side effect; this indicates a stale or corrupted record
// rather than normal expiry.
var ErrScreenMismatch = errors.New("persisted selection belongs to a different screen")

// API is the slice of the backend client the controller needs.
type API interface {
	ReleaseSeats(ctx context.Context, showtimeID string, seats []api.SeatRef) error
	ValidateCoupon(ctx context.Context, req api.ValidateCouponRequest) (*api.CouponResult, error)
}

// Context identifies the showtime the controller operates on.  The ids
// are stamped into the selection record so checkout can rebuild the
// booking payload from persistence alone.
type Context struct {
	ScreenID   string
	MovieID    string
	ShowtimeID string
	TheaterID  string
}

// Controller mutates the local selection in response to user actions.
// All methods are safe for concurrent use; the store serializes the
// actual record writes.
type Controller struct {
	api    API
	store  *store.Store
	engine *reconcile.Engine
	ids    Context

	// OnSelectionStarted fires when the first seat of a session is
	// selected; the owning screen uses it to start its visible
	// countdown.
	OnSelectionStarted func()

	// settleDelay is how long to wait after a successful unlock before
	// reconciling, giving the backend time to settle the release.
	settleDelay time.Duration

	mu      sync.Mutex
	started bool
}

// New returns a controller bound to one showtime.
func New(a API, st *store.Store, engine *reconcile.Engine, ids Context) *Controller {
	return &Controller{
		api:         a,
		store:       st,
		engine:      engine,
		ids:         ids,
		settleDelay: 500 * time.Millisecond,
	}
}

// VerifyScreen guards against a persisted record that disagrees with
// the screen being opened.  A mismatch condemns the record: it is
// cleared and ErrScreenMismatch returned so the caller can show an
// explicit error instead of silently reusing stale seats.
func (c *Controller) VerifyScreen(screenID string) error {
	rec, err := c.store.Load()
	if err != nil || rec == nil {
		return err
	}
	if rec.ScreenID != "" && rec.ScreenID != screenID {
		_ = c.store.Clear()
		return ErrScreenMismatch
	}
	return nil
}

// ToggleSeat flips the seat's membership in the local selection.
// Selecting requires the seat to be active, not booked and not locked
// by another user.  Deselecting a seat the current user holds a lock
// on removes it locally right away and releases the lock in the
// background; a failed release is only logged, because the next
// reconciliation corrects the state either way.
func (c *Controller) ToggleSeat(ctx context.Context, seat model.Seat) error {
	state := c.engine.State()
	key := seat.Key()

	if containsKey(state.Selected, key) {
		return c.deselect(ctx, state, seat, key)
	}
	if !seat.Active || !state.Selectable(key) {
		return fmt.Errorf("%w: %s", ErrSeatUnavailable, key)
	}

	seats := append(append([]string(nil), state.Selected...), key)
	first := len(state.Selected) == 0
	if err := c.persistSeats(state, seats, first); err != nil {
		return err
	}
	c.engine.SetSelected(seats)

	if first {
		if err := c.store.Extend(c.store.HoldDuration()); err != nil {
			log.Printf("selection: extending hold for first seat failed: %v", err)
		}
		c.mu.Lock()
		fire := !c.started && c.OnSelectionStarted != nil
		c.started = true
		c.mu.Unlock()
		if fire {
			c.OnSelectionStarted()
		}
	}
	return nil
}

func (c *Controller) deselect(ctx context.Context, state reconcile.State, seat model.Seat, key string) error {
	seats := make([]string, 0, len(state.Selected))
	for _, k := range state.Selected {
		if k != key {
			seats = append(seats, k)
		}
	}
	if err := c.persistSeats(state, seats, false); err != nil {
		return err
	}
	c.engine.SetSelected(seats)

	// Deselecting down to an empty cart implicitly drops the coupon.
	if len(seats) == 0 {
		if err := c.clearCoupon(state, seats); err != nil {
			log.Printf("selection: clearing coupon on empty cart failed: %v", err)
		}
	}

	_, lockedByOther := state.LockedByOthers[key]
	ownLocked := !lockedByOther && state.Countdowns[key] > 0
	if ownLocked {
		go c.releaseOne(seat)
	}
	return nil
}

// releaseOne asks the backend to drop the lock on a single seat, then
// reconciles after a short settle delay so the freed seat's lock state
// disappears from the snapshot.  Runs detached from the toggling call:
// the optimistic removal is never reverted here.
func (c *Controller) releaseOne(seat model.Seat) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ref := []api.SeatRef{{SeatRow: seat.Row, SeatNumber: seat.Number}}
	if err := c.api.ReleaseSeats(ctx, c.ids.ShowtimeID, ref); err != nil {
		log.Printf("selection: releasing seat %s failed: %v", seat.Key(), err)
		return
	}
	time.Sleep(c.settleDelay)
	if err := c.engine.Reconcile(ctx); err != nil {
		log.Printf("selection: reconcile after release failed: %v", err)
	}
}

// persistSeats writes the new seat set together with the recomputed
// totals in one store write.  This is the durability boundary that
// survives a restart, so it is synchronous with the toggle.
func (c *Controller) persistSeats(state reconcile.State, seats []string, creating bool) error {
	rec, err := c.store.Load()
	if err != nil {
		return err
	}
	var discount int64
	if rec != nil {
		discount = rec.CouponDiscount
	}
	gross, net := c.totals(state, seats, discount)
	p := store.Partial{
		Seats:          &seats,
		TotalAmount:    &net,
		OriginalAmount: &gross,
	}
	if creating || rec == nil {
		p.ScreenID = &c.ids.ScreenID
		p.MovieID = &c.ids.MovieID
		p.ShowtimeID = &c.ids.ShowtimeID
		p.TheaterID = &c.ids.TheaterID
	}
	_, err = c.store.Save(p)
	return err
}

// totals computes (gross, net) for the seat set: gross is the sum of
// per-type prices looked up through the layout, net clamps the coupon
// discount at zero.
func (c *Controller) totals(state reconcile.State, seats []string, discount int64) (int64, int64) {
	var gross int64
	if state.Showtime != nil {
		for _, key := range seats {
			gross += state.Showtime.PriceFor(key)
		}
	}
	net := gross - discount
	if net < 0 {
		net = 0
	}
	return gross, net
}

// ApplyCoupon validates the code against the backend using the current
// gross total.  On success the discount and coupon object are stored
// and the totals recomputed; on failure any tentative coupon state is
// cleared and the server's rejection reason returned.
func (c *Controller) ApplyCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	rec, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil || len(rec.Seats) == 0 {
		return nil, errors.New("no seats selected")
	}
	res, err := c.api.ValidateCoupon(ctx, api.ValidateCouponRequest{
		Code:        code,
		MovieID:     c.ids.MovieID,
		TheaterID:   c.ids.TheaterID,
		TotalAmount: rec.OriginalAmount,
	})
	if err != nil {
		if clearErr := c.clearCoupon(c.engine.State(), rec.Seats); clearErr != nil {
			log.Printf("selection: clearing rejected coupon failed: %v", clearErr)
		}
		return nil, err
	}

	gross := rec.OriginalAmount
	net := gross - res.DiscountAmount
	if net < 0 {
		net = 0
	}
	coupon := res.Coupon
	_, err = c.store.Save(store.Partial{
		TotalAmount:    &net,
		OriginalAmount: &gross,
		Coupon: &store.CouponUpdate{
			Code:     code,
			Discount: res.DiscountAmount,
			Coupon:   &coupon,
		},
	})
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// RemoveCoupon drops any applied coupon and restores the gross total.
func (c *Controller) RemoveCoupon() error {
	rec, err := c.store.Load()
	if err != nil || rec == nil {
		return err
	}
	return c.clearCoupon(c.engine.State(), rec.Seats)
}

func (c *Controller) clearCoupon(state reconcile.State, seats []string) error {
	gross, _ := c.totals(state, seats, 0)
	_, err := c.store.Save(store.Partial{
		TotalAmount:    &gross,
		OriginalAmount: &gross,
		Coupon:         &store.CouponUpdate{},
	})
	return err
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
