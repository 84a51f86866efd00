// Package reconcile keeps the local view of a showtime's seat map
// aligned with backend-reported truth: which seats are selectable,
// locked, booked, at what price, and for how much longer each lock
// lives.  The backend is the source of truth; the engine only ever
// refines local state toward it and never writes seat state upstream.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cinepass/booking-client/internal/model"
	"github.com/cinepass/booking-client/internal/store"
)

// Fetcher is the slice of the backend API the engine depends on.
type Fetcher interface {
	GetShowtime(ctx context.Context, showtimeID string) (*model.Showtime, error)
	GetLockedSeats(ctx context.Context, showtimeID string) ([]model.SeatLock, error)
}

// State is the snapshot the engine publishes after each
// reconciliation.  Maps are never shared: State() hands out copies.
//
// Fields:
//  Showtime       – authoritative pricing and layout, nil before the
//                   first successful reconciliation.
//  Countdowns     – seconds left per locked seat-key; entries reaching
//                   zero are removed.
//  Booked         – seat-keys committed to confirmed bookings.
//  LockedByOthers – seat-keys locked by some other user.
//  Selected       – the local selection including adopted own locks.
type State struct {
	Showtime       *model.Showtime
	Countdowns     map[string]int
	Booked         map[string]struct{}
	LockedByOthers map[string]struct{}
	Selected       []string
}

// Selectable reports whether the seat with the given key may be
// toggled on: it must exist in the layout, be active, not booked and
// not locked by another user.
func (s State) Selectable(key string) bool {
	if s.Showtime == nil {
		return false
	}
	if _, ok := s.Booked[key]; ok {
		return false
	}
	if _, ok := s.LockedByOthers[key]; ok {
		return false
	}
	for _, seat := range s.Showtime.Layout {
		if seat.Key() == key {
			return seat.Active
		}
	}
	return false
}

// Engine reconciles one showtime.  At most one reconciliation is in
// flight per engine; a second call while one is running is a no-op.
type Engine struct {
	fetch      Fetcher
	store      *store.Store
	userID     string
	showtimeID string

	inFlight atomic.Bool
	now      func() time.Time

	mu           sync.Mutex
	showtime     *model.Showtime
	booked       map[string]struct{}
	lockedOthers map[string]struct{}
	lockExpiry   map[string]time.Time
	selected     []string
}

// New returns an engine for the given showtime.  userID is the current
// user's identity from the access token; it decides which locks are
// adopted into the local selection.
func New(fetch Fetcher, st *store.Store, userID, showtimeID string) *Engine {
	return &Engine{
		fetch:        fetch,
		store:        st,
		userID:       userID,
		showtimeID:   showtimeID,
		now:          time.Now,
		booked:       map[string]struct{}{},
		lockedOthers: map[string]struct{}{},
		lockExpiry:   map[string]time.Time{},
	}
}

// Reconcile fetches showtime pricing and the live lock set
// concurrently, merges them with the persisted selection and publishes
// a fresh snapshot.  A fetch failure leaves the previous state fully
// intact: a stale seat map beats a blank one, and the caller can retry
// through Refresh.
func (e *Engine) Reconcile(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer e.inFlight.Store(false)

	var (
		wg       sync.WaitGroup
		showtime *model.Showtime
		locks    []model.SeatLock
		stErr    error
		lkErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		showtime, stErr = e.fetch.GetShowtime(ctx, e.showtimeID)
	}()
	go func() {
		defer wg.Done()
		locks, lkErr = e.fetch.GetLockedSeats(ctx, e.showtimeID)
	}()
	wg.Wait()
	if stErr != nil {
		log.Printf("reconcile: showtime fetch failed, keeping previous state: %v", stErr)
		return fmt.Errorf("fetch showtime: %w", stErr)
	}
	if lkErr != nil {
		log.Printf("reconcile: lock fetch failed, keeping previous state: %v", lkErr)
		return fmt.Errorf("fetch locked seats: %w", lkErr)
	}

	now := e.now()
	booked := map[string]struct{}{}
	for _, b := range showtime.BookedSeats {
		booked[b.Key()] = struct{}{}
	}

	lockedOthers := map[string]struct{}{}
	lockExpiry := map[string]time.Time{}
	var ownKeys []string
	adoptedBooking := ""
	for _, l := range locks {
		if !l.ExpiresAt.After(now) {
			continue // already expired, the backend just has not swept it yet
		}
		key := l.Key()
		// A lock and a booking for the same seat should not coexist;
		// the booked classification wins and the lock is ignored
		// entirely, whoever holds it.
		if _, ok := booked[key]; ok {
			continue
		}
		lockExpiry[key] = l.ExpiresAt
		if l.UserID == e.userID {
			ownKeys = append(ownKeys, key)
			if l.BookingID != "" {
				adoptedBooking = l.BookingID
			}
		} else {
			lockedOthers[key] = struct{}{}
		}
	}
	sort.Strings(ownKeys)

	selected, err := e.adoptOwnLocks(ownKeys, adoptedBooking)
	if err != nil {
		log.Printf("reconcile: persisting adopted locks failed: %v", err)
	}

	e.mu.Lock()
	e.showtime = showtime
	e.booked = booked
	e.lockedOthers = lockedOthers
	e.lockExpiry = lockExpiry
	e.selected = selected
	e.mu.Unlock()
	return nil
}

// adoptOwnLocks unions the seats the backend says the current user
// already holds into the persisted selection.  This recovers a
// selection across a restart and picks up a booking id attached to an
// own lock.  Union, never replace: reconciling twice with unchanged
// backend state yields an identical set.
func (e *Engine) adoptOwnLocks(ownKeys []string, bookingID string) ([]string, error) {
	rec, err := e.store.Load()
	if err != nil {
		return ownKeys, err
	}
	var selected []string
	if rec != nil {
		selected = append(selected, rec.Seats...)
	}
	changed := false
	for _, key := range ownKeys {
		if !contains(selected, key) {
			selected = append(selected, key)
			changed = true
		}
	}
	captureBooking := bookingID != "" && (rec == nil || rec.BookingID != bookingID)
	if !changed && !captureBooking {
		return selected, nil
	}
	p := store.Partial{ShowtimeID: &e.showtimeID}
	if changed {
		p.Seats = &selected
	}
	if captureBooking {
		p.BookingID = &bookingID
	}
	if _, err := e.store.Save(p); err != nil {
		return selected, err
	}
	return selected, nil
}

// State returns a copy of the current snapshot with countdowns
// computed against the clock at call time.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	countdowns := make(map[string]int, len(e.lockExpiry))
	for key, exp := range e.lockExpiry {
		if secs := int(exp.Sub(now) / time.Second); secs > 0 {
			countdowns[key] = secs
		}
	}
	booked := make(map[string]struct{}, len(e.booked))
	for k := range e.booked {
		booked[k] = struct{}{}
	}
	others := make(map[string]struct{}, len(e.lockedOthers))
	for k := range e.lockedOthers {
		others[k] = struct{}{}
	}
	return State{
		Showtime:       e.showtime,
		Countdowns:     countdowns,
		Booked:         booked,
		LockedByOthers: others,
		Selected:       append([]string(nil), e.selected...),
	}
}

// SetSelected replaces the published selection.  The interaction
// controller calls this after a toggle so the snapshot and the
// persisted record stay in step between reconciliations.
func (e *Engine) SetSelected(seats []string) {
	e.mu.Lock()
	e.selected = append([]string(nil), seats...)
	e.mu.Unlock()
}

// Refresh is the explicit user-initiated resync.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.Reconcile(ctx)
}

// Run drives the countdown tick at one-second resolution until the
// context is cancelled.  Whenever a tracked lock's countdown reaches
// zero the engine reconciles again: a lock expiring elsewhere may free
// or re-lock seats, so local state must resync.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.sweepExpiredLocks() {
				if err := e.Reconcile(ctx); err != nil {
					log.Printf("reconcile: resync after lock expiry failed: %v", err)
				}
			}
		}
	}
}

// sweepExpiredLocks drops countdown entries that have reached zero and
// reports whether any were dropped.
func (e *Engine) sweepExpiredLocks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	expired := false
	for key, exp := range e.lockExpiry {
		if !exp.After(now) {
			delete(e.lockExpiry, key)
			delete(e.lockedOthers, key)
			expired = true
		}
	}
	return expired
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
