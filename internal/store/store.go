// Package store owns the persisted selection record: the expiring,
// client-local snapshot of an in-progress seat selection.  All reads
// and writes of the record go through one Store instance so the merge
// logic lives in a single place; components never touch the backing
// storage directly.
//
// The record is a convenience cache, not a source of truth.  A storage
// read or parse failure therefore fails open into the empty state
// instead of propagating an error.
package store

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cinepass/booking-client/internal/model"
)

// Backend is the raw persistence under a Store.  Read returns
// (nil, nil) when no record exists.  Write may honor the supplied ttl
// where the medium supports it (redis); the file backend ignores it
// because expiry is enforced on load anyway.
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte, ttl time.Duration) error
	Delete() error
}

// Partial is a merge payload for Save.  Nil fields leave the stored
// value untouched; non-nil fields replace it.  Coupon state is updated
// as a unit because its three fields are present together or absent
// together.
type Partial struct {
	Seats          *[]string
	ScreenID       *string
	MovieID        *string
	ShowtimeID     *string
	TheaterID      *string
	BookingID      *string
	TotalAmount    *int64
	OriginalAmount *int64
	Coupon         *CouponUpdate
}

// CouponUpdate sets or clears the coupon fields of the record.  An
// update with an empty Code clears all three fields.
type CouponUpdate struct {
	Code     string
	Discount int64
	Coupon   *model.Coupon
}

// creates reports whether the partial carries an update that justifies
// creating a record when none exists.  A pure coupon clear does not: a
// coupon cannot be removed from a record that is not there.
func (p Partial) creates() bool {
	if p.Coupon != nil && p.Coupon.Code != "" {
		return true
	}
	return p.Seats != nil || p.ScreenID != nil || p.MovieID != nil ||
		p.ShowtimeID != nil || p.TheaterID != nil || p.BookingID != nil ||
		p.TotalAmount != nil || p.OriginalAmount != nil
}

// Store serializes every access to the selection record behind a
// mutex and merges each Save against the latest stored state, so a
// reconciliation-driven auto-adopt racing a user toggle cannot clobber
// fields it did not touch.
type Store struct {
	mu   sync.Mutex
	b    Backend
	hold time.Duration
	now  func() time.Time
}

// NewFile returns a Store persisting to a JSON file at path.  This is
// the per-profile backend, the equivalent of the record living in one
// browser profile's local storage.
func NewFile(path string, hold time.Duration) *Store {
	return newStore(&fileBackend{path: path}, hold)
}

func newStore(b Backend, hold time.Duration) *Store {
	if hold <= 0 {
		hold = 5 * time.Minute
	}
	return &Store{b: b, hold: hold, now: time.Now}
}

// HoldDuration returns the configured lifetime of a fresh selection.
func (s *Store) HoldDuration() time.Duration { return s.hold }

// Load returns the current record, or (nil, nil) when absent.  A
// record whose expiry has passed is condemned: it is cleared as a side
// effect and reported absent.  A legacy record missing its expiry gets
// one stamped in and persisted.
func (s *Store) Load() (*model.SelectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*model.SelectionRecord, error) {
	data, err := s.b.Read()
	if err != nil {
		log.Printf("store: read failed, treating selection as absent: %v", err)
		return nil, nil
	}
	if data == nil {
		return nil, nil
	}
	var rec model.SelectionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("store: corrupt selection record, clearing: %v", err)
		_ = s.b.Delete()
		return nil, nil
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.Timestamp.Add(s.hold)
		if err := s.writeLocked(&rec); err != nil {
			return nil, err
		}
	}
	if s.now().After(rec.ExpiresAt) {
		_ = s.b.Delete()
		return nil, nil
	}
	return &rec, nil
}

// Save merges the partial into the current record and persists the
// result synchronously.  When no record exists one is created for
// seat, identifier, total, booking and coupon updates; updates that
// require an existing record are a no-op.  The write stamps
// Timestamp to now and returns the stored record.
func (s *Store) Save(p Partial) (*model.SelectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	created := false
	if rec == nil {
		if !p.creates() {
			return nil, nil
		}
		rec = &model.SelectionRecord{Seats: []string{}}
		created = true
	}
	if p.Seats != nil {
		rec.Seats = append([]string(nil), (*p.Seats)...)
	}
	if p.ScreenID != nil {
		rec.ScreenID = *p.ScreenID
	}
	if p.MovieID != nil {
		rec.MovieID = *p.MovieID
	}
	if p.ShowtimeID != nil {
		rec.ShowtimeID = *p.ShowtimeID
	}
	if p.TheaterID != nil {
		rec.TheaterID = *p.TheaterID
	}
	if p.BookingID != nil {
		rec.BookingID = *p.BookingID
	}
	if p.TotalAmount != nil {
		rec.TotalAmount = *p.TotalAmount
	}
	if p.OriginalAmount != nil {
		rec.OriginalAmount = *p.OriginalAmount
	}
	if p.Coupon != nil {
		if p.Coupon.Code == "" {
			rec.CouponCode = ""
			rec.CouponDiscount = 0
			rec.AppliedCoupon = nil
		} else {
			rec.CouponCode = p.Coupon.Code
			rec.CouponDiscount = p.Coupon.Discount
			rec.AppliedCoupon = p.Coupon.Coupon
		}
	}
	rec.Timestamp = s.now()
	if created {
		rec.ExpiresAt = s.now().Add(s.hold)
	}
	if err := s.writeLocked(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Extend moves the expiry to now+d.  The expiry never moves backward:
// an extension that would land before the current expiry is ignored.
// Extending an absent record is a no-op.
func (s *Store) Extend(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadLocked()
	if err != nil || rec == nil {
		return err
	}
	exp := s.now().Add(d)
	if !exp.After(rec.ExpiresAt) {
		return nil
	}
	rec.ExpiresAt = exp
	return s.writeLocked(rec)
}

// Clear removes the record entirely.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Delete()
}

// RemainingSeconds returns the whole seconds left until the record
// expires, zero when the record is absent or already expired.
func (s *Store) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadLocked()
	if err != nil || rec == nil {
		return 0
	}
	left := rec.ExpiresAt.Sub(s.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

func (s *Store) writeLocked(rec *model.SelectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = s.hold
	}
	return s.b.Write(data, ttl)
}
