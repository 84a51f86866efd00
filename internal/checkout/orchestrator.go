// Package checkout drives the short-lived step sequence that turns a
// local seat selection into a server-side booking and payment record.
// Two entry paths exist: the staged flow (review, then payment method,
// then processing) and the direct flow, which arrives with a finished
// seat/amount payload and collapses everything into one automatic
// step.  No step ever retries on its own; retry is always a user
// action.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cinepass/booking-client/internal/api"
	"github.com/cinepass/booking-client/internal/model"
	"github.com/cinepass/booking-client/internal/store"
)

// Step is the state of the staged checkout flow.
type Step string

const (
	StepReview     Step = "review"
	StepPayment    Step = "payment"
	StepProcessing Step = "processing"
)

// Handoff targets: where the flow sends the user when it terminates.
const (
	TargetInstructions = "instructions" // bank-transfer instruction page
	TargetGateway      = "gateway"      // hosted payment URL
	TargetSuccess      = "success"      // immediately successful methods
	TargetBack         = "back"         // aborted, return to seat screen
)

// Handoff describes the terminal redirect of a checkout flow.
type Handoff struct {
	Target    string
	BookingID string
	PaymentID string
	URL       string
}

// ErrNoSelection is returned when checkout starts without a live
// persisted selection (expired or never created).
var ErrNoSelection = errors.New("no active selection")

// ErrAlreadyProcessed is returned when the direct flow is invoked a
// second time on the same orchestrator.  The first invocation owns the
// flow; the duplicate is a no-op.
var ErrAlreadyProcessed = errors.New("direct checkout already processed")

// ErrBusy is returned when a staged transition (booking confirmation
// or payment selection) is already in flight.
var ErrBusy = errors.New("checkout transition in progress")

// API is the slice of the backend client the orchestrator needs.
type API interface {
	CreateBooking(ctx context.Context, req api.CreateBookingRequest) (*model.Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, req api.CreateBookingRequest) (*model.Booking, error)
	CreatePayment(ctx context.Context, req api.CreatePaymentRequest) (*model.Payment, error)
	ReleaseSeats(ctx context.Context, showtimeID string, seats []api.SeatRef) error
}

// DirectPayload is the pre-computed input of the skip-review flow: the
// seat screen's "pay now" action hands seats and totals over directly
// instead of routing them through the persisted record.
type DirectPayload struct {
	ShowtimeID     string
	Seats          []model.BookingSeat
	CouponCode     string
	CouponDiscount int64
	TotalAmount    int64
}

// Orchestrator runs one checkout attempt for one showtime.
type Orchestrator struct {
	api      API
	store    *store.Store
	showtime *model.Showtime

	mu        sync.Mutex
	step      Step
	bookingID string
	booking   *model.Booking
	inFlight  bool

	processed atomic.Bool
}

// New returns an orchestrator in the review step.  The showtime
// supplies seat types for the booking payload; it may be nil only for
// the direct flow, whose payload arrives already typed.
func New(a API, st *store.Store, showtime *model.Showtime) *Orchestrator {
	return &Orchestrator{api: a, store: st, showtime: showtime, step: StepReview}
}

// Step returns the current flow state.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// BookingID returns the booking created or adopted by this flow, empty
// before confirmation.
func (o *Orchestrator) BookingID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bookingID
}

// Booking returns the booking returned by the backend, nil before
// confirmation.  The countdown subsystem reads the expiry off it.
func (o *Orchestrator) Booking() *model.Booking {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.booking
}

// ConfirmBooking executes the review-to-payment transition.  When the
// persisted record already references a booking for this showtime the
// payload updates it; otherwise a new booking is created.  On failure
// the flow stays in review and the error is surfaced for a
// user-initiated retry.
func (o *Orchestrator) ConfirmBooking(ctx context.Context) error {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrBusy
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	rec, err := o.store.Load()
	if err != nil {
		return err
	}
	if rec == nil || len(rec.Seats) == 0 {
		return ErrNoSelection
	}
	req, err := o.requestFromRecord(rec)
	if err != nil {
		return err
	}

	var booking *model.Booking
	if rec.BookingID != "" && o.showtime != nil && rec.ShowtimeID == o.showtime.ID {
		booking, err = o.api.UpdateBooking(ctx, rec.BookingID, req)
	} else {
		booking, err = o.api.CreateBooking(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}

	if _, err := o.store.Save(store.Partial{BookingID: &booking.ID}); err != nil {
		log.Printf("checkout: persisting booking id failed: %v", err)
	}
	o.mu.Lock()
	o.bookingID = booking.ID
	o.booking = booking
	o.step = StepPayment
	o.mu.Unlock()
	return nil
}

// requestFromRecord rebuilds the booking payload from the persisted
// record, resolving each seat-key's pricing type through the layout.
func (o *Orchestrator) requestFromRecord(rec *model.SelectionRecord) (api.CreateBookingRequest, error) {
	seats := make([]model.BookingSeat, 0, len(rec.Seats))
	for _, key := range rec.Seats {
		row, num, err := model.SplitSeatKey(key)
		if err != nil {
			return api.CreateBookingRequest{}, err
		}
		seat := model.BookingSeat{Row: row, Number: num}
		if o.showtime != nil {
			for _, s := range o.showtime.Layout {
				if s.Key() == key {
					seat.Type = s.Type
					break
				}
			}
		}
		seats = append(seats, seat)
	}
	return api.CreateBookingRequest{
		ShowtimeID:     rec.ShowtimeID,
		Seats:          seats,
		CouponCode:     rec.CouponCode,
		CouponDiscount: rec.CouponDiscount,
		TotalAmount:    rec.TotalAmount,
	}, nil
}

// ChoosePayment executes the payment-to-processing transition for the
// staged flow.  Bank transfer creates a payment record and hands off
// to the instructions page; a gateway method hands off to the hosted
// payment URL; anything else is treated as immediately successful.  A
// successful handoff clears the persisted selection.  At most one
// transition runs at a time: a second submission while one is in
// flight gets ErrBusy instead of a second payment record.
func (o *Orchestrator) ChoosePayment(ctx context.Context, method string) (Handoff, error) {
	o.mu.Lock()
	if o.step != StepPayment {
		o.mu.Unlock()
		return Handoff{}, fmt.Errorf("cannot pick a payment method in step %q", o.step)
	}
	if o.inFlight {
		o.mu.Unlock()
		return Handoff{}, ErrBusy
	}
	o.inFlight = true
	bookingID := o.bookingID
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	var handoff Handoff
	switch method {
	case model.PaymentBankTransfer:
		payment, err := o.api.CreatePayment(ctx, api.CreatePaymentRequest{
			BookingID: bookingID,
			Method:    model.PaymentBankTransfer,
		})
		if err != nil {
			return Handoff{}, fmt.Errorf("create payment: %w", err)
		}
		handoff = Handoff{Target: TargetInstructions, BookingID: bookingID, PaymentID: payment.ID}
	case model.PaymentGateway:
		payment, err := o.api.CreatePayment(ctx, api.CreatePaymentRequest{
			BookingID: bookingID,
			Method:    model.PaymentGateway,
		})
		if err != nil {
			return Handoff{}, fmt.Errorf("create payment: %w", err)
		}
		handoff = Handoff{Target: TargetGateway, BookingID: bookingID, PaymentID: payment.ID, URL: payment.PaymentURL}
	default:
		handoff = Handoff{Target: TargetSuccess, BookingID: bookingID}
	}

	o.mu.Lock()
	o.step = StepProcessing
	o.mu.Unlock()
	if err := o.store.Clear(); err != nil {
		log.Printf("checkout: clearing selection after handoff failed: %v", err)
	}
	return handoff, nil
}

// Direct runs the skip-review flow: booking and bank-transfer payment
// are created back to back and the user is handed off to the
// instructions page.  The one-shot guard ensures a duplicate
// invocation produces no second booking or payment.  Both creation
// calls share one client-generated idempotency key per attempt, so
// even a transport-level retry cannot double-create.  Any failure
// aborts the flow and navigates back.
func (o *Orchestrator) Direct(ctx context.Context, payload DirectPayload) (Handoff, error) {
	if !o.processed.CompareAndSwap(false, true) {
		return Handoff{}, ErrAlreadyProcessed
	}
	o.mu.Lock()
	o.step = StepProcessing
	o.mu.Unlock()

	attemptKey := uuid.NewString()
	booking, err := o.api.CreateBooking(ctx, api.CreateBookingRequest{
		ShowtimeID:     payload.ShowtimeID,
		Seats:          payload.Seats,
		CouponCode:     payload.CouponCode,
		CouponDiscount: payload.CouponDiscount,
		TotalAmount:    payload.TotalAmount,
		IdempotencyKey: attemptKey,
	})
	if err != nil {
		return Handoff{Target: TargetBack}, fmt.Errorf("direct checkout: create booking: %w", err)
	}
	o.mu.Lock()
	o.bookingID = booking.ID
	o.booking = booking
	o.mu.Unlock()

	payment, err := o.api.CreatePayment(ctx, api.CreatePaymentRequest{
		BookingID:      booking.ID,
		Method:         model.PaymentBankTransfer,
		IdempotencyKey: attemptKey,
	})
	if err != nil {
		return Handoff{Target: TargetBack}, fmt.Errorf("direct checkout: create payment: %w", err)
	}

	if err := o.store.Clear(); err != nil {
		log.Printf("checkout: clearing selection after direct handoff failed: %v", err)
	}
	return Handoff{Target: TargetInstructions, BookingID: booking.ID, PaymentID: payment.ID}, nil
}

// Cancel is the explicit cancel-seats action: release every selected
// seat, and only on success clear the record and navigate away.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	rec, err := o.store.Load()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := o.releaseAll(ctx, rec); err != nil {
		return fmt.Errorf("cancel seats: %w", err)
	}
	return o.store.Clear()
}

// ForceCleanup is the expiry path: best-effort release, then clear
// regardless of whether the release succeeded.  The backend's own lock
// expiry sweeps up anything the release missed.
func (o *Orchestrator) ForceCleanup(ctx context.Context) {
	rec, err := o.store.Load()
	if err == nil && rec != nil {
		if err := o.releaseAll(ctx, rec); err != nil {
			log.Printf("checkout: best-effort release on expiry failed: %v", err)
		}
	}
	if err := o.store.Clear(); err != nil {
		log.Printf("checkout: clearing expired selection failed: %v", err)
	}
}

func (o *Orchestrator) releaseAll(ctx context.Context, rec *model.SelectionRecord) error {
	if len(rec.Seats) == 0 {
		return nil
	}
	refs := make([]api.SeatRef, 0, len(rec.Seats))
	for _, key := range rec.Seats {
		row, num, err := model.SplitSeatKey(key)
		if err != nil {
			continue
		}
		refs = append(refs, api.SeatRef{SeatRow: row, SeatNumber: num})
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return o.api.ReleaseSeats(cctx, rec.ShowtimeID, refs)
}
