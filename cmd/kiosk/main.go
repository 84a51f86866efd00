// Command kiosk is an interactive terminal booking client.  It drives
// the full selection and checkout flow against the booking backend:
// seat map rendering, optimistic seat toggles, coupon application, the
// staged review/payment checkout and the direct "pay now" shortcut.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cinepass/booking-client/internal/api"
	"github.com/cinepass/booking-client/internal/checkout"
	"github.com/cinepass/booking-client/internal/config"
	"github.com/cinepass/booking-client/internal/countdown"
	"github.com/cinepass/booking-client/internal/identity"
	"github.com/cinepass/booking-client/internal/model"
	"github.com/cinepass/booking-client/internal/reconcile"
	"github.com/cinepass/booking-client/internal/selection"
	"github.com/cinepass/booking-client/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	showtimeID := flag.String("showtime", "S1", "showtime to open")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.New(cfg.APIBaseURL, cfg.HTTPTimeout)
	token := cfg.AccessToken
	if token == "" {
		t, err := client.Login(ctx, cfg.Email, cfg.Password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
		token = t
	} else {
		client.SetToken(token)
	}
	uid, err := identity.Subject(token)
	if err != nil {
		log.Fatalf("cannot read user id from access token: %v", err)
	}

	st := newStore(cfg)

	showtime, err := client.GetShowtime(ctx, *showtimeID)
	if err != nil {
		log.Fatalf("loading showtime %s failed: %v", *showtimeID, err)
	}

	engine := reconcile.New(client, st, uid, showtime.ID)
	ctrl := selection.New(client, st, engine, selection.Context{
		ScreenID:   showtime.ScreenID,
		MovieID:    showtime.MovieID,
		ShowtimeID: showtime.ID,
		TheaterID:  showtime.TheaterID,
	})
	orch := checkout.New(client, st, showtime)

	if err := ctrl.VerifyScreen(showtime.ScreenID); err != nil {
		fmt.Println("! a stale selection for another screen was found and cleared")
	}

	timer := countdown.New(client, st)
	timer.BookingID = orch.BookingID
	timer.OnExpire = func() {
		fmt.Println("\n! your seat hold expired, releasing seats")
		orch.ForceCleanup(context.Background())
		cancel()
	}
	ctrl.OnSelectionStarted = func() {
		go timer.Run(ctx)
	}

	if err := engine.Reconcile(ctx); err != nil {
		log.Printf("initial reconcile failed, seat map may be empty: %v", err)
	}
	go engine.Run(ctx)

	// Best-effort exit guard: warn when leaving with a live selection,
	// matching the page-unload prompt of the web client.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		if rec, _ := st.Load(); rec != nil && len(rec.Seats) > 0 {
			fmt.Println("\n! exiting with an active seat selection; it expires in",
				st.RemainingSeconds(), "seconds")
		}
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("showtime %s : commands: map, pick <seat>, coupon <code>, refresh, pay, paynow, cancel, quit\n", showtime.ID)
	repl(ctx, cancel, engine, ctrl, orch, st)
}

func newStore(cfg config.Config) *store.Store {
	if cfg.StoreBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		return store.NewRedis(client, "selected-movie-info", cfg.HoldDuration)
	}
	return store.NewFile(cfg.StorePath, cfg.HoldDuration)
}

func repl(ctx context.Context, cancel context.CancelFunc, engine *reconcile.Engine,
	ctrl *selection.Controller, orch *checkout.Orchestrator, st *store.Store) {

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "map":
			renderMap(engine.State(), st)
		case "pick":
			if len(fields) < 2 {
				fmt.Println("usage: pick <seat>, e.g. pick A1")
				continue
			}
			pick(ctx, engine, ctrl, strings.ToUpper(fields[1]))
		case "coupon":
			if len(fields) < 2 {
				fmt.Println("usage: coupon <code>")
				continue
			}
			if c, err := ctrl.ApplyCoupon(ctx, fields[1]); err != nil {
				fmt.Println("coupon rejected:", err)
			} else {
				fmt.Printf("coupon %s applied, discount %d\n", c.Code, c.DiscountAmount)
			}
		case "refresh":
			if err := engine.Refresh(ctx); err != nil {
				fmt.Println("refresh failed, showing last known state:", err)
			}
			renderMap(engine.State(), st)
		case "pay":
			stagedCheckout(ctx, orch, scanner)
		case "paynow":
			directCheckout(ctx, engine, orch, st)
		case "cancel":
			if err := orch.Cancel(ctx); err != nil {
				fmt.Println("cancel failed, seats still held:", err)
			} else {
				fmt.Println("selection cancelled, seats released")
			}
		case "quit":
			cancel()
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func pick(ctx context.Context, engine *reconcile.Engine, ctrl *selection.Controller, key string) {
	state := engine.State()
	if state.Showtime == nil {
		fmt.Println("seat map not loaded yet, try refresh")
		return
	}
	for _, seat := range state.Showtime.Layout {
		if seat.Key() == key {
			if err := ctrl.ToggleSeat(ctx, seat); err != nil {
				fmt.Println("cannot toggle seat:", err)
			}
			return
		}
	}
	fmt.Println("no such seat:", key)
}

// renderMap prints the seat grid with one marker per seat: [#] booked,
// [x] locked by someone else, [*] selected, [ ] free.
func renderMap(state reconcile.State, st *store.Store) {
	if state.Showtime == nil {
		fmt.Println("seat map not loaded")
		return
	}
	rows := map[string][]model.Seat{}
	var labels []string
	for _, seat := range state.Showtime.Layout {
		if _, ok := rows[seat.Row]; !ok {
			labels = append(labels, seat.Row)
		}
		rows[seat.Row] = append(rows[seat.Row], seat)
	}
	sort.Strings(labels)
	selected := map[string]struct{}{}
	for _, k := range state.Selected {
		selected[k] = struct{}{}
	}
	for _, label := range labels {
		fmt.Printf("%2s ", label)
		for _, seat := range rows[label] {
			key := seat.Key()
			switch {
			case has(state.Booked, key):
				fmt.Print("[#]")
			case has(state.LockedByOthers, key):
				fmt.Print("[x]")
			case has(selected, key):
				fmt.Print("[*]")
			default:
				fmt.Print("[ ]")
			}
		}
		fmt.Println()
	}
	if rec, _ := st.Load(); rec != nil {
		fmt.Printf("selected %v | total %d (gross %d), hold expires in %ds\n",
			rec.Seats, rec.TotalAmount, rec.OriginalAmount, st.RemainingSeconds())
	}
	for key, secs := range state.Countdowns {
		fmt.Printf("  lock on %s expires in %ds\n", key, secs)
	}
}

func stagedCheckout(ctx context.Context, orch *checkout.Orchestrator, scanner *bufio.Scanner) {
	if err := orch.ConfirmBooking(ctx); err != nil {
		fmt.Println("booking failed, you can retry:", err)
		return
	}
	fmt.Printf("booking %s confirmed. method? (bank_transfer/gateway/on_site): ", orch.BookingID())
	if !scanner.Scan() {
		return
	}
	method := strings.TrimSpace(scanner.Text())
	handoff, err := orch.ChoosePayment(ctx, method)
	if err != nil {
		fmt.Println("payment failed, pick a method again:", err)
		return
	}
	printHandoff(handoff)
}

func directCheckout(ctx context.Context, engine *reconcile.Engine, orch *checkout.Orchestrator, st *store.Store) {
	rec, err := st.Load()
	if err != nil || rec == nil || len(rec.Seats) == 0 {
		fmt.Println("nothing selected")
		return
	}
	state := engine.State()
	payload := checkout.DirectPayload{
		ShowtimeID:     rec.ShowtimeID,
		CouponCode:     rec.CouponCode,
		CouponDiscount: rec.CouponDiscount,
		TotalAmount:    rec.TotalAmount,
	}
	for _, key := range rec.Seats {
		row, num, err := model.SplitSeatKey(key)
		if err != nil {
			continue
		}
		seat := model.BookingSeat{Row: row, Number: num}
		if state.Showtime != nil {
			for _, s := range state.Showtime.Layout {
				if s.Key() == key {
					seat.Type = s.Type
					break
				}
			}
		}
		payload.Seats = append(payload.Seats, seat)
	}
	handoff, err := orch.Direct(ctx, payload)
	if err != nil {
		fmt.Println("direct checkout aborted:", err)
		return
	}
	printHandoff(handoff)
}

func printHandoff(h checkout.Handoff) {
	switch h.Target {
	case checkout.TargetInstructions:
		fmt.Printf("follow the transfer instructions for booking %s, payment %s\n", h.BookingID, h.PaymentID)
	case checkout.TargetGateway:
		fmt.Printf("complete your payment at %s\n", h.URL)
	case checkout.TargetSuccess:
		fmt.Printf("booking %s paid, enjoy the movie\n", h.BookingID)
	default:
		fmt.Println("checkout aborted, returning to seat map")
	}
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
