package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/cinepass/booking-client/internal/config"
	"github.com/cinepass/booking-client/internal/stub"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	srv := stub.New(stub.Options{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		LockTTL:   cfg.HoldDuration,
	})

	addr := ":" + cfg.StubPort
	log.Printf("stub backend listening on %s (env=%s)", addr, cfg.Env)
	if err := srv.Start(addr); err != nil {
		log.Fatal(err)
	}
}
