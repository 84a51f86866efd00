package config // package config loads application configuration from environment variables

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Every value has a sensible development
// default so the kiosk and the stub backend run out of the box; the
// types reflect how the values are used (durations for timeouts,
// strings for identifiers and secrets).
type Config struct {
	Env          string        // application environment (e.g. "dev", "prod")
	APIBaseURL   string        // base URL of the booking backend
	AccessToken  string        // bearer token; empty means login with Email/Password
	Email        string        // login email used when no token is configured
	Password     string        // login password used when no token is configured
	HoldDuration time.Duration // lifetime of a local seat selection
	HTTPTimeout  time.Duration // per-request timeout for backend calls
	StoreBackend string        // selection store backend: "file" or "redis"
	StorePath    string        // file path of the file-backed selection store
	RedisAddr    string        // redis host:port for the redis-backed store
	RedisPass    string        // redis password (empty allowed)
	RedisDB      int           // redis database number
	StubPort     string        // port the stub backend listens on
	JWTSecret    string        // secret used to sign and verify access tokens
	AccessTTLMin int           // access token time-to-live in minutes
}

// Load reads configuration values from environment variables, applying
// defaults for anything unset.
func Load() Config {
	return Config{
		Env:          getenv("APP_ENV", "dev"),
		APIBaseURL:   getenv("API_BASE_URL", "http://localhost:8600"),
		AccessToken:  os.Getenv("ACCESS_TOKEN"),
		Email:        getenv("LOGIN_EMAIL", "demo@cinepass.io"),
		Password:     getenv("LOGIN_PASSWORD", "demo-pass"),
		HoldDuration: parseDur(getenv("HOLD_DURATION", "5m")),
		HTTPTimeout:  parseDur(getenv("HTTP_TIMEOUT", "10s")),
		StoreBackend: getenv("STORE_BACKEND", "file"),
		StorePath:    getenv("STORE_PATH", defaultStorePath()),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      atoi(getenv("REDIS_DB", "0")),
		StubPort:     getenv("STUB_PORT", "8600"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret"),
		AccessTTLMin: atoi(getenv("ACCESS_TOKEN_TTL_MIN", "60")),
	}
}

// defaultStorePath places the selection record under the user's home
// directory, falling back to the working directory when home cannot be
// resolved.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "selected-movie-info.json"
	}
	return home + "/.cinepass/selected-movie-info.json"
}

// getenv returns the value of an environment variable or the provided
// default when the variable is unset or empty.
func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// atoi converts s to an int, returning 0 on failure.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseDur converts s to a time.Duration, returning 0 on failure.
func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
