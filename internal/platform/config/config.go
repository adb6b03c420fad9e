// Package config builds typed configuration from environment variables so
// main stays lean. Engine numeric parameters live here with their defaults;
// runtime-mutable policy (burn rate, yield tiers, authorized sets) is owned
// by the params service and only seeded from this package.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	id "aurum/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// Postgres captures the optional ledger journal database.
type Postgres struct {
	URL string
}

// Redis captures the optional used-proof-key backing store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the optional audit event sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Engine captures the issuance and staking parameters fixed for the
// process lifetime. CooldownPeriod deliberately has no admin mutation
// path: shifting it mid-period would move in-flight period-bucket
// boundaries for replay keys.
type Engine struct {
	Admin        id.Address
	Treasury     id.Address
	Escrow       id.Address
	BurnRateBp   uint64
	OneYearBp    uint64
	SixMonthBp   uint64
	ThreeMonthBp uint64
	DefaultBp    uint64
}

// Sweep captures the background expiry sweeper schedule.
type Sweep struct {
	Interval      time.Duration
	MaxIterations int
}

// Config is the root configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Engine   Engine
	Sweep    Sweep
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	admin, _ := id.ParseAddress(getenv("AURUM_ADMIN_ADDRESS", "0x00000000000000000000000000000000000000a1"))
	treasury, _ := id.ParseAddress(getenv("AURUM_TREASURY_ADDRESS", "0x00000000000000000000000000000000000000a2"))
	escrow, _ := id.ParseAddress(getenv("AURUM_ESCROW_ADDRESS", "0x00000000000000000000000000000000000000a3"))

	jwtSigningKey := os.Getenv("AURUM_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("AURUM_KAFKA_BROKERS"); raw != "" {
		brokers = splitComma(raw)
	}

	return Config{
		Server: Server{
			Addr:          getenv("AURUM_ADDR", ":8080"),
			JWTSigningKey: jwtSigningKey,
			ReadTimeout:   getduration("AURUM_HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getduration("AURUM_HTTP_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getduration("AURUM_HTTP_IDLE_TIMEOUT", time.Minute),
		},
		Postgres: Postgres{
			URL: os.Getenv("AURUM_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("AURUM_REDIS_URL"),
			PoolSize:     getint("AURUM_REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("AURUM_REDIS_MIN_IDLE", 2),
			DialTimeout:  getduration("AURUM_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("AURUM_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("AURUM_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: brokers,
			Topic:   getenv("AURUM_KAFKA_AUDIT_TOPIC", "aurum.engine.audit"),
		},
		Engine: Engine{
			Admin:        admin,
			Treasury:     treasury,
			Escrow:       escrow,
			BurnRateBp:   getuint("AURUM_BURN_RATE_BP", 200),
			OneYearBp:    getuint("AURUM_TIER_ONE_YEAR_BP", 1200),
			SixMonthBp:   getuint("AURUM_TIER_SIX_MONTH_BP", 800),
			ThreeMonthBp: getuint("AURUM_TIER_THREE_MONTH_BP", 500),
			DefaultBp:    getuint("AURUM_TIER_DEFAULT_BP", 200),
		},
		Sweep: Sweep{
			Interval:      getduration("AURUM_SWEEP_INTERVAL", time.Hour),
			MaxIterations: getint("AURUM_SWEEP_MAX_ITERATIONS", 30),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getuint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
