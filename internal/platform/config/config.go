package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr    string `env:"ADDR" envDefault:":8080"`
	Verbose bool   `env:"VERBOSE"`

	// Controller is the base58 address allowed to administer the registry
	// until a handover is accepted.
	Controller string `env:"CONTROLLER"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"giveroute"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"giveroute-api"`

	DatabaseURL string `env:"DATABASE_URL"`

	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`

	AuditBuffer        int           `env:"AUDIT_BUFFER" envDefault:"1024"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// RedisConfig configures the rankings backend. An empty URL selects the
// in-memory leaderboard.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"giveroute.audit"`
}

// RateLimitConfig throttles authenticated requests per caller.
type RateLimitConfig struct {
	Disabled bool          `env:"DISABLED"`
	Requests int           `env:"REQUESTS" envDefault:"60"`
	Window   time.Duration `env:"WINDOW" envDefault:"1m"`
}

const envPrefix = "GIVEROUTE_"

// Load reads envFile (when non-empty) into the process environment and then
// parses Server from GIVEROUTE_* variables. A missing envFile is not an error.
func Load(envFile string) (Server, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Server{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// UsePostgres reports whether a database is configured.
func (s Server) UsePostgres() bool {
	return s.DatabaseURL != ""
}
