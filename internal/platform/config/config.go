package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server   Server
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	Uploads  UploadConfig
	Auth     AuthConfig
	Tenants  TenantConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogLevel        string
}

type MongoConfig struct {
	URI      string
	Database string
}

// PostgresConfig backs the audit outbox. An empty DSN keeps audit in memory.
type PostgresConfig struct {
	DSN string
}

// RedisConfig backs the principal cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig drives the audit outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
}

type LedgerConfig struct {
	URL              string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

type UploadConfig struct {
	Concurrency     int
	MaxBytes        int64
	MaxFilesPerCall int
}

type AuthConfig struct {
	JWTSigningKey     string
	JWTIssuer         string
	TokenTTL          time.Duration
	PrincipalCacheTTL time.Duration
}

// TenantConfig maps users to the organizational identity presented to the ledger.
type TenantConfig struct {
	ByDistrict map[string]string
	Default    string
	Forensics  string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v, err := durationEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := intEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	byDistrict, err := parsePairs(env("TENANT_ORG_BY_DISTRICT", "DistrictPoliceA=Org1MSP,DistrictPoliceB=Org2MSP"))
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg := Config{
		Server: Server{
			Addr:            env("CASEKEEPER_ADDR", ":8080"),
			ShutdownTimeout: dur("SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        env("LOG_LEVEL", "info"),
		},
		Mongo: MongoConfig{
			URI:      env("MONGO_URI", "mongodb://localhost:27017"),
			Database: env("MONGO_DATABASE", "casekeeper"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:    env("AUDIT_TOPIC", "casekeeper.audit"),
			RelayInterval: dur("AUDIT_RELAY_INTERVAL", time.Second),
		},
		Ledger: LedgerConfig{
			URL:              env("LEDGER_URL", "http://localhost:4000"),
			Timeout:          dur("LEDGER_TIMEOUT", 30*time.Second),
			BreakerThreshold: num("LEDGER_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  dur("LEDGER_BREAKER_COOLDOWN", 10*time.Second),
		},
		Uploads: UploadConfig{
			Concurrency:     num("UPLOAD_CONCURRENCY", 1),
			MaxBytes:        int64(num("MAX_UPLOAD_BYTES", 50<<20)),
			MaxFilesPerCall: num("MAX_FILES_PER_REQUEST", 5),
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey:     env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:         env("JWT_ISSUER", "casekeeper"),
			TokenTTL:          dur("JWT_TOKEN_TTL", 8*time.Hour),
			PrincipalCacheTTL: dur("PRINCIPAL_CACHE_TTL", time.Minute),
		},
		Tenants: TenantConfig{
			ByDistrict: byDistrict,
			Default:    env("DEFAULT_TENANT_ORG", "Org1MSP"),
			Forensics:  env("FORENSICS_TENANT_ORG", "Org2MSP"),
		},
	}

	if cfg.Uploads.Concurrency < 1 {
		errs = append(errs, "UPLOAD_CONCURRENCY must be at least 1")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePairs reads "k1=v1,k2=v2".
func parsePairs(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(raw) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("TENANT_ORG_BY_DISTRICT: malformed pair %q", pair)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
