// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, the
// attendance policy, fraud gates, verdict publishing, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// AttendanceConfig holds the work-day policy and per-user state lifetimes.
type AttendanceConfig struct {
	ZonesFile        string         // ZONES_FILE; empty uses the built-in zones
	HelpFile         string         // HELP_FILE; empty uses the built-in topics
	Timezone         string         // TIMEZONE (IANA name or "Local")
	Location         *time.Location // resolved from Timezone
	WorkdayStartHour int            // WORKDAY_START_HOUR
	WorkdayEndHour   int            // WORKDAY_END_HOUR
	MaxDailyEntries  int            // MAX_DAILY_ENTRIES
	MinActionGap     time.Duration  // MIN_ACTION_GAP
	MaxWorkingHours  time.Duration  // MAX_WORKING_HOURS
	MissingExitGrace time.Duration  // MISSING_EXIT_GRACE
	PendingTTL       time.Duration  // PENDING_TTL
	StateCacheTTL    time.Duration  // STATE_CACHE_TTL
	SweepInterval    time.Duration  // PENDING_SWEEP_INTERVAL; 0 disables the sweeper
}

// FraudConfig holds the reading gates and the block policy.
type FraudConfig struct {
	MaxReadingAge     time.Duration // MAX_READING_AGE
	MaxAccuracyMeters float64       // MAX_ACCURACY_METERS
	WarningLimit      int           // BLOCK_WARNING_LIMIT
	BlockDuration     time.Duration // BLOCK_DURATION
}

// StoreConfig bounds record store calls.
type StoreConfig struct {
	Timeout time.Duration // STORE_TIMEOUT per attempt
	Retries int           // STORE_RETRIES, 0 or 1
}

// KafkaConfig controls verdict publishing.
type KafkaConfig struct {
	Enabled bool     // KAFKA_ENABLED
	Brokers []string // KAFKA_BROKERS (comma-separated)
	Topic   string   // KAFKA_TOPIC
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-attendance-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath     string
	Attendance AttendanceConfig
	Fraud      FraudConfig
	Store      StoreConfig
	Kafka      KafkaConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Event receipts
	ReceiptTTL time.Duration // how long a delivered event's reply is replayable

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and returns every validation
// failure joined into one error. The returned Config is usable for logging
// even when err is non-nil.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "attendance.db"),
		Attendance: AttendanceConfig{
			ZonesFile:        getenv("ZONES_FILE", ""),
			HelpFile:         getenv("HELP_FILE", ""),
			Timezone:         getenv("TIMEZONE", "Local"),
			WorkdayStartHour: getint("WORKDAY_START_HOUR", 6),
			WorkdayEndHour:   getint("WORKDAY_END_HOUR", 22),
			MaxDailyEntries:  getint("MAX_DAILY_ENTRIES", 3),
			MinActionGap:     getdur("MIN_ACTION_GAP", 5*time.Minute),
			MaxWorkingHours:  getdur("MAX_WORKING_HOURS", 12*time.Hour),
			MissingExitGrace: getdur("MISSING_EXIT_GRACE", 2*time.Hour),
			PendingTTL:       getdur("PENDING_TTL", 10*time.Minute),
			StateCacheTTL:    getdur("STATE_CACHE_TTL", 60*time.Minute),
			SweepInterval:    getdur("PENDING_SWEEP_INTERVAL", time.Minute),
		},
		Fraud: FraudConfig{
			MaxReadingAge:     getdur("MAX_READING_AGE", 2*time.Minute),
			MaxAccuracyMeters: getfloat("MAX_ACCURACY_METERS", 50),
			WarningLimit:      getint("BLOCK_WARNING_LIMIT", 5),
			BlockDuration:     getdur("BLOCK_DURATION", 30*time.Minute),
		},
		Store: StoreConfig{
			Timeout: getdur("STORE_TIMEOUT", 3*time.Second),
			Retries: getint("STORE_RETRIES", 1),
		},
		Kafka: KafkaConfig{
			Enabled: getbool("KAFKA_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_TOPIC", "attendance.verdicts"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Event receipts
		ReceiptTTL: getdur("RECEIPT_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-attendance-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	var v validator
	v.server(&cfg)
	v.attendance(&cfg.Attendance)
	v.fraud(cfg.Fraud, cfg.Store, cfg.Kafka)
	v.check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	v.check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	v.check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	v.check(cfg.ReceiptTTL > 0, "RECEIPT_TTL must be > 0")
	v.check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return cfg, v.err()
}

// validator collects every violation so a misconfigured deployment is
// reported in one pass.
type validator struct{ errs []error }

func (v *validator) check(ok bool, msg string) {
	if !ok {
		v.errs = append(v.errs, errors.New(msg))
	}
}

func (v *validator) err() error { return errors.Join(v.errs...) }

func (v *validator) server(cfg *Config) {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		v.check(false, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	v.check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	v.check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	v.check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	v.check(strings.TrimSpace(cfg.DBPath) != "", "DB_PATH must not be empty")
}

// attendance also resolves a.Location from a.Timezone.
func (v *validator) attendance(a *AttendanceConfig) {
	loc, err := loadLocation(a.Timezone)
	if err != nil {
		v.errs = append(v.errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	a.Location = loc
	v.check(a.WorkdayStartHour >= 0 && a.WorkdayEndHour <= 24 && a.WorkdayStartHour < a.WorkdayEndHour,
		"WORKDAY_START_HOUR and WORKDAY_END_HOUR must satisfy 0 <= start < end <= 24")
	v.check(a.MaxDailyEntries >= 1, "MAX_DAILY_ENTRIES must be >= 1")
	v.check(a.MinActionGap >= 0, "MIN_ACTION_GAP must be >= 0")
	v.check(a.MaxWorkingHours > 0 && a.MissingExitGrace > 0, "MAX_WORKING_HOURS and MISSING_EXIT_GRACE must be > 0")
	v.check(a.PendingTTL > 0 && a.StateCacheTTL > 0, "PENDING_TTL and STATE_CACHE_TTL must be > 0")
	v.check(a.SweepInterval >= 0, "PENDING_SWEEP_INTERVAL must be >= 0")
}

func (v *validator) fraud(f FraudConfig, s StoreConfig, k KafkaConfig) {
	v.check(f.MaxReadingAge > 0, "MAX_READING_AGE must be > 0")
	v.check(f.MaxAccuracyMeters > 0, "MAX_ACCURACY_METERS must be > 0")
	v.check(f.WarningLimit >= 1, "BLOCK_WARNING_LIMIT must be >= 1")
	v.check(f.BlockDuration > 0, "BLOCK_DURATION must be > 0")
	v.check(s.Timeout > 0, "STORE_TIMEOUT must be > 0")
	v.check(s.Retries == 0 || s.Retries == 1, "STORE_RETRIES must be 0 or 1")
	if k.Enabled {
		v.check(len(k.Brokers) > 0, "KAFKA_BROKERS must not be empty when KAFKA_ENABLED is set")
		v.check(strings.TrimSpace(k.Topic) != "", "KAFKA_TOPIC must not be empty when KAFKA_ENABLED is set")
	}
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
