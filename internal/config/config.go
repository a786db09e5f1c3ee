// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the HTTP server and the admin CLI.
type Config struct {
	Env            string // application environment (dev/test/prod)
	Port           string // HTTP port to listen on
	LogLevel       string
	LogFormat      string // json or text
	DBUser         string
	DBPass         string // empty allowed
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	// PublicBaseURL prefixes links sent in emails and local storage URLs.
	PublicBaseURL    string
	PasswordResetURL string
	ResetTTL         time.Duration
	DefaultRate      float64
	RequestTimeout   time.Duration

	Storage   StorageConfig
	Mail      MailConfig
	Queue     QueueConfig
	Telemetry TelemetryConfig
}

// LoadDotEnv reads .env files when present. Variables already set win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: skip %s: %v", f, err)
		}
	}
}

// Load reads configuration values from environment variables. Missing
// required variables stop the program.
func Load() Config {
	port := must("APP_PORT")
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           port,
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", "json"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		PublicBaseURL:  strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		ResetTTL:       envDur("PASSWORD_RESET_TTL", time.Hour),
		DefaultRate:    envFloat("DEFAULT_EXCHANGE_RATE", 180),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 15*time.Second),
		Storage:        LoadStorageConfig(),
		Mail:           LoadMailConfig(),
		Queue:          LoadQueueConfig(),
		Telemetry:      LoadTelemetryConfig(),
	}
	cfg.PasswordResetURL = envStr("PASSWORD_RESET_URL", cfg.PublicBaseURL+"/reset-password")
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = cfg.PublicBaseURL
	}
	return cfg
}

// must retrieves the value of a required environment variable.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return f
	}
	return d
}

func envList(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}
