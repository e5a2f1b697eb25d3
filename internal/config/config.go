package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/iliyamo/lesson-slot-booking/internal/schedule"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The types reflect how the values are used
// in the application: strings for identifiers and secrets, durations for
// the hold-timeout policy knobs.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret used to verify JWTs from the identity layer
	HoldTimeout     time.Duration // soft-expiry window for unpaid holds during availability reads
	ReapCutoff      time.Duration // default age after which the reaper cancels unpaid holds
	ReapToken       string        // shared secret guarding the reap endpoint
	WebhookSecret   string        // shared secret for checkout webhook signatures
	ProviderBaseURL string        // checkout provider REST base URL
	ProviderAPIKey  string        // checkout provider API key
	Currency        string        // invoicing currency (ISO code)
	LessonPriceCents uint32       // price of one lesson slot in cents
	InvoiceDueDays  int           // days until an open invoice is due
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The timeout knobs
// default to the policy in the schedule package when unset.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		HoldTimeout:     minutes("HOLD_TIMEOUT_MIN", int(schedule.DefaultHoldTimeout/time.Minute)),
		ReapCutoff:      minutes("REAP_CUTOFF_MIN", int(schedule.DefaultReapCutoff/time.Minute)),
		ReapToken:       must("REAP_TOKEN"),
		WebhookSecret:   must("WEBHOOK_SECRET"),
		ProviderBaseURL: must("PROVIDER_BASE_URL"),
		ProviderAPIKey:  must("PROVIDER_API_KEY"),
		Currency:        getenv("CURRENCY", "EUR"),
		LessonPriceCents: uint32(envInt("LESSON_PRICE_CENTS", 4500)),
		InvoiceDueDays:  envInt("INVOICE_DUE_DAYS", 14),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// minutes reads an integer env var expressed in minutes with a default.
func minutes(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Minute
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
