package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	Redis  RedisConfig
	Twilio TwilioConfig
	Gemini GeminiConfig
	Dialer DialerConfig
	Auth   AuthConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type StoreConfig struct {
	// Backend selects where snapshots live: "file" or "redis".
	Backend string

	// File paths used when Backend == "file".
	PhonePath   string
	CallLogPath string
}

type RedisConfig struct {
	Host string
	Port int
}

// TwilioConfig carries the real-gateway credentials. The real gateway is
// selected only when all three fields are present; otherwise dispatch runs
// against the simulated gateway.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	FromNumber  string
	CallTimeout time.Duration
}

// Configured reports whether the credentials are complete enough to drive
// the real telephony provider.
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

func (c GeminiConfig) Configured() bool { return c.APIKey != "" }

type DialerConfig struct {
	// Concurrency bounds the fan-out of a call-all batch. 1 keeps the call
	// log in registry order.
	Concurrency int

	// Simulated-gateway latency window.
	SimMinDelay time.Duration
	SimMaxDelay time.Duration
}

type AuthConfig struct {
	// JWTSecret is optional: when empty the API runs unprotected, which is
	// the expected posture for a local dashboard.
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
}

func (c AuthConfig) Enabled() bool { return c.JWTSecret != "" }

func Load() (Config, error) {
	c := Config{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	c.App.Port = intOr("APP_PORT", 8080)

	c.Store.Backend = strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	c.Store.PhonePath = stringOr("PHONE_STORE_PATH", "phone_numbers.json")
	c.Store.CallLogPath = stringOr("CALL_LOG_PATH", "call_logs.json")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = intOr("REDIS_PORT", 6379)

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER"))
	c.Twilio.CallTimeout = durationOr("TWILIO_CALL_TIMEOUT", 30*time.Second)

	c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Gemini.Model = stringOr("GEMINI_MODEL", "gemini-2.5-flash")

	c.Dialer.Concurrency = intOr("DIAL_CONCURRENCY", 1)
	c.Dialer.SimMinDelay = durationOr("SIM_MIN_DELAY", time.Second)
	c.Dialer.SimMaxDelay = durationOr("SIM_MAX_DELAY", 3*time.Second)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.AccessTokenTTL = durationOr("JWT_ACCESS_TTL", 15*time.Minute)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.PhonePath == "" {
			errs = append(errs, errors.New("PHONE_STORE_PATH is required for the file backend"))
		}
		if c.Store.CallLogPath == "" {
			errs = append(errs, errors.New("CALL_LOG_PATH is required for the file backend"))
		}
	case "redis":
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis backend"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be file or redis, got %q", c.Store.Backend))
	}

	// Partial Twilio credentials are a misconfiguration worth failing on:
	// silently dialing through the simulator would mask a typo'd secret.
	if !c.Twilio.Configured() {
		any := c.Twilio.AccountSID != "" || c.Twilio.AuthToken != "" || c.Twilio.FromNumber != ""
		if any {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set together"))
		}
	}
	if c.Twilio.CallTimeout <= 0 {
		errs = append(errs, errors.New("TWILIO_CALL_TIMEOUT must be positive"))
	}

	if c.Dialer.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("DIAL_CONCURRENCY must be >= 1, got %d", c.Dialer.Concurrency))
	}
	if c.Dialer.SimMinDelay < 0 || c.Dialer.SimMaxDelay < c.Dialer.SimMinDelay {
		errs = append(errs, errors.New("SIM_MIN_DELAY/SIM_MAX_DELAY must form a non-negative window"))
	}

	if c.Auth.Enabled() {
		if c.Auth.AccessTokenTTL <= 0 {
			errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
		}
		if c.IsProduction() && c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func stringOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// Forces a validation error that names the key's constraint.
		return -1
	}
	return n
}

func durationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return -1
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
