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
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Calls  CallsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TwilioConfig carries the provider credentials. The process refuses to
// start without them: serving half-configured would hand Twilio webhooks
// to a gateway that cannot answer calls.
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	APIKeySID    string
	APIKeySecret string
	TwimlAppSID  string
	PhoneNumber  string

	// ValidateWebhooks controls X-Twilio-Signature verification on the
	// webhook routes. Only disable for local tunnels.
	ValidateWebhooks bool

	// PublicBaseURL overrides the scheme+host used when recomputing webhook
	// signatures behind a proxy. Empty means derive from the request.
	PublicBaseURL string
}

type CallsConfig struct {
	// Store selects the call-session store backend: "memory" or "redis".
	Store string

	// SessionMaxAge is how long an unaccepted session may linger before the
	// sweeper prunes it.
	SessionMaxAge time.Duration

	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if v := strings.TrimSpace(os.Getenv("REDIS_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("REDIS_PORT must be an integer, got %q", v))
		}
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.APIKeySID = strings.TrimSpace(os.Getenv("TWILIO_API_KEY_SID"))
	c.Twilio.APIKeySecret = os.Getenv("TWILIO_API_KEY_SECRET")
	c.Twilio.TwimlAppSID = strings.TrimSpace(os.Getenv("TWIML_APP_SID"))
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.ValidateWebhooks = boolWithDefault("TWILIO_VALIDATE_WEBHOOKS", true)
	c.Twilio.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))

	c.Calls.Store = strings.TrimSpace(os.Getenv("CALL_STORE"))
	c.Calls.SessionMaxAge = mustDuration("CALL_SESSION_MAX_AGE")
	c.Calls.SweepInterval = mustDuration("CALL_SWEEP_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Calls.Store == "" {
		c.Calls.Store = "memory"
	}
	if c.Calls.Store != "memory" && c.Calls.Store != "redis" {
		errs = append(errs, fmt.Errorf("CALL_STORE must be memory or redis, got %q", c.Calls.Store))
	}
	if c.Calls.SessionMaxAge <= 0 {
		c.Calls.SessionMaxAge = 10 * time.Minute
	}
	if c.Calls.SweepInterval <= 0 {
		c.Calls.SweepInterval = time.Minute
	}

	if c.UsesRedis() {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when CALL_STORE=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	// Fail fast on missing provider credentials: a half-configured gateway
	// would feed Twilio malformed instructions it cannot recover from.
	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.APIKeySID == "" {
		errs = append(errs, errors.New("TWILIO_API_KEY_SID is required"))
	}
	if c.Twilio.APIKeySecret == "" {
		errs = append(errs, errors.New("TWILIO_API_KEY_SECRET is required"))
	}
	if c.Twilio.TwimlAppSID == "" {
		errs = append(errs, errors.New("TWIML_APP_SID is required"))
	}
	if c.Twilio.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required"))
	}
	if c.IsProduction() && !c.Twilio.ValidateWebhooks {
		errs = append(errs, errors.New("TWILIO_VALIDATE_WEBHOOKS must not be disabled in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) UsesRedis() bool {
	return c.Calls.Store == "redis"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func boolWithDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
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
