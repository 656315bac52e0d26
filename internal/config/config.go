package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config is the API process configuration, read once from the environment.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Twilio     TwilioConfig
	Summarizer SummarizerConfig
	Lifecycle  LifecycleConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable origin used for provider callbacks.
	PublicBaseURL string

	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
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

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string

	// DemoMode forces the simulated gateway even when credentials are present.
	DemoMode bool

	ValidateWebhooks bool
	RequestTimeout   time.Duration
}

// Configured reports whether both credentials are present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != ""
}

// ValidAccountSID reports whether the account SID has the shape Twilio issues.
func (t TwilioConfig) ValidAccountSID() bool {
	return strings.HasPrefix(t.AccountSID, "AC")
}

type SummarizerConfig struct {
	// Provider is one of template, openai, anthropic.
	Provider string

	OpenAIAPIKey string
	OpenAIModel  string

	AnthropicAPIKey string
	AnthropicModel  string
}

type LifecycleConfig struct {
	ConnectDelay time.Duration
	CallDuration time.Duration
	StageTimeout time.Duration

	ReconcileInterval time.Duration
	StaleAfter        time.Duration

	MaxActiveCallsPerUser int
}

// Load reads the process environment. Malformed values are reported together
// with validation failures from the same pass.
func Load() (Config, error) {
	var c Config
	e := &env{}

	c.App.Env = e.str("APP_ENV")
	c.App.Port = e.port("APP_PORT")
	c.App.PublicBaseURL = strings.TrimRight(e.str("PUBLIC_BASE_URL"), "/")
	c.App.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	c.DB = DBConfig{
		Host:     e.str("DB_HOST"),
		Port:     e.port("DB_PORT"),
		User:     e.str("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     e.str("DB_NAME"),
		SSLMode:  e.str("DB_SSLMODE"),
	}
	c.Redis = RedisConfig{Host: e.str("REDIS_HOST"), Port: e.port("REDIS_PORT")}

	c.Auth = AuthConfig{
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       e.str("JWT_ISSUER"),
		JWTAudience:     e.str("JWT_AUDIENCE"),
		AccessTokenTTL:  e.duration("JWT_ACCESS_TTL"),
		RefreshTokenTTL: e.duration("JWT_REFRESH_TTL"),
	}

	c.Twilio = TwilioConfig{
		AccountSID:       e.str("TWILIO_ACCOUNT_SID"),
		AuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		PhoneNumber:      e.str("TWILIO_PHONE_NUMBER"),
		DemoMode:         e.flag("DEMO_MODE"),
		ValidateWebhooks: e.flag("TWILIO_VALIDATE_WEBHOOKS"),
		RequestTimeout:   e.duration("TWILIO_REQUEST_TIMEOUT"),
	}

	c.Summarizer = SummarizerConfig{
		Provider:        strings.ToLower(e.str("SUMMARIZER_PROVIDER")),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     e.str("OPENAI_MODEL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  e.str("ANTHROPIC_MODEL"),
	}

	c.Lifecycle = LifecycleConfig{
		ConnectDelay:          e.duration("LIFECYCLE_CONNECT_DELAY"),
		CallDuration:          e.duration("LIFECYCLE_CALL_DURATION"),
		StageTimeout:          e.duration("LIFECYCLE_STAGE_TIMEOUT"),
		ReconcileInterval:     e.duration("RECONCILE_INTERVAL"),
		StaleAfter:            e.duration("RECONCILE_STALE_AFTER"),
		MaxActiveCallsPerUser: e.optionalInt("MAX_ACTIVE_CALLS_PER_USER"),
	}

	if len(e.errs) > 0 {
		return Config{}, joinErrors(e.errs)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !slices.Contains(appEnvs, c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		c.App.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
	}
	if len(c.App.CORSAllowedOrigins) == 0 {
		if c.IsProduction() {
			errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS is required in production"))
		} else {
			c.App.CORSAllowedOrigins = []string{"*"}
		}
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
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !slices.Contains(sslModes, c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
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
		c.Auth.AccessTokenTTL = 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.RequestTimeout <= 0 {
		c.Twilio.RequestTimeout = 10 * time.Second
	}
	if c.Twilio.ValidateWebhooks && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_WEBHOOKS is set"))
	}

	switch c.Summarizer.Provider {
	case "":
		c.Summarizer.Provider = "template"
	case "template", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("SUMMARIZER_PROVIDER must be one of template, openai, anthropic, got %q", c.Summarizer.Provider))
	}
	if c.Summarizer.OpenAIModel == "" {
		c.Summarizer.OpenAIModel = "gpt-4o-mini"
	}
	if c.Summarizer.AnthropicModel == "" {
		c.Summarizer.AnthropicModel = "claude-3-5-haiku-latest"
	}

	if c.Lifecycle.ConnectDelay <= 0 {
		c.Lifecycle.ConnectDelay = 2 * time.Second
	}
	if c.Lifecycle.CallDuration <= 0 {
		c.Lifecycle.CallDuration = 6 * time.Second
	}
	if c.Lifecycle.StageTimeout <= 0 {
		c.Lifecycle.StageTimeout = 30 * time.Second
	}
	if c.Lifecycle.ReconcileInterval <= 0 {
		c.Lifecycle.ReconcileInterval = time.Minute
	}
	if c.Lifecycle.StaleAfter <= 0 {
		c.Lifecycle.StaleAfter = 10 * time.Minute
	}
	if c.Lifecycle.MaxActiveCallsPerUser < 0 {
		errs = append(errs, fmt.Errorf("MAX_ACTIVE_CALLS_PER_USER must be >= 0, got %d", c.Lifecycle.MaxActiveCallsPerUser))
	} else if c.Lifecycle.MaxActiveCallsPerUser == 0 {
		c.Lifecycle.MaxActiveCallsPerUser = 3
	}
	if c.Lifecycle.StaleAfter <= c.Lifecycle.ConnectDelay+c.Lifecycle.CallDuration+2*c.Lifecycle.StageTimeout {
		errs = append(errs, errors.New("RECONCILE_STALE_AFTER must exceed the longest expected lifecycle"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Contains the password; never log it.
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// env reads variables and remembers every malformed one.
type env struct{ errs []error }

func (e *env) str(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// port is required; a missing or non-numeric value is an error.
func (e *env) port(key string) int {
	v := e.str(key)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n
}

func (e *env) optionalInt(key string) int {
	v := e.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n
}

// duration returns zero when unset so Validate can apply the default.
func (e *env) duration(key string) time.Duration {
	v := e.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a duration like 30s, got %q", key, v))
	}
	return d
}

func (e *env) flag(key string) bool {
	v := e.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	appEnvs  = []string{"local", "dev", "staging", "production"}
	sslModes = []string{"disable", "require", "verify-ca", "verify-full"}
)

// joinErrors keeps a single failure unwrapped and prefixes a list otherwise.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return fmt.Errorf("config: %d problems:\n%w", len(errs), errors.Join(errs...))
}
