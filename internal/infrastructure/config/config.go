package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	MailLog      = "log"
	MailHTTP     = "http"
	MailPostmark = "postmark"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Store string `env:"STORE, default=memory" validate:"oneof=memory mongo postgres"`

	Auth     AuthConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Mail     MailConfig
	HTTP     HTTPConfig
}

type AuthConfig struct {
	JWTSecret             string        `env:"JWT_SECRET, required"`
	SessionTTL            time.Duration `env:"SESSION_TTL,    default=24h"`
	BcryptCost            int           `env:"BCRYPT_COST,    default=10" validate:"min=4,max=31"`
	ActivationTTL         time.Duration `env:"ACTIVATION_TTL, default=24h"`
	ResetTTL              time.Duration `env:"RESET_TTL,      default=1h"`
	ResetCooldown         time.Duration `env:"RESET_COOLDOWN, default=0s"`
	// TrustRegistrationRole makes POST /auth/register honour a requested
	// "admin" or "user" role, as the legacy registration contract did. When
	// false, registration always creates users and promotion goes through
	// PUT /users/:id.
	TrustRegistrationRole bool `env:"TRUST_REGISTRATION_ROLE, default=false"`
	// DiagnosticSecrets are the accepted /users/secret-stats challenge values.
	// Unset keeps the endpoint closed to everyone.
	DiagnosticSecrets []string `env:"DIAGNOSTIC_SECRETS"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

// RedisConfig is optional: an empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

type MailConfig struct {
	Driver               string `env:"MAIL_DRIVER, default=log" validate:"oneof=log http postmark"`
	ServiceURL           string `env:"EMAIL_SERVICE_URL"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `env:"MAIL_FROM, default=noreply@localhost"`
	Workers              int    `env:"MAIL_WORKERS, default=4" validate:"min=1"`
}

type HTTPConfig struct {
	BaseURL         string  `env:"APP_BASE_URL, default=http://localhost:8080"`
	RateLimitRPS    float64 `env:"RATE_LIMIT_RPS,    default=20" validate:"gte=0"`
	DefaultPageSize int     `env:"DEFAULT_PAGE_SIZE, default=10" validate:"min=1"`
	MaxPageSize     int     `env:"MAX_PAGE_SIZE,     default=100" validate:"min=1"`
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file, then the environment.
func Load(ctx context.Context) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l. Tests pass a map lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the keys each selected driver depends on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var errs []error
	if c.Store == StorePostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required when STORE=postgres"))
	}
	if c.Mail.Driver == MailHTTP && c.Mail.ServiceURL == "" {
		errs = append(errs, errors.New("EMAIL_SERVICE_URL is required when MAIL_DRIVER=http"))
	}
	if c.Mail.Driver == MailPostmark && c.Mail.PostmarkServerToken == "" {
		errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required when MAIL_DRIVER=postmark"))
	}
	if c.HTTP.DefaultPageSize > c.HTTP.MaxPageSize {
		errs = append(errs, errors.New("DEFAULT_PAGE_SIZE must not exceed MAX_PAGE_SIZE"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
