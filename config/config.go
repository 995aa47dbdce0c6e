package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
)

const (
	EventsNone  = "none"
	EventsSNS   = "sns"
	EventsKafka = "kafka"
	EventsSQS   = "sqs"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Secrets Manager names consulted when AWS_USE_SECRETS=true.
const (
	SecretDBCredentials = "grocery/DB_CREDENTIALS"
	SecretKhaltiKey     = "grocery/KHALTI_SECRET_KEY"
	SecretJWT           = "grocery/JWT_SECRET"
)

// KhaltiConfig is everything the Khalti adapter needs. It is built once at
// startup and handed to the provider.
type KhaltiConfig struct {
	SecretKey  string
	BaseURL    string
	ReturnURL  string
	WebsiteURL string
	Timeout    time.Duration
}

type StripeConfig struct {
	APIKey     string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Enabled reports whether the Stripe gateway should be registered.
func (s StripeConfig) Enabled() bool { return s.APIKey != "" }

type Config struct {
	Port   string
	AppEnv string

	DBDriver         string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	SQLitePath       string

	JWTSecret string

	BackendURL  string
	FrontendURL string
	Khalti      KhaltiConfig
	Stripe      StripeConfig

	EventsBackend    string
	OrderSNSTopicARN string
	KafkaBrokers     []string
	OrderEventsTopic string
	OrderEventsQueue string

	RedisURL string
	MongoURI string
	MongoDB  string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	AllowedOrigins      []string
}

// Load reads an optional .env file, then the environment, then overrides
// secrets from AWS Secrets Manager when AWS_USE_SECRETS=true, and validates
// the result.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults only.
func FromEnv() *Config {
	backendURL := strings.TrimSuffix(os.Getenv("BACKEND_URL"), "/")
	frontendURL := strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:5173"), "/")

	cfg := &Config{
		Port:   getEnv("PORT", "8081"),
		AppEnv: getEnv("APP_ENV", "development"),

		DBDriver:         getEnv("DB_DRIVER", DriverPostgres),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kathmandu"),
		SQLitePath:       getEnv("SQLITE_PATH", "grocery.db"),

		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),

		BackendURL:  backendURL,
		FrontendURL: frontendURL,
		Khalti: KhaltiConfig{
			SecretKey:  strings.TrimSpace(os.Getenv("KHALTI_SECRET_KEY")),
			BaseURL:    strings.TrimSuffix(getEnv("KHALTI_BASE_URL", "https://a.khalti.com/api/v2"), "/"),
			ReturnURL:  backendURL + "/api/payment/verify",
			WebsiteURL: frontendURL,
			Timeout:    time.Duration(getEnvInt("KHALTI_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Stripe: StripeConfig{
			APIKey:     strings.TrimSpace(os.Getenv("STRIPE_API_KEY")),
			Currency:   getEnv("STRIPE_CURRENCY", "npr"),
			SuccessURL: backendURL + "/api/payment/verify?pidx={CHECKOUT_SESSION_ID}",
			CancelURL:  frontendURL + "/checkout?payment=failure",
		},

		EventsBackend:    strings.ToLower(getEnv("EVENTS_BACKEND", EventsNone)),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "grocery.orders"),
		OrderEventsQueue: os.Getenv("ORDER_EVENTS_QUEUE_URL"),

		RedisURL: os.Getenv("REDIS_URL"),
		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "hamro_grocery"),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "HamroGrocery"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/hamro-grocery/api"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
	return cfg
}

// ApplySecrets overrides credentials with values from the secret store.
// Secrets that cannot be read leave the environment values in place.
func (c *Config) ApplySecrets(ctx context.Context, sm awspkg.SecretsGetter) {
	if m, err := awspkg.GetJSONSecret(ctx, sm, SecretDBCredentials); err == nil {
		overrideIfSet(&c.PostgresUser, m["POSTGRES_USER"])
		overrideIfSet(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		overrideIfSet(&c.PostgresDB, m["POSTGRES_DB"])
		overrideIfSet(&c.PostgresHost, m["POSTGRES_HOST"])
		overrideIfSet(&c.PostgresPort, m["POSTGRES_PORT"])
	}
	if v, err := sm.GetSecret(ctx, SecretKhaltiKey); err == nil {
		overrideIfSet(&c.Khalti.SecretKey, strings.TrimSpace(v))
	}
	if v, err := sm.GetSecret(ctx, SecretJWT); err == nil {
		overrideIfSet(&c.JWTSecret, strings.TrimSpace(v))
	}
}

// Validate reports every missing setting at once. The server must not
// start accepting payment traffic when this fails.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverPostgres:
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
			errs = append(errs, errors.New("database config incomplete"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Khalti.SecretKey == "" {
		errs = append(errs, errors.New("KHALTI_SECRET_KEY is required"))
	}
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.Khalti.BaseURL == "" {
		errs = append(errs, errors.New("KHALTI_BASE_URL is required"))
	}
	if c.Khalti.Timeout <= 0 {
		errs = append(errs, errors.New("KHALTI_TIMEOUT_SECONDS must be positive"))
	}

	switch c.EventsBackend {
	case EventsNone:
	case EventsSNS:
		if c.OrderSNSTopicARN == "" {
			errs = append(errs, errors.New("ORDER_SNS_TOPIC_ARN is required when EVENTS_BACKEND=sns"))
		}
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka"))
		}
	case EventsSQS:
		if c.OrderEventsQueue == "" {
			errs = append(errs, errors.New("ORDER_EVENTS_QUEUE_URL is required when EVENTS_BACKEND=sqs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported EVENTS_BACKEND %q", c.EventsBackend))
	}

	for _, origin := range c.CORSOrigins() {
		if err := validateOrigin(origin); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// PostgresDSN renders the gorm postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

// CORSOrigins is the browser origin allow-list: ALLOWED_ORIGINS when set,
// otherwise the storefront itself.
func (c *Config) CORSOrigins() []string {
	if len(c.AllowedOrigins) > 0 {
		return c.AllowedOrigins
	}
	return []string{c.FrontendURL}
}

// validateOrigin accepts "*" or an http(s) origin without wildcards, the
// forms the CORS middleware is configured for.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.Contains(origin, "*") {
		return fmt.Errorf("invalid CORS origin %q: want \"*\" or http(s)://host[:port]", origin)
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overrideIfSet(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
