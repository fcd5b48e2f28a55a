package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Artifacts    ArtifactsConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Workflow     WorkflowConfig
	RateLimit    RateLimitConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads TRACEBRIDGE_* variables, assembles a DSN from the discrete
// TRACEBRIDGE_DB_* fields when none is given and checks value ranges.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.legacyDSN()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env                string   `envconfig:"TRACEBRIDGE_APP_ENV" required:"true"`
	Port               string   `envconfig:"TRACEBRIDGE_APP_PORT" required:"true"`
	LogLevel           string   `envconfig:"TRACEBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack       bool     `envconfig:"TRACEBRIDGE_LOG_WARN_STACK" default:"false"`
	PublicDashboardURL string   `envconfig:"TRACEBRIDGE_PUBLIC_DASHBOARD_URL" default:"http://localhost:3000" validate:"omitempty,http_url"`
	CORSOrigins        []string `envconfig:"TRACEBRIDGE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// InviteLink builds the registration link sent with a pending invitation.
func (a AppConfig) InviteLink(token string) string {
	base := strings.TrimRight(a.PublicDashboardURL, "/")
	return fmt.Sprintf("%s/register?token=%s", base, url.QueryEscape(token))
}

type ServiceConfig struct {
	Kind string `envconfig:"TRACEBRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRACEBRIDGE_DB_DSN"`
	Driver string `envconfig:"TRACEBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRACEBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRACEBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRACEBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"TRACEBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRACEBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRACEBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRACEBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRACEBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRACEBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRACEBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRACEBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRACEBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"TRACEBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRACEBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRACEBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRACEBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRACEBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRACEBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRACEBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRACEBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRACEBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRACEBRIDGE_JWT_EXPIRATION_MINUTES" required:"true" validate:"min=1"`
	// RegistrationHookSecret guards the internal endpoint the registration flow calls.
	RegistrationHookSecret string `envconfig:"TRACEBRIDGE_REGISTRATION_HOOK_SECRET"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRACEBRIDGE_AUTO_MIGRATE" default:"false"`
	AuditToBQ   bool `envconfig:"TRACEBRIDGE_FEATURE_AUDIT_BIGQUERY" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TRACEBRIDGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRACEBRIDGE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TRACEBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRACEBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"TRACEBRIDGE_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"TRACEBRIDGE_GCS_DOWNLOAD_URL_EXPIRY" default:"24h"`
	PublicBaseURL     string        `envconfig:"TRACEBRIDGE_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type ArtifactsConfig struct {
	MaxUploadMB       int      `envconfig:"TRACEBRIDGE_ARTIFACT_MAX_UPLOAD_MB" default:"25"`
	AllowedExtensions []string `envconfig:"TRACEBRIDGE_ARTIFACT_ALLOWED_EXTENSIONS" default:"pdf,png,jpg,jpeg,webp"`
	ObjectPrefix      string   `envconfig:"TRACEBRIDGE_ARTIFACT_OBJECT_PREFIX" default:"artifacts"`
}

// MaxUploadBytes converts the configured limit to bytes.
func (a ArtifactsConfig) MaxUploadBytes() int64 {
	if a.MaxUploadMB <= 0 {
		return 0
	}
	return int64(a.MaxUploadMB) << 20
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"TRACEBRIDGE_PUBSUB_DOMAIN_TOPIC" required:"true"`
	AuditSubscription        string `envconfig:"TRACEBRIDGE_PUBSUB_AUDIT_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"TRACEBRIDGE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"TRACEBRIDGE_BIGQUERY_DATASET" default:"tracebridge"`
	AuditTable string `envconfig:"TRACEBRIDGE_BIGQUERY_AUDIT_TABLE" default:"audit_events"`
	// CreateTable lets the worker create a missing audit table on boot.
	CreateTable bool `envconfig:"TRACEBRIDGE_BIGQUERY_CREATE_TABLE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRACEBRIDGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50" validate:"min=1,max=500"`
	PollIntervalMS int `envconfig:"TRACEBRIDGE_OUTBOX_PUBLISH_POLL_MS" default:"500" validate:"min=10"`
	MaxAttempts    int `envconfig:"TRACEBRIDGE_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"min=1"`
}

type WorkflowConfig struct {
	MaxReinvites      int           `envconfig:"TRACEBRIDGE_WORKFLOW_MAX_REINVITES" default:"3" validate:"gte=0"`
	InviteRateLimit   int64         `envconfig:"TRACEBRIDGE_WORKFLOW_INVITE_RATE_LIMIT" default:"30"`
	InviteRateWindow  time.Duration `envconfig:"TRACEBRIDGE_WORKFLOW_INVITE_RATE_WINDOW" default:"1h"`
	DirectoryCacheTTL time.Duration `envconfig:"TRACEBRIDGE_DIRECTORY_CACHE_TTL" default:"5m"`
}

// RateLimitConfig throttles the unauthenticated surfaces.
type RateLimitConfig struct {
	PublicWindow     time.Duration `envconfig:"TRACEBRIDGE_PUBLIC_RATE_WINDOW" default:"1m"`
	PublicIPLimit    int           `envconfig:"TRACEBRIDGE_PUBLIC_RATE_IP_LIMIT" default:"30" validate:"gte=0"`
	PublicTokenLimit int           `envconfig:"TRACEBRIDGE_PUBLIC_RATE_TOKEN_LIMIT" default:"10" validate:"gte=0"`
}

// legacyDSN builds a postgres URL from the discrete connection fields.
func (db DBConfig) legacyDSN() (string, error) {
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String(), nil
}
