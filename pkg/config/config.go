package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	AppStore      AppStoreConfig
	SMS           SMSConfig
	Outbox        OutboxConfig
	Settlement    SettlementConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ROUTONG_APP_ENV" required:"true"`
	Port         string `envconfig:"ROUTONG_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ROUTONG_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROUTONG_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ROUTONG_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ROUTONG_DB_DSN" required:"true"`
	Driver string `envconfig:"ROUTONG_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"ROUTONG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROUTONG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROUTONG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROUTONG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROUTONG_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROUTONG_REDIS_ADDR"`
	Password     string        `envconfig:"ROUTONG_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROUTONG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROUTONG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROUTONG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROUTONG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROUTONG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROUTONG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ROUTONG_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ROUTONG_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ROUTONG_JWT_EXPIRATION_MINUTES" default:"1440"`
	RefreshTokenDays  int    `envconfig:"ROUTONG_JWT_REFRESH_TOKEN_DAYS" default:"30"`
}

// RefreshTokenTTL converts the configured refresh token lifetime to a duration.
func (c JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ROUTONG_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ROUTONG_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ROUTONG_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ROUTONG_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ROUTONG_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ROUTONG_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginPhoneLimit    int           `envconfig:"ROUTONG_AUTH_RATE_LIMIT_LOGIN_PHONE_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ROUTONG_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ROUTONG_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterPhoneLimit int           `envconfig:"ROUTONG_AUTH_RATE_LIMIT_REGISTER_PHONE_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ROUTONG_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ROUTONG_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ROUTONG_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"ROUTONG_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ROUTONG_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	DomainTopic          string `envconfig:"ROUTONG_PUBSUB_DOMAIN_TOPIC" default:"domain-events"`
	DomainSubscription   string `envconfig:"ROUTONG_PUBSUB_DOMAIN_SUBSCRIPTION"`
	PurchaseSubscription string `envconfig:"ROUTONG_PUBSUB_PURCHASE_SUBSCRIPTION"`
}

// AppStoreConfig configures the in-app purchase receipt verifier.
type AppStoreConfig struct {
	VerifyURL    string        `envconfig:"ROUTONG_APPSTORE_VERIFY_URL"`
	SharedSecret string        `envconfig:"ROUTONG_APPSTORE_SHARED_SECRET"`
	Timeout      time.Duration `envconfig:"ROUTONG_APPSTORE_TIMEOUT" default:"10s"`
}

// SMSConfig configures the shame notification gateway.
type SMSConfig struct {
	Endpoint string        `envconfig:"ROUTONG_SMS_ENDPOINT"`
	APIKey   string        `envconfig:"ROUTONG_SMS_API_KEY"`
	Sender   string        `envconfig:"ROUTONG_SMS_SENDER" default:"routong"`
	Timeout  time.Duration `envconfig:"ROUTONG_SMS_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ROUTONG_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ROUTONG_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ROUTONG_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ROUTONG_OUTBOX_RETENTION_DAYS" default:"30"`
}

// SettlementConfig tunes the contract expiry sweep.
type SettlementConfig struct {
	SweepInterval  time.Duration `envconfig:"ROUTONG_SETTLEMENT_SWEEP_INTERVAL" default:"1m"`
	SweepBatchSize int           `envconfig:"ROUTONG_SETTLEMENT_SWEEP_BATCH_SIZE" default:"100"`
}

type NotificationsConfig struct {
	RetentionDays int `envconfig:"ROUTONG_NOTIFICATIONS_RETENTION_DAYS" default:"90"`
}
