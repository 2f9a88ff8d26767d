package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	liststrings "signflow/pkg/platform/strings"
)

// Config is the full service configuration, loaded from the environment.
type Config struct {
	Server       Server
	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Lifecycle    LifecycleConfig
	OTP          OTPConfig
	Verification VerificationConfig
	Esign        EsignConfig
	Blob         BlobConfig
	RateLimit    RateLimitConfig
	Otel         OtelConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"SIGNFLOW_ADDR"             envDefault:":8080"`
	Environment     string        `env:"SIGNFLOW_ENV"              envDefault:"development"`
	LogLevel        string        `env:"SIGNFLOW_LOG_LEVEL"        envDefault:"info"`
	RequestTimeout  time.Duration `env:"SIGNFLOW_REQUEST_TIMEOUT"  envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SIGNFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// PostgresConfig selects the durable store. An empty URL runs in memory.
type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT"        envDefault:"5s"`
}

// RedisConfig backs webhook de-duplication. An empty URL uses the in-memory deduper.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// KafkaConfig enables the audit outbox relay. Empty brokers disable it.
type KafkaConfig struct {
	Brokers         []string      `env:"KAFKA_BROKERS"           envSeparator:","`
	ClientID        string        `env:"KAFKA_CLIENT_ID"         envDefault:"signflow"`
	ComplianceTopic string        `env:"KAFKA_TOPIC_COMPLIANCE"  envDefault:"signflow.audit.compliance"`
	SecurityTopic   string        `env:"KAFKA_TOPIC_SECURITY"    envDefault:"signflow.audit.security"`
	OperationsTopic string        `env:"KAFKA_TOPIC_OPERATIONS"  envDefault:"signflow.audit.operations"`
	Partitions      int32         `env:"KAFKA_TOPIC_PARTITIONS"  envDefault:"3"`
	Replication     int16         `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
	RelayInterval   time.Duration `env:"KAFKA_RELAY_INTERVAL"    envDefault:"1s"`
	RelayBatchSize  int           `env:"KAFKA_RELAY_BATCH_SIZE"  envDefault:"100"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// LifecycleConfig controls status bookkeeping.
type LifecycleConfig struct {
	SeedStatus      string        `env:"LIFECYCLE_SEED_STATUS"       envDefault:"created"`
	SharedStatus    string        `env:"LIFECYCLE_SHARED_STATUS"     envDefault:"shared"`
	CatalogCacheTTL time.Duration `env:"LIFECYCLE_CATALOG_CACHE_TTL" envDefault:"1m"`
	// MemoryCatalog and MemoryDocuments seed the in-memory store used when
	// DATABASE_URL is empty. The last catalog code is final.
	MemoryCatalog   []string `env:"LIFECYCLE_MEMORY_CATALOG"   envSeparator:"," envDefault:"created,shared,signed"`
	MemoryDocuments int      `env:"LIFECYCLE_MEMORY_DOCUMENTS" envDefault:"100"`
}

// OTPConfig controls OTP session defaults.
type OTPConfig struct {
	TTL         time.Duration `env:"OTP_TTL"          envDefault:"300s"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	// EchoCode returns the plaintext code in API responses. Development only.
	EchoCode   bool `env:"OTP_ECHO_CODE"   envDefault:"false"`
	BcryptCost int  `env:"OTP_BCRYPT_COST" envDefault:"10"`
}

// VerificationConfig lists the roles that must verify a document.
type VerificationConfig struct {
	Roles []string `env:"VERIFICATION_ROLES" envSeparator:"," envDefault:"seller,buyer"`
	// AdvanceStatus, when set, moves the document to this status once every
	// role is verified.
	AdvanceStatus string `env:"VERIFICATION_ADVANCE_STATUS"`
}

// EsignConfig controls the mock signer flow and provider callbacks.
type EsignConfig struct {
	RedirectBaseURL string        `env:"ESIGN_REDIRECT_BASE_URL" envDefault:"http://localhost:8080/mock-esign"`
	WebhookDedupTTL time.Duration `env:"ESIGN_WEBHOOK_DEDUP_TTL" envDefault:"24h"`
	WebhookTimeout  time.Duration `env:"ESIGN_WEBHOOK_TIMEOUT"   envDefault:"10s"`
}

// BlobConfig enables S3 presigned public links for share batches.
type BlobConfig struct {
	Bucket    string        `env:"BLOB_BUCKET"`
	Region    string        `env:"BLOB_REGION"   envDefault:"us-east-1"`
	Endpoint  string        `env:"BLOB_ENDPOINT"`
	PathStyle bool          `env:"BLOB_PATH_STYLE"`
	LinkTTL   time.Duration `env:"BLOB_LINK_TTL" envDefault:"168h"`
}

func (b BlobConfig) Enabled() bool { return b.Bucket != "" }

// RateLimitConfig throttles OTP issue and verification per client IP. A
// limit of zero disables it.
type RateLimitConfig struct {
	VerifyLimit  int           `env:"RATE_LIMIT_VERIFY"        envDefault:"20"`
	VerifyWindow time.Duration `env:"RATE_LIMIT_VERIFY_WINDOW" envDefault:"1m"`
}

// OtelConfig enables trace export. An empty endpoint keeps the no-op provider.
type OtelConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME"    envDefault:"signflow"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`
}

// Load parses the environment into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Verification.Roles = liststrings.Dedupe(cfg.Verification.Roles, liststrings.TrimLower)
	cfg.Lifecycle.MemoryCatalog = liststrings.Dedupe(cfg.Lifecycle.MemoryCatalog, liststrings.Trim)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Lifecycle.SeedStatus) == "" {
		return fmt.Errorf("LIFECYCLE_SEED_STATUS must not be empty")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}
	if len(c.Verification.Roles) == 0 {
		return fmt.Errorf("VERIFICATION_ROLES must list at least one role")
	}
	if c.Postgres.URL == "" && len(c.Lifecycle.MemoryCatalog) == 0 {
		return fmt.Errorf("LIFECYCLE_MEMORY_CATALOG must list at least one status without DATABASE_URL")
	}
	if c.Kafka.Enabled() && c.Postgres.URL == "" {
		return fmt.Errorf("KAFKA_BROKERS requires DATABASE_URL for the audit outbox")
	}
	return nil
}
