package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	LLM       LLMConfig
	Email     EmailConfig
	Push      PushConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.UsesSQL() {
		if err := cfg.DB.ensureDSN(cfg.Store.Driver); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STUDYHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDYHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STUDYHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDYHUB_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"STUDYHUB_PUBLIC_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// StoreConfig selects the document backend shared by notifications, resources and AI data.
type StoreConfig struct {
	Driver      string `envconfig:"STUDYHUB_STORE_DRIVER" default:"firestore"`
	AutoMigrate bool   `envconfig:"STUDYHUB_AUTO_MIGRATE" default:"false"`
}

// UsesSQL reports whether the store is backed by gorm rather than Firestore.
func (s StoreConfig) UsesSQL() bool {
	switch s.normalized() {
	case StoreDriverPostgres, StoreDriverSQLite:
		return true
	}
	return false
}

func (s StoreConfig) normalized() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

// NormalizedDriver returns the lowercase driver name.
func (s StoreConfig) NormalizedDriver() string {
	return s.normalized()
}

func (s StoreConfig) validate() error {
	switch s.normalized() {
	case StoreDriverFirestore, StoreDriverPostgres, StoreDriverSQLite:
		return nil
	}
	return fmt.Errorf("%s must be one of %s, %s, %s", EnvStoreDriver, StoreDriverFirestore, StoreDriverPostgres, StoreDriverSQLite)
}

type DBConfig struct {
	DSN string `envconfig:"STUDYHUB_DB_DSN"`

	LegacyHost     string `envconfig:"STUDYHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"STUDYHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STUDYHUB_DB_USER"`
	LegacyPassword string `envconfig:"STUDYHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"STUDYHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"STUDYHUB_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STUDYHUB_SQLITE_PATH" default:"studyhub.db"`

	MaxOpenConns    int           `envconfig:"STUDYHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDYHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDYHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDYHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDYHUB_REDIS_URL"`
	Address      string        `envconfig:"STUDYHUB_REDIS_ADDR"`
	Password     string        `envconfig:"STUDYHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDYHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDYHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDYHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDYHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDYHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDYHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// FirebaseConfig holds the service account used for Firestore, FCM and ID token checks.
type FirebaseConfig struct {
	ProjectID       string `envconfig:"STUDYHUB_FIREBASE_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STUDYHUB_FIREBASE_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"STUDYHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

// HasCredentials reports whether explicit service account credentials were supplied.
func (f FirebaseConfig) HasCredentials() bool {
	return strings.TrimSpace(f.CredentialsJSON) != "" || strings.TrimSpace(f.CredentialsFile) != ""
}

type PubSubConfig struct {
	FanoutTopic        string `envconfig:"STUDYHUB_PUBSUB_FANOUT_TOPIC" default:"studyhub-notification-fanout"`
	FanoutSubscription string `envconfig:"STUDYHUB_PUBSUB_FANOUT_SUBSCRIPTION"`
}

// Enabled reports whether the email fan-out topic should be used.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.FanoutTopic) != ""
}

// OutboxConfig routes the email fan-out through the SQL outbox. Only honored
// by the SQL store drivers.
type OutboxConfig struct {
	Enabled        bool `envconfig:"STUDYHUB_OUTBOX_ENABLED" default:"false"`
	BatchSize      int  `envconfig:"STUDYHUB_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int  `envconfig:"STUDYHUB_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int  `envconfig:"STUDYHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int  `envconfig:"STUDYHUB_OUTBOX_RETENTION_DAYS" default:"30"`

	MaintenanceInterval time.Duration `envconfig:"STUDYHUB_MAINTENANCE_INTERVAL" default:"24h"`
}

type LLMConfig struct {
	APIKey      string        `envconfig:"STUDYHUB_LLM_API_KEY"`
	BaseURL     string        `envconfig:"STUDYHUB_LLM_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"STUDYHUB_LLM_MODEL" default:"gpt-4o-mini"`
	MaxTokens   int           `envconfig:"STUDYHUB_LLM_MAX_TOKENS" default:"1500"`
	Temperature float64       `envconfig:"STUDYHUB_LLM_TEMPERATURE" default:"0.4"`
	Timeout     time.Duration `envconfig:"STUDYHUB_LLM_TIMEOUT" default:"60s"`
}

// Configured reports whether an API key is present.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

type EmailConfig struct {
	ResendAPIKey string `envconfig:"STUDYHUB_RESEND_API_KEY"`
	From         string `envconfig:"STUDYHUB_EMAIL_FROM" default:"StudyHub <notifications@studyhub.app>"`
	Subject      string `envconfig:"STUDYHUB_EMAIL_SUBJECT_PREFIX" default:"[StudyHub]"`
}

// Configured reports whether outbound email can be sent.
func (e EmailConfig) Configured() bool {
	return strings.TrimSpace(e.ResendAPIKey) != ""
}

type PushConfig struct {
	TokenTTL  time.Duration `envconfig:"STUDYHUB_PUSH_TOKEN_TTL" default:"720h"`
	IconURL   string        `envconfig:"STUDYHUB_PUSH_ICON_URL"`
	BatchSize int           `envconfig:"STUDYHUB_PUSH_BATCH_SIZE" default:"500"`
}

type RateLimitConfig struct {
	AIWindow time.Duration `envconfig:"STUDYHUB_RATE_LIMIT_AI_WINDOW" default:"1m"`
	AILimit  int           `envconfig:"STUDYHUB_RATE_LIMIT_AI_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STUDYHUB_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (db *DBConfig) ensureDSN(driver string) error {
	if strings.EqualFold(driver, StoreDriverSQLite) {
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvSQLitePath)
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
