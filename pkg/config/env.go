package config

// EnvPrefix is empty because every variable spells out its full STUDYHUB_ name in the struct tags.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreDriverFirestore = "firestore"
	StoreDriverPostgres  = "postgres"
	StoreDriverSQLite    = "sqlite"
)

const (
	EnvAppEnv          = "STUDYHUB_APP_ENV"
	EnvPort            = "STUDYHUB_APP_PORT"
	EnvStoreDriver     = "STUDYHUB_STORE_DRIVER"
	EnvDBDSN           = "STUDYHUB_DB_DSN"
	EnvDBHost          = "STUDYHUB_DB_HOST"
	EnvDBUser          = "STUDYHUB_DB_USER"
	EnvDBName          = "STUDYHUB_DB_NAME"
	EnvSQLitePath      = "STUDYHUB_SQLITE_PATH"
	EnvRedisURL        = "STUDYHUB_REDIS_URL"
	EnvFirebaseProject = "STUDYHUB_FIREBASE_PROJECT_ID"
	EnvFirebaseCreds   = "STUDYHUB_FIREBASE_CREDENTIALS_JSON"
	EnvFanoutTopic     = "STUDYHUB_PUBSUB_FANOUT_TOPIC"
	EnvFanoutSub       = "STUDYHUB_PUBSUB_FANOUT_SUBSCRIPTION"
	EnvLLMAPIKey       = "STUDYHUB_LLM_API_KEY"
	EnvResendAPIKey    = "STUDYHUB_RESEND_API_KEY"
	EnvPushTokenTTL    = "STUDYHUB_PUSH_TOKEN_TTL"
	EnvCORSOrigins     = "STUDYHUB_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
