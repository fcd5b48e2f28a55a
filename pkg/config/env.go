package config

// EnvPrefix is the envconfig prefix applied to every setting.
const EnvPrefix = "TRACEBRIDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "TRACEBRIDGE_APP_ENV"
	EnvPort               = "TRACEBRIDGE_APP_PORT"
	EnvLogLevel           = "TRACEBRIDGE_LOG_LEVEL"
	EnvPublicDashboardURL = "TRACEBRIDGE_PUBLIC_DASHBOARD_URL"

	EnvDBDSN  = "TRACEBRIDGE_DB_DSN"
	EnvDBHost = "TRACEBRIDGE_DB_HOST"
	EnvDBUser = "TRACEBRIDGE_DB_USER"
	EnvDBName = "TRACEBRIDGE_DB_NAME"

	EnvRedisURL = "TRACEBRIDGE_REDIS_URL"

	EnvJWTSecret  = "TRACEBRIDGE_JWT_SECRET"
	EnvJWTIssuer  = "TRACEBRIDGE_JWT_ISSUER"
	EnvJWTExpMins = "TRACEBRIDGE_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "TRACEBRIDGE_GCP_PROJECT_ID"
	EnvGCSBucket    = "TRACEBRIDGE_GCS_BUCKET_NAME"

	EnvPubSubDomainTopic     = "TRACEBRIDGE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubAuditSub        = "TRACEBRIDGE_PUBSUB_AUDIT_SUBSCRIPTION"
	EnvPubSubNotificationSub = "TRACEBRIDGE_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvArtifactAllowedExts  = "TRACEBRIDGE_ARTIFACT_ALLOWED_EXTENSIONS"
	EnvWorkflowMaxReinvites = "TRACEBRIDGE_WORKFLOW_MAX_REINVITES"
)
