package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStorageBackend = "STORAGE_BACKEND"

	EnvSlotTimes         = "SLOT_TIMES"
	EnvBookingWindowDays = "BOOKING_WINDOW_DAYS"
	EnvSlotLockTTL       = "SLOT_LOCK_TTL"

	EnvJWTSecret   = "JWT_SECRET"
	EnvJWTTokenTTL = "JWT_TOKEN_TTL"
	EnvBcryptCost  = "BCRYPT_COST"

	EnvCORSAllowedOrigin = "CORS_ALLOWED_ORIGIN"

	EnvPromotionTopic    = "PROMOTION_TOPIC"
	EnvPromotionDLQTopic = "PROMOTION_DLQ_TOPIC"
	EnvNotifierGroupID   = "NOTIFIER_GROUP_ID"
	EnvKafkaEnabled      = "KAFKA_ENABLED"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
