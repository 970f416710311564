package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	StorageBackendMongo   = "mongo"
	StorageBackendMemory  = "memory"
	DefaultStorageBackend = StorageBackendMongo

	// Hourly slots from 09:00 through 17:00.
	DefaultSlotTimes = "09:00,10:00,11:00,12:00,13:00,14:00,15:00,16:00,17:00"

	DefaultBookingWindowDays = 7
	DefaultSlotLockTTL       = 10 * time.Second

	DefaultJWTTokenTTL = 24 * time.Hour
	DefaultBcryptCost  = 10

	DefaultCORSAllowedOrigin = "*"

	DefaultPromotionTopic    = "slot-promotions"
	DefaultPromotionDLQTopic = "slot-promotions-dlq"
	DefaultNotifierGroupID   = "slotbook-notifier"
	DefaultKafkaEnabled      = false

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
