package main

import (
	"context"

	appthandler "slotbook/internal/appointments/handler"
	apptrepo "slotbook/internal/appointments/repository"
	apptservice "slotbook/internal/appointments/service"
	apptvalidator "slotbook/internal/appointments/validator"
	authhandler "slotbook/internal/auth/handler"
	authrepo "slotbook/internal/auth/repository"
	authservice "slotbook/internal/auth/service"
	"slotbook/internal/auth/token"
	authvalidator "slotbook/internal/auth/validator"
	"slotbook/internal/notification"
	"slotbook/pkg/app"
	"slotbook/pkg/config"
	"slotbook/pkg/kafka"
	kafkaconfig "slotbook/pkg/kafka/config"
	kafkamw "slotbook/pkg/kafka/middleware"
)

const serviceName = "appointments-api"

func main() {
	cfg := config.Load(serviceName)
	log := cfg.Log

	if cfg.JWTSecret == "" {
		log.Fatal("JWT secret is required, set JWT_SECRET")
	}

	var (
		bookingRepo  apptrepo.BookingRepository
		waitlistRepo apptrepo.WaitlistRepository
		locker       apptrepo.SlotLocker
		transactor   apptrepo.Transactor
		userRepo     authrepo.UserRepository
	)

	switch cfg.StorageBackend {
	case config.StorageBackendMongo:
		cfg.SetMongo()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
		if err := apptrepo.EnsureLockIndexes(ctx, cfg); err != nil {
			cancel()
			log.Fatal("Failed to create slot lock indexes", "error", err)
		}
		if err := authrepo.EnsureUserIndexes(ctx, cfg); err != nil {
			cancel()
			log.Fatal("Failed to create user indexes", "error", err)
		}
		cancel()

		bookingRepo = apptrepo.NewMongoBookingRepository(cfg)
		waitlistRepo = apptrepo.NewMongoWaitlistRepository(cfg)
		locker = apptrepo.NewMongoSlotLocker(cfg)
		transactor = apptrepo.NewMongoTransactor(cfg)
		userRepo = authrepo.NewMongoUserRepository(cfg)

	default:
		store := apptrepo.NewMemoryStore()
		bookingRepo = store.Bookings()
		waitlistRepo = store.Waitlist()
		locker = store
		transactor = store
		userRepo = authrepo.NewMemoryUserRepository()
		log.Info("Running with in-memory storage backend")
	}

	application := app.NewApplication()

	var notifier notification.Notifier
	if cfg.KafkaEnabled {
		producer, err := kafka.NewProducer(kafkaconfig.Load(), cfg.PromotionTopic, cfg.PromotionDLQTopic)
		if err != nil {
			log.Fatal("Failed to create Kafka producer", "error", err)
		}
		producer.Use(kafkamw.LoggingProducerMiddleware(log))
		notifier = notification.NewKafkaNotifier(producer, serviceName)
		application.OnShutdown(func() {
			if err := producer.Close(); err != nil {
				log.Error("Failed to close Kafka producer", "error", err)
			}
		})
		log.Info("Promotion events publishing to Kafka", "topic", cfg.PromotionTopic)
	} else {
		notifier = notification.NewLogNotifier(log)
		log.Info("Kafka disabled, promotion events will be logged only")
	}

	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL, log)

	slotValidator := apptvalidator.NewSlotValidator(cfg, log)
	engine := apptservice.NewEngine(bookingRepo, waitlistRepo, locker, transactor, notifier, slotValidator, cfg, log)

	userValidator := authvalidator.NewUserValidator(log)
	auth := authservice.NewAuthService(userRepo, tokens, userValidator, cfg, log)

	healthHandler := appthandler.NewHealthHandler(cfg.Client.Mongo, log)
	appointmentHandler := appthandler.NewAppointmentHandler(engine, tokens, log)
	authHandler := authhandler.NewAuthHandler(auth, tokens, log)

	application.SetApp(cfg, healthHandler, authHandler, appointmentHandler)
	application.Run()
}
