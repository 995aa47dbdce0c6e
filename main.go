package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/AmanCH3/hamro-grocery-backend/config"
	"github.com/AmanCH3/hamro-grocery-backend/controllers"
	"github.com/AmanCH3/hamro-grocery-backend/database"
	"github.com/AmanCH3/hamro-grocery-backend/events"
	"github.com/AmanCH3/hamro-grocery-backend/locks"
	"github.com/AmanCH3/hamro-grocery-backend/middleware"
	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
	"github.com/AmanCH3/hamro-grocery-backend/pkg/logger"
	"github.com/AmanCH3/hamro-grocery-backend/providers"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
	"github.com/AmanCH3/hamro-grocery-backend/routes"
	"github.com/AmanCH3/hamro-grocery-backend/services"
)

const serviceName = "hamro-grocery"

func main() {
	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal("Config load failed", zap.Error(err))
	}
	log = withCloudWatchSink(ctx, cfg, log)

	// --- Database ---
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Optional infrastructure ---
	var notifyRepo repository.NotificationRepository = repository.NoopNotificationRepository{}
	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			log.Warn("MongoDB unavailable, notifications disabled", zap.Error(err))
		} else {
			mongoClient = client
			mongoRepo := repository.NewMongoNotificationRepository(mdb)
			if err := mongoRepo.EnsureIndexes(ctx); err != nil {
				log.Warn("Failed to create notification indexes", zap.Error(err))
			}
			notifyRepo = mongoRepo
		}
	}

	var checkoutLock locks.CheckoutLock = locks.NoopCheckoutLock{}
	readiness := map[string]controllers.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable, checkout lock disabled", zap.Error(err))
		} else {
			defer func() { _ = redisClient.Close() }()
			checkoutLock = locks.NewRedisCheckoutLock(redisClient, 30*time.Second)
			readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}

	publisher, metrics := setupAWS(ctx, cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Event publisher close error", zap.Error(err))
		}
	}()

	// --- Payment gateways ---
	gateways := []providers.PaymentProvider{providers.NewKhaltiProvider(cfg.Khalti)}
	if cfg.Stripe.Enabled() {
		gateways = append(gateways, providers.NewStripeProvider(cfg.Stripe, nil))
		log.Info("Stripe gateway enabled")
	}

	// --- Dependency injection ---
	orderRepo := repository.NewGormOrderRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	tokens := services.NewTokenService(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, tokens, log)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, checkoutLock, publisher, metrics, log)
	paymentService := services.NewPaymentService(
		orderRepo, userRepo, notifyRepo,
		providers.NewRegistry(gateways...),
		services.NewBonusRoller(time.Now().UnixNano()),
		publisher, metrics, log,
	)

	// --- HTTP router ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())

	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins()))

	routes.Register(r, routes.Controllers{
		Auth:    controllers.NewAuthController(authService),
		Orders:  controllers.NewOrderController(orderService),
		Payment: controllers.NewPaymentController(paymentService, cfg.FrontendURL),
		Health:  controllers.NewHealthController(readiness),
	}, tokens)

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Hamro Grocery API started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if mongoClient != nil {
		if err := database.DisconnectMongo(shutdownCtx, mongoClient); err != nil {
			log.Error("MongoDB disconnect error", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Hamro Grocery API stopped gracefully")
}

// setupAWS builds the order event publisher and the CloudWatch recorder.
// Neither is fatal: a failure falls back to no-op implementations.
func setupAWS(ctx context.Context, cfg *config.Config, log *zap.Logger) (events.Publisher, awspkg.MetricsRecorder) {
	var publisher events.Publisher = events.NoopPublisher{}
	var metrics awspkg.MetricsRecorder

	switch cfg.EventsBackend {
	case config.EventsKafka:
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		log.Info("Publishing order events to Kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.OrderEventsTopic))
	case config.EventsSQS:
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Warn("AWS config unavailable, order events disabled", zap.Error(err))
			break
		}
		publisher = events.NewSQSPublisher(awspkg.NewSQSClient(awsCfg), cfg.OrderEventsQueue)
		log.Info("Publishing order events to SQS", zap.String("queue_url", cfg.OrderEventsQueue))
	case config.EventsSNS:
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Warn("AWS config unavailable, order events disabled", zap.Error(err))
			break
		}
		publisher = events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN)
		log.Info("Publishing order events to SNS", zap.String("topic_arn", cfg.OrderSNSTopicARN))
	}

	if cfg.CloudWatchEnabled {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
		} else {
			metrics = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
		}
	}
	return publisher, metrics
}

// withCloudWatchSink rebuilds the logger so entries are also shipped to
// CloudWatch Logs. The console-only logger is kept when the sink cannot be
// opened.
func withCloudWatchSink(ctx context.Context, cfg *config.Config, log *zap.Logger) *zap.Logger {
	if !cfg.CloudWatchEnabled {
		return log
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		return log
	}
	sink, err := awspkg.NewCloudWatchLogsWriter(ctx, awspkg.NewCloudWatchLogsClient(awsCfg), cfg.CloudWatchLogGroup, serviceName)
	if err != nil {
		log.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		return log
	}
	cwLog, err := logger.NewWithSink(cfg.AppEnv, sink)
	if err != nil {
		log.Warn("CloudWatch Logs logger build failed (non-fatal)", zap.Error(err))
		return log
	}
	_ = log.Sync()
	cwLog.Info("Shipping logs to CloudWatch", zap.String("log_group", cfg.CloudWatchLogGroup), zap.String("log_stream", sink.StreamName()))
	return cwLog
}
