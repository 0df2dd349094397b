package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	"github.com/cate-nduta/Lash-Business-sub002/services/common/auth"
	"github.com/cate-nduta/Lash-Business-sub002/services/common/logger"
	commonmw "github.com/cate-nduta/Lash-Business-sub002/services/common/middleware"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/config"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/controllers"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/routes"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/services"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[PaymentService] Failed to load config: ", err)
	}

	ctx := context.Background()

	// --- Logging (CloudWatch tee when enabled) ---
	var logSink io.Writer
	cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, serviceName)
	if err == nil && cwLogs.IsEnabled() {
		logSink = cwLogs
	}
	appLogger := logger.InitializeWithWriter(cfg.Env, logSink)
	defer appLogger.Sync()
	if err != nil {
		appLogger.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
	}

	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)
	if awsErr != nil {
		appLogger.Warn("AWS config load failed, AWS integrations disabled", zap.Error(awsErr))
	}
	awsReady := awsErr == nil

	metricsClient, err := awspkg.NewMetricsClient(ctx)
	if err != nil {
		appLogger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Storage ---
	doc, closeStore, err := openStore(ctx, cfg, awsCfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer closeStore()
	stores := repository.NewStores(doc)

	// --- Collaborators ---
	gw := newGateway(cfg)
	locker, closeLocker := newLocker(ctx, cfg, appLogger)
	defer closeLocker()
	events, closeEvents := newEventPublisher(cfg, awsCfg, awsReady, appLogger)
	defer closeEvents()

	templates, err := sender.LoadTemplates()
	if err != nil {
		appLogger.Fatal("Failed to load email templates", zap.Error(err))
	}
	emailSender, err := newEmailSender(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to init SMTP sender", zap.Error(err))
	}

	var calendar services.CalendarClient = services.NoopCalendar{}
	if cfg.CalendarAPIURL != "" {
		calendar = services.NewHTTPCalendarClient(cfg.CalendarAPIURL, cfg.CalendarAPIToken)
	}

	// --- Pipeline ---
	storeSink := services.NewStoreFailureSink(stores.Failures).WithRetention(cfg.FailureRetention)
	sinks := []services.FailureSink{storeSink}
	if cfg.SideEffectQueueURL != "" && awsReady {
		sinks = append(sinks, services.NewQueueFailureSink(awspkg.NewSQSClient(awsCfg, cfg.SideEffectQueueURL).WithLogger(appLogger)))
	}
	metrics := metricsRecorder(metricsClient)
	orch := services.NewOrchestrator(appLogger, metrics, sinks...)

	fulfillment := services.NewFulfillment(stores, services.SideEffects{
		Calendar:  calendar,
		Notifier:  services.NewNotifier(emailSender, templates, cfg.AdminEmail, events),
		Clients:   services.NewStoreClientDirectory(stores.Clients),
		GiftCards: services.NewStoreGiftCardLedger(stores.GiftCards),
		Referrals: services.NewStoreReferralIssuer(stores.Referrals),
		Capacity:  services.NewCapacity(stores, cfg.SlotsPerDay),
		Location:  cfg.Location(),
	}, orch, appLogger)

	router, err := services.NewRouter(services.NewHandlers(fulfillment), appLogger)
	if err != nil {
		appLogger.Fatal("Invalid handler registry", zap.Error(err))
	}

	var archive services.Archiver
	if cfg.WebhookArchiveBucket != "" && awsReady {
		archive = awspkg.NewS3Archiver(awsCfg, cfg.WebhookArchiveBucket)
	}

	processor := services.NewProcessor(services.ProcessorDeps{
		Gateway:      gw,
		Router:       router,
		Orchestrator: orch,
		Locker:       locker,
		LockTTL:      cfg.LockTTL,
		Archive:      archive,
		Metrics:      metrics,
		Logger:       appLogger,
	})

	// --- Reprocess consumer ---
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	if cfg.ReprocessQueueURL != "" && awsReady {
		consumer := services.NewReprocessConsumer(awspkg.NewSQSClient(awsCfg, cfg.ReprocessQueueURL).WithLogger(appLogger), processor, appLogger)
		go consumer.Start(consumerCtx)
	}

	// --- HTTP ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(appLogger))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	if metricsClient != nil && metricsClient.IsEnabled() {
		r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName, "gateway": gw.Name()})
	})

	pc := controllers.NewPaymentController(processor, storeSink, appLogger)
	routes.RegisterPaymentRoutes(r, pc, auth.NewVerifier(cfg.JWTSecret), routes.Options{CallbackPerMinute: cfg.CallbackRPM})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Payment service started",
			zap.String("port", cfg.Port),
			zap.String("gateway", gw.Name()),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Initiating graceful shutdown...")
	consumerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
	appLogger.Info("Payment service stopped gracefully")
}
