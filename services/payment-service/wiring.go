package main

import (
	"context"
	"fmt"
	"strconv"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	ddb "github.com/cate-nduta/Lash-Business-sub002/pkg/dynamodb"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/config"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/database"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/gateway"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/kafka"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/services"
)

// mongoDocuments is the collection MongoStore keeps pipeline documents in.
const mongoDocuments = "pipeline_documents"

func openStore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, logger *zap.Logger) (repository.DocumentStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(ctx, logger, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate documents table: %w", err)
		}
		return store, func() {
			if err := database.ClosePostgres(db); err != nil {
				logger.Error("Database close error", zap.Error(err))
			}
		}, nil

	case config.StoreDynamoDB:
		client := ddb.NewClientFromConfig(awsCfg)
		if cfg.Env != "production" {
			created, err := ddb.EnsureTable(ctx, client, cfg.DDBDocumentsTable, repository.DynamoHashKey)
			if err != nil {
				return nil, nil, err
			}
			if created {
				logger.Info("Created DynamoDB documents table", zap.String("table", cfg.DDBDocumentsTable))
			}
		}
		logger.Info("Using DynamoDB record store", zap.String("table", cfg.DDBDocumentsTable))
		return repository.NewDynamoStore(client, cfg.DDBDocumentsTable), func() {}, nil

	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using MongoDB record store", zap.String("database", cfg.MongoDBName))
		return repository.NewMongoStore(db, mongoDocuments), func() {
			if err := database.DisconnectMongo(context.Background(), client); err != nil {
				logger.Error("MongoDB disconnect error", zap.Error(err))
			}
		}, nil

	default:
		logger.Warn("Using in-memory record store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}
}

func newGateway(cfg *config.Config) gateway.Gateway {
	if cfg.Gateway == config.GatewayStripe {
		return gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookKey, nil)
	}
	return gateway.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackBaseURL)
}

// newLocker prefers Redis so leases hold across instances.
func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.KeyLocker, func()) {
	if cfg.RedisURL == "" {
		return services.NewLocalLocker(cfg.LockWait), func() {}
	}
	client, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process leases", zap.Error(err))
		return services.NewLocalLocker(cfg.LockWait), func() {}
	}
	logger.Info("Connected to Redis")
	return services.NewRedisLocker(client, cfg.LockWait), func() { _ = client.Close() }
}

func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsReady bool, logger *zap.Logger) (services.EventPublisher, func()) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		producer := kafka.NewRecordEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		return producer, producer.Close
	case config.EventsSNS:
		if !awsReady {
			logger.Warn("SNS events requested without AWS config, events disabled")
			return services.NoopEventPublisher{}, func() {}
		}
		return services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN), func() {}
	default:
		return services.NoopEventPublisher{}, func() {}
	}
}

func newEmailSender(cfg *config.Config, logger *zap.Logger) (sender.EmailSender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return sender.NewLogSender(logger), nil
	}
	return sender.NewSMTPSender(sender.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     strconv.Itoa(cfg.SMTPPort),
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// metricsRecorder keeps a nil client from becoming a non-nil interface.
func metricsRecorder(m *awspkg.MetricsClient) services.MetricsRecorder {
	if m == nil {
		return nil
	}
	return m
}
