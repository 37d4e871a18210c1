package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexibot/internal/classifier"
	"lexibot/internal/config"
	"lexibot/internal/model"
	"lexibot/internal/ocr"
	mysqlClient "lexibot/internal/platform/mysql"
	rabbitmqClient "lexibot/internal/platform/rabbitmq"
	redisClient "lexibot/internal/platform/redis"
	"lexibot/internal/repository"
	"lexibot/internal/worker"
)

type App struct {
	Config        *config.Config
	Log           *zap.Logger
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker
	OCR           *ocr.VisionClient
	Outcome       *classifier.Classifier

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Message{},
		&model.Document{},
		&model.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	messageRepo := repository.NewMessageRepository(mysqlDB)
	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, log)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	var visionClient *ocr.VisionClient
	if cfg.OCR.Enabled {
		visionClient, err = ocr.NewVisionClient(ctx, cfg.OCR.CredentialsFile)
		if err != nil {
			// Scanned pages and images degrade to their native text layer.
			log.Warn("ocr client unavailable, continuing without it", zap.Error(err))
			visionClient = nil
		}
	}

	outcome := classifier.New(
		cfg.Classifier.ModelPath,
		cfg.Classifier.LabelsPath,
		cfg.Classifier.ONNXSharedLibPath,
	)

	return &App{
		Config:        cfg,
		Log:           log,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		MessageWorker: messageWorker,
		OCR:           visionClient,
		Outcome:       outcome,
		StartedAt:     time.Now(),
	}, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.OCR != nil {
		if err := a.OCR.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Outcome != nil {
		a.Outcome.Close()
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
