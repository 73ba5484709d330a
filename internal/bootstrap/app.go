package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ragdesk/internal/ai"
	appsvc "ragdesk/internal/app"
	"ragdesk/internal/config"
	"ragdesk/internal/index"
	"ragdesk/internal/model"
	mysqlClient "ragdesk/internal/platform/mysql"
	rabbitmqClient "ragdesk/internal/platform/rabbitmq"
	redisClient "ragdesk/internal/platform/redis"
	"ragdesk/internal/repository"
	"ragdesk/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Index  *index.ChromemIndex
	LLM    *ai.OpenAICompatibleClient
	Rerank *ai.RerankClient

	Ingest       *appsvc.IngestService
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.ChatSession{},
		&model.ConversationTurn{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
	if err != nil {
		return nil, err
	}

	// The vector index lives in memory and is derived from the chunk rows,
	// so a restart rebuilds exactly what the last committed ingestions left.
	idx, err := index.New()
	if err != nil {
		return nil, fmt.Errorf("create vector index failed: %w", err)
	}
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	chunks, err := chunkRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load chunks for index rebuild failed: %w", err)
	}
	if err := idx.Rebuild(ctx, chunks); err != nil {
		return nil, fmt.Errorf("rebuild vector index failed: %w", err)
	}

	llmClient := ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})
	rerankClient := ai.NewRerankClient(ai.RerankConfig{
		BaseURL: cfg.Rerank.BaseURL,
		APIKey:  cfg.Rerank.APIKey,
		Model:   cfg.Rerank.Model,
	})

	docRepo := repository.NewDocumentRepository(mysqlDB)
	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	chunker := appsvc.NewChunker(cfg.Retrieve.ChunkSize, cfg.Retrieve.ChunkOverlap)
	ingestService := appsvc.NewIngestService(
		docRepo,
		appsvc.NewLoader(),
		llmClient,
		idx,
		publisher,
		chunker,
		cfg.Storage.Path,
	)

	ingestWorker := worker.NewIngestWorker(
		mqConn,
		ingestService,
		cfg.RabbitMQ.IngestQueue,
		time.Duration(cfg.Timeout.IngestSeconds)*time.Second,
	)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:       cfg,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Index:        idx,
		LLM:          llmClient,
		Rerank:       rerankClient,
		Ingest:       ingestService,
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
