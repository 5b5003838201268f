package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"widgetrag/internal/app"
	"widgetrag/internal/cache"
	"widgetrag/internal/chunker"
	"widgetrag/internal/config"
	"widgetrag/internal/embedding"
	"widgetrag/internal/llm"
	"widgetrag/internal/logger"
	"widgetrag/internal/metrics"
	mysqlClient "widgetrag/internal/platform/mysql"
	rabbitmqClient "widgetrag/internal/platform/rabbitmq"
	redisClient "widgetrag/internal/platform/redis"
	sqliteClient "widgetrag/internal/platform/sqlite"
	"widgetrag/internal/repository"
	"widgetrag/internal/search"
	"widgetrag/internal/worker"
)

type Services struct {
	Auth        *app.AuthService
	Documents   *app.DocumentService
	Query       *app.QueryService
	Preferences *app.PreferenceService
	Models      *app.ModelService
	Admin       *app.AdminService
}

type App struct {
	Config         *config.Config
	Logger         *zap.Logger
	DB             *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	DocumentWorker *worker.DocumentWorker
	Services       Services

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.DocumentQueue)
	if err != nil {
		return err
	}

	embCache := cache.NewEmbeddingCache(a.Redis, "widgetrag:", seconds(cfg.Redis.EmbeddingCacheTTLSeconds))
	embedder, err := embedding.New(embeddingConfig(cfg), embCache, a.Logger.Named("embedding"))
	if err != nil {
		return err
	}

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}

	registry, err := loadRegistry(cfg.LLM.CatalogPath)
	if err != nil {
		return err
	}
	llmCfg := llmConfig(cfg)
	router := llm.NewRouter(llmCfg, registry, a.Logger.Named("llm"), llm.NewProviders(llmCfg)...)

	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	publisher := rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.DocumentQueue)
	lock := cache.NewDocumentLock(a.Redis, seconds(cfg.Redis.LockTTLSeconds), seconds(cfg.Redis.LockWaitSeconds), a.Logger.Named("lock"))
	searcher := search.NewService(chunkRepo, cfg.RAG.MinScore, a.Logger.Named("search"))

	a.Services = Services{
		Auth: app.NewAuthService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
			cfg.Auth.AdminUsernames...),
		Documents: app.NewDocumentService(docRepo, chunkRepo, publisher, lock, ch, embedder,
			app.DocumentServiceConfig{BatchSize: cfg.Embedding.BatchSize, EmbeddingModel: cfg.Embedding.Model},
			a.Logger.Named("documents")),
		Query: app.NewQueryService(userRepo, prefRepo, embedder, searcher, router,
			app.QueryServiceConfig{TopK: cfg.RAG.TopK, ConfidenceThreshold: cfg.RAG.ConfidenceThreshold},
			a.Logger.Named("query")),
		Preferences: app.NewPreferenceService(prefRepo, userRepo, router, cfg.LLM.DefaultModel),
		Models:      app.NewModelService(router, userRepo),
		Admin:       app.NewAdminService(settingRepo, userRepo, router, a.Logger.Named("admin")),
	}
	if err := a.Services.Admin.LoadSystemPrompt(ctx); err != nil {
		return fmt.Errorf("load system prompt failed: %w", err)
	}
	promoted, err := a.Services.Auth.PromoteAdmins(ctx)
	if err != nil {
		return fmt.Errorf("promote configured admins failed: %w", err)
	}
	if promoted > 0 {
		a.Logger.Info("configured admins promoted", zap.Int64("count", promoted))
	}

	a.DocumentWorker = worker.NewDocumentWorker(a.MQConn, a.Services.Documents, cfg.RabbitMQ.DocumentQueue, cfg.RabbitMQ.Prefetch, a.Logger)
	if err := a.DocumentWorker.Start(ctx); err != nil {
		return fmt.Errorf("start document worker failed: %w", err)
	}

	a.Logger.Info("app initialized",
		zap.String("database", cfg.Database.Driver),
		zap.String("embedding_backend", cfg.Embedding.Backend),
		zap.Int("models", len(registry.All())),
	)
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return sqliteClient.New(ctx, cfg.SQLite.Path)
	case config.DriverMySQL:
		return mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.PoolConfig{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func loadRegistry(path string) (*llm.Registry, error) {
	if path == "" {
		return llm.NewRegistry(llm.DefaultModels())
	}
	return llm.LoadRegistry(path)
}

func embeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		Backend:      cfg.Embedding.Backend,
		BaseURL:      cfg.Embedding.BaseURL,
		APIKey:       cfg.Embedding.APIKey,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		Timeout:      seconds(cfg.Embedding.TimeoutSeconds),
		MaxRetries:   cfg.Embedding.MaxRetries,
		RetryBackoff: time.Duration(cfg.Embedding.RetryBackoffMS) * time.Millisecond,
		CacheTTL:     seconds(cfg.Redis.EmbeddingCacheTTLSeconds),
	}
}

func llmConfig(cfg *config.Config) llm.Config {
	out := llm.Config{
		SystemPrompt: cfg.LLM.SystemPrompt,
		DefaultModel: cfg.LLM.DefaultModel,
		Providers:    make(map[string]llm.ProviderConfig, len(cfg.LLM.Providers)),
	}
	for name, pc := range cfg.LLM.Providers {
		out.Providers[name] = llm.ProviderConfig{
			APIKey:       pc.APIKey,
			Endpoint:     pc.Endpoint,
			DefaultModel: pc.DefaultModel,
			Enabled:      pc.Enabled,
			Timeout:      seconds(pc.TimeoutSeconds),
			Confidence:   pc.Confidence,
		}
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (a *App) PingDB(ctx context.Context) error {
	if a.DB == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) PingRedis(ctx context.Context) error {
	if a.Redis == nil {
		return errors.New("redis not initialized")
	}
	return a.Redis.Ping(ctx).Err()
}

func (a *App) PingRabbitMQ(ctx context.Context) error {
	if a.MQConn == nil || a.MQConn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.DocumentWorker != nil {
		a.DocumentWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = errors.Join(closeErr, err)
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
