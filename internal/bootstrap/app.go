package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"docanalysis-backend/internal/processdata"
	"docanalysis-backend/internal/queryresults"
	"docanalysis-backend/internal/queue"
	"docanalysis-backend/internal/services/health"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/server"
	"docanalysis-backend/internal/shared/storage/db"
	"docanalysis-backend/internal/shared/storage/object"
	localstore "docanalysis-backend/internal/shared/storage/object/local"
	s3store "docanalysis-backend/internal/shared/storage/object/s3"
	"docanalysis-backend/internal/shared/telemetry"
	"docanalysis-backend/internal/textract"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     object.ObjectStore
	Repo      processdata.Repo
	Analysis  textract.Service
	Processor *queryresults.Processor
	Queue     queue.Client
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildWithContext(context.Background(), cfg)
}

// BuildWithContext is Build with a caller-supplied context for AWS config
// loading and database connects.
func BuildWithContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.DataStore) == "" {
		cfg.DataStore = config.DataStoreMemory
	}

	app := &App{Config: cfg}

	repo, sqlDB, err := buildRepo(ctx, &app.Config)
	if err != nil {
		return nil, err
	}
	app.Repo = repo
	app.DB = sqlDB

	store, err := buildStore(ctx, app.Config)
	if err != nil {
		return nil, err
	}
	app.Store = store

	analysis, err := buildAnalysis(ctx, app.Config, store)
	if err != nil {
		return nil, err
	}
	app.Analysis = analysis

	queueClient, err := buildQueue(ctx, app.Config)
	if err != nil {
		return nil, err
	}
	app.Queue = queueClient

	app.Processor = &queryresults.Processor{Repo: app.Repo, Analysis: app.Analysis}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:       app.Config,
		Health:       health.NewService(app.DB, app.Config.DataStore),
		QueryResults: queryresults.NewHandler(app.Processor, app.Repo, app.Queue),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             app.Config.Env,
		"data_store":      app.Config.DataStore,
		"object_store":    app.Config.ObjectStoreType,
		"analysis_source": app.Config.AnalysisSource,
		"queue":           app.Queue != nil,
	})
	return app, nil
}

// buildRepo picks the process-data backend. Dev-like environments fall back to
// memory when Postgres is unavailable; cfg.DataStore is updated to match.
func buildRepo(ctx context.Context, cfg *config.Config) (processdata.Repo, *sql.DB, error) {
	switch cfg.DataStore {
	case config.DataStoreDynamoDB:
		repo, err := processdata.NewDynamoRepo(ctx, cfg.AWSRegion, cfg.DynamoDBTable)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	case config.DataStorePostgres:
		sqlDB, err := buildDB(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		if sqlDB == nil {
			cfg.DataStore = config.DataStoreMemory
			return processdata.NewMemoryRepo(), nil, nil
		}
		return &processdata.PGRepo{DB: sqlDB}, sqlDB, nil
	default:
		if !isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"env": cfg.Env})
		}
		return processdata.NewMemoryRepo(), nil, nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.fallback", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.RuntimeRole())
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.fallback", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, "", "")
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildAnalysis(ctx context.Context, cfg config.Config, store object.ObjectStore) (textract.Service, error) {
	if cfg.AnalysisSource == config.AnalysisSourceTextract {
		return textract.NewJobSource(ctx, cfg.AWSRegion)
	}
	return textract.NewOutputSource(store), nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.SQSQueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
