package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/archive"
	"findoc-backend/internal/cleanup"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/jobs"
	"findoc-backend/internal/llm"
	"findoc-backend/internal/llm/gemini"
	"findoc-backend/internal/llm/openai"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/queue"
	"findoc-backend/internal/services/health"
	"findoc-backend/internal/shared/config"
	"findoc-backend/internal/shared/server"
	"findoc-backend/internal/shared/storage/db"
	"findoc-backend/internal/shared/storage/object"
	"findoc-backend/internal/shared/storage/object/gcs"
	"findoc-backend/internal/shared/telemetry"
	localstore "findoc-backend/internal/shared/storage/object/local"
	s3store "findoc-backend/internal/shared/storage/object/s3"
	"findoc-backend/internal/tools"
)

const (
	archiveObjectPrefix = "results"
	// leaseMargin covers the terminal write retries and document release after a run ends.
	leaseMargin = 2 * time.Minute
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	// Local is set when QUEUE_TYPE=local; the in-process pool drains it.
	Local     *queue.Local
	Documents *documents.Service
	Tools     *tools.Registry
	Roster    *agents.Roster
	Executor  *pipeline.Executor
	Jobs      *jobs.Service
	Janitor   *jobs.Janitor
	Pool      *jobs.Pool
	Handler   *jobs.Handler
	Health    *health.Service

	closers []func() error
}

// Build prepares every dependency and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg, Health: health.NewService()}

	repo, err := app.buildRepo(ctx)
	if err != nil {
		return nil, err
	}
	if app.Store, err = app.buildStore(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildQueue(ctx); err != nil {
		app.Close()
		return nil, err
	}
	client, err := buildLLM(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildPipeline(client); err != nil {
		app.Close()
		return nil, err
	}
	store, err := app.buildArchive(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	coordinator := &cleanup.Coordinator{Releaser: app.Documents}
	app.Jobs = &jobs.Service{
		Repo:      repo,
		Queue:     app.Queue,
		Pipeline:  app.Executor,
		Documents: app.Documents,
		Cleanup:   coordinator,
		Archive:   store,
		WorkerID:  workerID(),
	}
	app.Janitor = &jobs.Janitor{
		Repo:           repo,
		Cleanup:        coordinator,
		Lease:          jobLease(cfg),
		PendingTimeout: cfg.JobPendingTimeout,
		Retention:      cfg.JobRetention,
		Interval:       cfg.JanitorInterval,
	}
	if app.Local != nil {
		app.Pool = &jobs.Pool{
			Messages:    app.Local.Messages(),
			Concurrency: cfg.WorkerConcurrency,
			Handle: func(ctx context.Context, msg queue.Message) error {
				return app.Jobs.Process(ctx, msg.JobID)
			},
		}
	}
	app.Handler = jobs.NewHandler(app.Jobs, app.Documents, cfg.AnalyzeMode, cfg.MaxUploadBytes)
	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Jobs:   app.Handler,
		Health: app.Health,
	})

	return app, nil
}

// Close releases clients opened by Build. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildRepo(ctx context.Context) (jobs.Repo, error) {
	sqlDB, dialect, err := buildDB(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	if sqlDB == nil {
		return jobs.NewMemoryRepo(), nil
	}
	if !db.IsLambdaRuntime() {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.DB = sqlDB
	a.Health.Register("database", sqlDB.PingContext)
	return &jobs.SQLRepo{DB: sqlDB, Dialect: dialect}, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Dialect, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory job store")
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("DATABASE_URL is required")
	}
	_, _, dialect := db.ParseURL(cfg.DatabaseURL)

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.DefaultOptions(db.ProfileLambda).WithEnv()
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.DefaultOptions(db.ProfileServer).WithEnv()
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory job store: %v", err)
			return nil, "", nil
		}
		return nil, "", err
	}
	return sqlDB, dialect, nil
}

func (a *App) buildStore(ctx context.Context) (object.ObjectStore, error) {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildQueue(ctx context.Context) error {
	switch a.Config.QueueType {
	case "sqs":
		client, err := queue.NewSQSClient(ctx, a.Config.AWSRegion, a.Config.SQSQueueURL)
		if err != nil {
			return err
		}
		a.Queue = client
	default:
		a.Local = queue.NewLocal(0)
		a.Queue = a.Local
		a.closers = append(a.closers, func() error {
			a.Local.Close()
			return nil
		})
	}
	a.Health.Register("queue", func(ctx context.Context) error {
		if a.Queue == nil {
			return jobs.ErrJobQueueNotConfigured
		}
		return nil
	})
	return nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "openai":
		client, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "gemini":
		client, err = gemini.NewClient(ctx, gemini.Options{
			APIKey:   cfg.GoogleAPIKey,
			Project:  cfg.GoogleCloudProject,
			Location: cfg.GoogleCloudLocation,
			Model:    cfg.LLMModel,
		})
	case "placeholder", "none":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: %s client unavailable; analysis calls will fail: %v", cfg.LLMProvider, err)
			return llm.PlaceholderClient{}, nil
		}
		return nil, err
	}
	return llm.WithRetry(client), nil
}

func (a *App) buildPipeline(client llm.Client) error {
	a.Documents = &documents.Service{
		Store:    a.Store,
		MaxBytes: a.Config.MaxUploadBytes,
	}

	registry, err := tools.NewRegistry(
		tools.DocumentReader{},
		tools.NewSearch(a.Config.SearchEndpoint),
		tools.NewInvestmentAnalysis(),
		tools.NewRiskAssessment(),
	)
	if err != nil {
		return err
	}
	roster, err := agents.LoadRoster(a.Config.AgentsFile, registry.Has)
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	p, err := pipeline.Financial(roster)
	if err != nil {
		return err
	}

	a.Tools = registry
	a.Roster = roster
	a.Executor = &pipeline.Executor{
		Pipeline: p,
		Agents: &agents.Runner{
			LLM:    client,
			Tools:  registry,
			Limits: agents.NewLimiters(),
			Roster: roster,
		},
		StageTimeout: a.Config.StageTimeout,
		RunTimeout:   a.Config.RunTimeout,
		Observer:     pipeline.MetricsObserver{},
	}
	return nil
}

func (a *App) buildArchive(ctx context.Context) (archive.Store, error) {
	switch a.Config.ArchiveType {
	case "object":
		return archive.NewObjectStore(a.Store, archiveObjectPrefix), nil
	case "firestore":
		store, err := archive.NewFirestoreStore(ctx, a.Config.GoogleCloudProject, a.Config.FirestoreCollection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return archive.Nop{}, nil
	}
}

// jobLease keeps the RUNNING lease longer than any run can last, so the janitor never fails a
// job whose worker still holds the document.
func jobLease(cfg config.Config) time.Duration {
	lease := cfg.JobLease
	if lease <= 0 {
		lease = jobs.DefaultLease
	}
	run := cfg.RunTimeout
	if run <= 0 {
		run = pipeline.DefaultRunTimeout
	}
	if floor := run + leaseMargin; lease < floor {
		telemetry.Warn("config.job_lease_raised", map[string]any{
			"job_lease":            lease.String(),
			"pipeline_run_timeout": run.String(),
			"effective_lease":      floor.String(),
		})
		return floor
	}
	return lease
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
