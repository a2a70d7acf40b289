package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/capability"
	"deck-backend/internal/checkpoint"
	"deck-backend/internal/evaluator"
	openaieval "deck-backend/internal/evaluator/openai"
	"deck-backend/internal/preview"
	"deck-backend/internal/refinement"
	"deck-backend/internal/runs"
	"deck-backend/internal/services/health"
	"deck-backend/internal/shared/config"
	"deck-backend/internal/shared/server"
	"deck-backend/internal/shared/server/middleware"
	"deck-backend/internal/shared/storage/db"
	"deck-backend/internal/shared/storage/object"
	localstore "deck-backend/internal/shared/storage/object/local"
	s3store "deck-backend/internal/shared/storage/object/s3"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/validation"
)

// App holds shared dependencies.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Capabilities      capability.Set
	Fonts             *preview.FontCache
	Renderer          *preview.Renderer
	Evaluator         evaluator.Evaluator
	Checkpoints       *checkpoint.Store
	Refiner           *refinement.Refiner
	Validator         *validation.Validator
	RunsRepo          runs.Repo
	RunsService       *runs.Service
	PreviewHandler    *preview.Handler
	CheckpointHandler *checkpoint.Handler
	RunsHandler       *runs.Handler
}

// Build prepares every dependency and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.Configure(cfg.LogFile)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, storeErr := buildStore(ctx, cfg)
	if storeErr != nil && !isDevLike(cfg.Env) {
		return nil, storeErr
	}
	if storeErr != nil {
		log.Printf("bootstrap: object store %s unavailable; falling back to local: %v", cfg.ObjectStoreType, storeErr)
		store = localstore.New(cfg.LocalStoreDir)
	}

	fonts := preview.NewFontCache()
	ev, evErr := buildEvaluator(cfg)

	caps := capability.Detect(map[capability.Capability]capability.Probe{
		capability.VectorText: fonts.Probe,
		capability.Evaluator: func() (bool, string) {
			if evErr != nil {
				return false, evErr.Error()
			}
			return true, ""
		},
		capability.Database: func() (bool, string) {
			if sqlDB == nil {
				return false, "DATABASE_URL not set or unreachable; using in-memory repositories"
			}
			return true, ""
		},
		capability.ObjectStore: func() (bool, string) {
			if storeErr != nil {
				return false, storeErr.Error()
			}
			return true, ""
		},
	})
	for _, st := range caps.List() {
		log.Printf("bootstrap: capability=%s available=%t reason=%q", st.Name, st.Available, st.Reason)
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		Capabilities: caps,
		Fonts:        fonts,
		Evaluator:    ev,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		Capabilities:      app.Capabilities,
		PreviewHandler:    app.PreviewHandler,
		CheckpointHandler: app.CheckpointHandler,
		RunsHandler:       app.RunsHandler,
		Health:            health.NewService(app.Capabilities, pinger),
		RateLimiter:       middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close stops in-flight runs and releases the database pool.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.RunsService != nil {
		if err := a.RunsService.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close runs: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			sqlDB.Close()
			return nil, nil
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildEvaluator returns the placeholder and the reason when no vision model
// is configured.
func buildEvaluator(cfg config.Config) (evaluator.Evaluator, error) {
	if cfg.VLMProvider != "openai" {
		return evaluator.Placeholder{}, fmt.Errorf("VLM_PROVIDER=%s", cfg.VLMProvider)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return evaluator.Placeholder{}, errors.New("OPENAI_API_KEY not set")
	}
	client, err := openaieval.NewClient(openaieval.Options{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.VLMModel,
		BaseURL:   cfg.OpenAIBaseURL,
		Threshold: cfg.RefineScoreThreshold,
	})
	if err != nil {
		return evaluator.Placeholder{}, err
	}
	return evaluator.NewRetrying(client), nil
}

func buildServices(app *App) error {
	cfg := app.Config
	app.Renderer = preview.NewRenderer(preview.Options{DPI: cfg.RenderDPI, Workers: cfg.RenderWorkers}, app.Fonts)

	var journal checkpoint.Journal
	if app.DB != nil {
		journal = &checkpoint.PGJournal{DB: app.DB}
		app.RunsRepo = &runs.PGRepo{DB: app.DB}
	} else {
		app.RunsRepo = runs.NewMemoryRepo()
	}
	app.Checkpoints = checkpoint.NewStore(journal)

	app.Refiner = refinement.NewRefiner(app.Renderer, app.Evaluator, refinement.Config{
		MaxIterations:  cfg.RefineMaxIterations,
		ScoreThreshold: cfg.RefineScoreThreshold,
		Concurrency:    cfg.EvalConcurrency,
	})
	app.Validator = validation.NewValidator(app.Renderer, app.Evaluator, cfg.EvalConcurrency)

	autonomy, err := checkpoint.ParseAutonomyLevel(cfg.DefaultAutonomy)
	if err != nil {
		log.Printf("bootstrap: %v; using %s", err, checkpoint.SemiSupervised)
		autonomy = checkpoint.SemiSupervised
	}
	app.RunsService = &runs.Service{
		Repo:            app.RunsRepo,
		Store:           app.Store,
		Checkpoints:     app.Checkpoints,
		Refiner:         app.Refiner,
		Validator:       app.Validator,
		Caps:            app.Capabilities,
		DefaultAutonomy: autonomy,
	}

	app.PreviewHandler = preview.NewHandler(app.Renderer, app.Store)
	app.CheckpointHandler = checkpoint.NewHandler(app.Checkpoints)
	app.RunsHandler = runs.NewHandler(app.RunsService)

	if app.PreviewHandler == nil || app.CheckpointHandler == nil || app.RunsHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
