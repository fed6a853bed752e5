package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/account"
	"keyword-backend/internal/analyses"
	googleauth "keyword-backend/internal/auth"
	"keyword-backend/internal/provider"
	"keyword-backend/internal/provider/dataforseo"
	"keyword-backend/internal/queue"
	"keyword-backend/internal/services/health"
	"keyword-backend/internal/shared/config"
	"keyword-backend/internal/shared/server"
	"keyword-backend/internal/shared/storage/db"
	"keyword-backend/internal/shared/storage/object"
	localstore "keyword-backend/internal/shared/storage/object/local"
	s3store "keyword-backend/internal/shared/storage/object/s3"
	"keyword-backend/internal/usage"
	"keyword-backend/internal/users"
	"keyword-backend/internal/websites"
)

// App holds shared dependencies for the API server and the worker.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Queue             queue.Client
	Provider          provider.Client
	WebsitesRepo      websites.Repo
	AnalysesRepo      analyses.Repo
	UsersRepo         users.Repo
	WebsitesService   *websites.Service
	UsageService      *usage.Service
	AnalysesService   *analyses.Service
	AnalysisProcessor AnalysisProcessor
	AccountService    *account.Service
	UsersService      *users.Service
	WebsiteHandler    *websites.Handler
	AnalysisHandler   *analyses.Handler
	AccountHandler    *account.Handler
	UsageHandler      *usage.Handler
	UsersHandler      *users.Handler
	GoogleAuth        *googleauth.GoogleService
}

// AnalysisProcessor allows callers to override analysis processing for tests.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          health.NewService(),
		AccountHandler:  app.AccountHandler,
		AnalysisHandler: app.AnalysisHandler,
		WebsiteHandler:  app.WebsiteHandler,
		UsageHandler:    app.UsageHandler,
		UserHandler:     app.UsersHandler,
		GoogleAuth:      app.GoogleAuth,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
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
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("KB_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildProvider(cfg config.Config) provider.Client {
	client, err := dataforseo.NewClient(cfg.DataForSEOLogin, cfg.DataForSEOPassword)
	if err != nil {
		log.Printf("bootstrap: DataForSEO client unavailable; using placeholder provider: %v", err)
		return provider.PlaceholderClient{}
	}
	return client
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var siteRepo websites.Repo
	var analysisRepo analyses.Repo
	var userRepo users.Repo

	if app.DB != nil {
		siteRepo = &websites.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		siteRepo = websites.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	userSvc := users.NewService(userRepo)
	usageSvc := usage.NewService(userSvc, analysisRepo)
	siteSvc := &websites.Service{Repo: siteRepo}

	app.Provider = buildProvider(app.Config)

	analysisSvc := &analyses.Service{
		Repo:     analysisRepo,
		Usage:    usageSvc,
		Websites: siteRepo,
		Provider: app.Provider,
		Store:    app.Store,
		JobQueue: app.Queue,
	}

	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	app.WebsitesRepo = siteRepo
	app.AnalysesRepo = analysisRepo
	app.UsersRepo = userRepo
	app.WebsitesService = siteSvc
	app.UsageService = usageSvc
	app.AnalysesService = analysisSvc
	app.AnalysisProcessor = analysisSvc
	app.AccountService = account.NewService(siteRepo, analysisRepo)
	app.UsersService = userSvc
	app.WebsiteHandler = websites.NewHandler(siteSvc)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.AccountHandler = account.NewHandler(app.AccountService)
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleAuthSvc

	if app.WebsiteHandler == nil || app.AnalysisHandler == nil || app.UsageHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
