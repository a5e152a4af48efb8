package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/database"
	"github.com/mx-space/console/internal/middleware"
	"github.com/mx-space/console/internal/modules/storage/backup"
	"github.com/mx-space/console/internal/modules/system/audit"
	pkgcron "github.com/mx-space/console/internal/pkg/cron"
	pkgredis "github.com/mx-space/console/internal/pkg/redis"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	mongo   *mongo.Client
	redis   *pkgredis.Client
	store   tablestore.Store
	backups *backup.Service
	audit   *audit.Service
	logger  *zap.Logger
	cancel  context.CancelFunc
	sched   *pkgcron.Scheduler
}

// deps are the external connections an App runs on.
type deps struct {
	db    *gorm.DB
	mongo *mongo.Client
	redis *pkgredis.Client
	store tablestore.Store
}

// New initializes the application: config → DB → store → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	d, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newApp(logger, cfg, d)
}

func connect(cfg *config.AppConfig, logger *zap.Logger) (deps, error) {
	var d deps

	// The memory driver is self-contained and never touches MySQL.
	if cfg.Store.Driver != config.StoreDriverMemory {
		db, err := database.Connect(cfg, true)
		switch {
		case err == nil:
			d.db = db
		case cfg.Store.Driver == config.StoreDriverMySQL:
			return d, fmt.Errorf("database: %w", err)
		default:
			logger.Warn("mysql unavailable, audit log disabled", zap.Error(err))
		}
	}

	switch cfg.Store.Driver {
	case config.StoreDriverMySQL:
		d.store = tablestore.NewGormStore(d.db)
	case config.StoreDriverMongo:
		client, store, err := tablestore.ConnectMongo(context.Background(), cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			_ = database.Close(d.db)
			return d, fmt.Errorf("mongo: %w", err)
		}
		d.mongo = client
		d.store = store
	default:
		logger.Warn("using in-memory table store, rows are lost on restart")
		d.store = tablestore.NewMemoryStore()
	}

	if cfg.Redis.Enable {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting and backup events disabled", zap.Error(err))
		} else {
			d.redis = rc
		}
	}
	return d, nil
}

func newApp(logger *zap.Logger, cfg *config.AppConfig, d deps) (*App, error) {
	formats, err := backup.ParseFormats(cfg.Backup.Formats)
	if err != nil {
		return nil, fmt.Errorf("backup formats: %w", err)
	}
	var auditSvc *audit.Service
	var recorder audit.Recorder = audit.Nop{}
	if d.db != nil {
		auditSvc = audit.NewService(d.db, logger)
		recorder = auditSvc
	}
	backups := newBackupService(cfg, d.store, formats, recorder, logger)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New(logger)
	if err := registerCronJobs(sched, backups, cfg, logger); err != nil {
		cancel()
		return nil, err
	}
	sched.Start(ctx)

	app := &App{
		cfg:     cfg,
		router:  router,
		db:      d.db,
		mongo:   d.mongo,
		redis:   d.redis,
		store:   d.store,
		backups: backups,
		audit:   auditSvc,
		logger:  logger,
		cancel:  cancel,
		sched:   sched,
	}
	app.registerRoutes()
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes connections.
func (a *App) Shutdown(ctx context.Context) {
	a.cancel()
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("redis close failed", zap.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
}
