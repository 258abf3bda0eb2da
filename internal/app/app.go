package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pxldrop/pxldrop/internal/config"
	"github.com/pxldrop/pxldrop/internal/db"
	"github.com/pxldrop/pxldrop/internal/queue"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/scheduler"
	"github.com/pxldrop/pxldrop/internal/service"
	"github.com/pxldrop/pxldrop/internal/storage"
	"github.com/pxldrop/pxldrop/internal/thumbnail"
)

type App struct {
	Cfg *config.Config
	DB  *sqlx.DB

	Storage          storage.Storage
	Queue            *queue.Queue
	Scheduler        *scheduler.Scheduler
	UploadService    *service.UploadService
	FileService      *service.FileService
	ReconcileService *service.ReconcileService
}

// New wires the application. The queue and scheduler are constructed stopped;
// Start launches them so tests and shutdown stay deterministic.
func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	fileRepository := repository.NewFileRepository(database)
	thumbnailRepository := repository.NewThumbnailRepository(database)
	statsRepository := repository.NewStatsRepository(database)

	// Storage
	store, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Services
	generator := thumbnail.NewGenerator(cfg.FFmpegPath, cfg.DeriveTimeout)
	derivationService := service.NewDerivationService(thumbnailRepository, store, generator, cfg.ThumbnailQuality)
	uploadService := service.NewUploadService(fileRepository, thumbnailRepository, store, generator, cfg.ThumbnailQuality)
	fileService := service.NewFileService(fileRepository, thumbnailRepository, store)
	reconcileService := service.NewReconcileService(fileRepository, statsRepository, derivationService)

	// Background processing, constructed but not started
	q := queue.New(cfg.QueueInterval, derivationService.ProcessItem, fileRepository)

	sched := scheduler.New()
	err = sched.Add("thumbnail-sweep", cfg.ThumbnailSchedule, reconcileService.SweepThumbnails)
	if err != nil {
		return nil, err
	}
	err = sched.Add("user-stats", cfg.StatsSchedule, reconcileService.RefreshStats)
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:              cfg,
		DB:               database,
		Storage:          store,
		Queue:            q,
		Scheduler:        sched,
		UploadService:    uploadService,
		FileService:      fileService,
		ReconcileService: reconcileService,
	}, nil
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Storage(storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Start launches background processing: the queue reloads unfinished work
// first, so files whose work items were lost to a restart are picked up
// without waiting for the reconciliation sweep.
func (a *App) Start(ctx context.Context) error {
	err := a.Queue.LoadPending()
	if err != nil {
		return fmt.Errorf("failed to reload pending thumbnails: %w", err)
	}

	a.Queue.Start(ctx)
	a.Scheduler.Start()
	return nil
}

// Stop shuts down background processing and closes the database.
func (a *App) Stop() error {
	a.Scheduler.Stop()
	a.Queue.Stop()
	return db.Close(a.DB)
}
