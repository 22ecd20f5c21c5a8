package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/config"
	"wardrobe/internal/objectstore"
	"wardrobe/internal/push"
	"wardrobe/internal/services"
	"wardrobe/internal/store"
	"wardrobe/internal/store/primary"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config *config.Config

	PrimaryStore *primary.StoreImpl
	JobStore     store.JobStore
	JobClient    store.JobClient
	BlobStore    *objectstore.Store
	Redis        *redis.Client
	Notifier     push.Notifier

	ImageJobService *services.ImageJobService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initBlobStore(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initServices()

	log.Info("Application initialization complete.")
	return app, nil
}

// RedisOpt is the asynq connection for both the producer and the worker server.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("init primary store: %w", err)
	}
	a.PrimaryStore = ps
	a.JobStore = ps
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("init redis client: %w", err)
	}
	a.Redis = client
	a.Notifier = push.NewRedisNotifier(client, a.Config.Push.ChannelPrefix)
	return nil
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), store.JobClientOptions{
		MaxRetry:      a.Config.Pipeline.MaxRetry,
		RequestMaxAge: a.Config.Pipeline.RequestMaxAge,
	})
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initBlobStore() error {
	bs, err := objectstore.NewOS(a.Config.Storage.Root, a.Config.Storage.SharedRoot, a.Config.Storage.BaseURL)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	a.BlobStore = bs
	return nil
}

func (a *App) initServices() {
	a.ImageJobService = services.NewImageJobService(services.ImageJobServiceDeps{
		Jobs:           a.JobStore,
		Blobs:          a.BlobStore,
		JobClient:      a.JobClient,
		MaxUploadBytes: a.Config.Pipeline.MaxUploadBytes,
	})
}

// Ping checks the database and redis.
func (a *App) Ping(ctx context.Context) error {
	if err := a.JobStore.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases every connection the app holds.
func (a *App) Close() {
	a.cleanupPartialInit()
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Printf("Error closing job client: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}
	if a.PrimaryStore != nil {
		a.PrimaryStore.Close()
	}
}
